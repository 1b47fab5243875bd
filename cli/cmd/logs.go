package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/logview"

	"github.com/spf13/cobra"
)

var (
	logsPage     int
	logsLimit    int
	logsOutput   string
	logsInterval time.Duration
)

// logsCmd groups request log operations
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the requests recorded by the mock engine",
	Long: `Logs are listed newest first, twenty per page by default.

Examples:
  hcctl logs list --page 2
  hcctl logs tail
  hcctl logs clear`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show one page of logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		if logsOutput != formatTable {
			page, err := GetAPIClient().ListLogs(ctx, logsPage, limitOrDefault(logsLimit))
			if err != nil {
				return fmt.Errorf("failed to list logs: %s", client.ErrorText(err))
			}
			_, err = writeStructured(cmd.OutOrStdout(), logsOutput, page)
			return err
		}

		viewer := logview.New(logview.Config{API: GetAPIClient(), Limit: logsLimit})
		viewer.SetPage(logsPage)
		if err := viewer.Fetch(ctx); err != nil {
			return fmt.Errorf("failed to list logs: %s", client.ErrorText(err))
		}
		return viewer.Render(cmd.OutOrStdout())
	},
}

var logsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the log page live",
	Long: `Tail re-renders the current page every few seconds until interrupted.
Commands read from stdin, one per line:
  p        pause (polling continues in the background)
  l        resume live updates
  n, b     next or previous page
  d ID     expand or collapse one entry
  c        clear all logs
  q        quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		p := newPrompter(cmd)
		viewer := logview.New(logview.Config{
			API:       GetAPIClient(),
			Interval:  logsInterval,
			Limit:     logsLimit,
			Out:       cmd.OutOrStdout(),
			Confirmer: p,
			Notifier:  p,
		})
		viewer.SetPage(logsPage)

		go func() {
			defer cancel()
			tailControls(ctx, viewer, p)
		}()

		err := viewer.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// tailControls applies stdin commands to viewer until quit or EOF.
func tailControls(ctx context.Context, viewer *logview.Viewer, p *prompter) {
	for {
		line, err := p.in.ReadString('\n')
		if fields := strings.Fields(line); len(fields) > 0 {
			if quit := tailCommand(ctx, viewer, p, fields); quit {
				return
			}
		}
		if err == io.EOF {
			// keep following until interrupted when stdin is closed
			<-ctx.Done()
			return
		}
		if err != nil || ctx.Err() != nil {
			return
		}
	}
}

func tailCommand(ctx context.Context, viewer *logview.Viewer, p *prompter, fields []string) bool {
	refresh := func() {
		if err := viewer.Fetch(ctx); err != nil {
			p.Notify("Failed to fetch logs: " + client.ErrorText(err))
		}
	}

	switch fields[0] {
	case "q":
		return true
	case "p":
		viewer.SetLive(false)
		p.Notify("paused")
	case "l":
		viewer.SetLive(true)
		refresh()
	case "n", "b":
		_, total := viewer.Logs()
		info := logview.Pagination(viewer.Page(), limitOrDefault(logsLimit), total)
		switch {
		case fields[0] == "n" && info.HasNext:
			viewer.SetPage(info.Page + 1)
		case fields[0] == "b" && info.HasPrev:
			viewer.SetPage(info.Page - 1)
		default:
			return false
		}
		refresh()
	case "d":
		if len(fields) < 2 {
			p.Notify("usage: d ID")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			p.Notify(fmt.Sprintf("invalid id %q", fields[1]))
			return false
		}
		viewer.ToggleDetails(id)
	case "c":
		if _, err := viewer.Clear(ctx); err != nil {
			p.Notify("Failed to clear logs: " + client.ErrorText(err))
		}
	default:
		p.Notify(fmt.Sprintf("unknown command %q", fields[0]))
	}
	return false
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		p := newPrompter(cmd)
		viewer := logview.New(logview.Config{API: GetAPIClient(), Confirmer: p, Notifier: p})
		cleared, err := viewer.Clear(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear logs: %s", client.ErrorText(err))
		}
		if !cleared {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
		}
		return nil
	},
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return logview.DefaultLimit
	}
	return limit
}

func init() {
	for _, c := range []*cobra.Command{logsListCmd, logsTailCmd} {
		c.Flags().IntVar(&logsPage, "page", 1, "Page number")
		c.Flags().IntVar(&logsLimit, "limit", logview.DefaultLimit, "Logs per page")
	}
	logsListCmd.Flags().StringVarP(&logsOutput, "output", "o", formatTable, "Output format: table, yaml, json")
	logsTailCmd.Flags().DurationVar(&logsInterval, "interval", logview.DefaultInterval, "Poll interval, between 3s and 5s")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsTailCmd)
	logsCmd.AddCommand(logsClearCmd)
}
