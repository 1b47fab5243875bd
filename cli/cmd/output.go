package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

// writeStructured encodes v as yaml or json. It returns false for the table
// format so the caller renders its own table.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		return true, encoder.Encode(v)
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case formatTable, "":
		return false, nil
	default:
		return true, fmt.Errorf("unsupported output format: %s", format)
	}
}

// prompter answers confirmations from stdin and prints notices on stderr.
type prompter struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{
		in:        bufio.NewReader(cmd.InOrStdin()),
		out:       cmd.ErrOrStderr(),
		assumeYes: globalFlags.AssumeYes,
	}
}

// Confirm asks a y/N question. Anything but y or yes declines.
func (p *prompter) Confirm(prompt string) bool {
	if p.assumeYes {
		return true
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, _ := p.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Notify prints a short notice.
func (p *prompter) Notify(message string) {
	fmt.Fprintln(p.out, message)
}
