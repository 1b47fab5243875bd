package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/QTuan97/HC-API-Plat/cli/client"

	"github.com/spf13/cobra"
)

var (
	// globalFlags holds the global CLI configuration
	globalFlags client.GlobalFlags

	// apiClient is the global API client instance
	apiClient client.IAPIClient

	// newAPIClient builds the client used by every subcommand
	newAPIClient = func(addr string, timeout time.Duration) (client.IAPIClient, error) {
		return client.NewAPIClient(addr, timeout)
	}
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hcctl",
	Short: "Manage projects, mock rules and request logs of the HC API platform",
	Long: `hcctl is the admin client for the HC API platform.
It manages projects, the mock rules inside them (single or weighted
responses) and the request log recorded by the mock engine.

Examples:
  hcctl project create --name billing --base-url https://mock.example.com
  hcctl rule create --project 1 -f rule.yaml
  hcctl rule toggle --project 1 7
  hcctl logs tail`,
	SilenceUsage: true,

	// PersistentPreRunE is called before any subcommand runs
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient(globalFlags.APIAddr, globalFlags.Timeout)
		if err != nil {
			return fmt.Errorf("failed to initialize API client: %w", err)
		}
		apiClient = c

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		if err := apiClient.HealthCheck(ctx); err != nil {
			// Don't fail initialization on health check failure, just warn
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: admin API health check failed: %s\n", client.ErrorText(err))
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&globalFlags.APIAddr,
		"api-addr",
		"http://localhost:8080",
		"Address of the admin API server",
	)

	rootCmd.PersistentFlags().DurationVar(
		&globalFlags.Timeout,
		"timeout",
		30*time.Second,
		"Timeout for API requests",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&globalFlags.AssumeYes,
		"yes",
		"y",
		false,
		"Answer yes to every confirmation prompt",
	)

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(logsCmd)
}

// GetAPIClient returns the global API client instance
func GetAPIClient() client.IAPIClient {
	return apiClient
}

// requestContext bounds one command's API calls.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), globalFlags.Timeout)
}
