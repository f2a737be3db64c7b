// Package main provides the stackline CLI: synthesize, validate and run
// deployment pipelines, and serve the event handlers locally.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stackline/src/config"
	"stackline/src/logger"
	"stackline/src/platform"
)

var (
	appConfig *config.Config
	appLog    logger.Logger
	mode      platform.Mode
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stackline",
	Short: "Stackline - deployment pipelines and event handlers as code",
	Long: `Stackline defines the infrastructure deployment pipeline, renders it for
the managed pipeline service, and runs it locally with the same stage
sequencing, artifact hand-off and status reporting.

It supports two modes:
- Local Mode: In-memory broker and execution store (default)
- Distributed Mode: Redpanda + Postgres, shared with running agents

Mode is auto-detected based on REDPANDA_BROKERS environment variable.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		appConfig, err = config.LoadFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		appLog, err = appConfig.NewLogger()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		mode = platform.DetectMode(appConfig)
	},
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
