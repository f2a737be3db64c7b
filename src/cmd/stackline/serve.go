package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stackline/src/broker"
	"stackline/src/eventbus"
	"stackline/src/logger"
	"stackline/src/mcp"
	"stackline/src/platform"
	"stackline/src/producer"
	"stackline/src/server"
	"stackline/src/store"
	"stackline/src/tui"
)

// serveCmd runs the HTTP gateway and the event handling agents
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the event producer and run the event handling agents",
	Long: `Start the HTTP gateway (POST /eventbridge-producer, execution queries)
and the agents that archive events, report commit statuses, forward
alerts and drain dead letters.

Local Mode (default): the gateway and agents share an in-memory broker
Distributed Mode: agents consume Redpanda topics shared with 'stackline run'`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := platform.Open(ctx, appConfig, appLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s platform: %v\n", mode, err)
			os.Exit(1)
		}
		defer p.Close()

		svc, err := platform.NewServices(ctx, appConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to configure services: %v\n", err)
			os.Exit(1)
		}
		if _, err := platform.StartAgents(ctx, p, svc, appConfig, appLog); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start agents: %v\n", err)
			os.Exit(1)
		}

		bus := eventbus.NewBrokerBus(p.Broker, appConfig.AWSRegion)
		srv := server.New(producer.New(bus, appLog), p.Store, appLog)

		appLog.Info("Serving", "mode", p.Mode.String(), "addr", appConfig.HTTPAddr, "archiveBucket", svc.ArchiveBucket)
		if err := srv.ListenAndServe(ctx, appConfig.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

var watchPipeline string

// watchCmd follows executions run by other processes
var watchCmd = &cobra.Command{
	Use:   "watch [execution-id]",
	Short: "Follow pipeline executions in the TUI",
	Long: `Follow pipeline state changes published to the broker. Without an
execution id the next execution to start is shown; with one, its full
history is replayed first.

This command requires distributed mode (REDPANDA_BROKERS must be set).
Use 'stackline run --watch' to follow a local execution.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if mode != platform.DistributedMode {
			fmt.Fprintln(os.Stderr, "ERROR: REDPANDA_BROKERS environment variable is required for watch command")
			fmt.Fprintln(os.Stderr, "💡 Use 'stackline run --watch' to follow a local execution")
			os.Exit(1)
		}

		executionID := ""
		if len(args) == 1 {
			executionID = args[0]
		}

		ctx, cancel := signalContext()
		defer cancel()

		p, err := platform.Open(ctx, appConfig, logger.NewSilentLogger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s platform: %v\n", mode, err)
			os.Exit(1)
		}
		defer p.Close()

		// A named execution is replayed from the start of the topic.
		group := broker.TailGroup("stackline-watch")
		if executionID != "" {
			group = broker.ReplayGroup("stackline-watch")
		}
		changes, err := p.Stream(ctx, group, executionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to follow executions: %v\n", err)
			os.Exit(1)
		}
		if err := tui.Start(ctx, changes, watchPipeline); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}
	},
}

// mcpCmd serves pipeline tools over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve pipeline tools over the Model Context Protocol",
	Long: `Run an MCP server on stdin/stdout with tools to validate and render
pipeline definitions and to inspect recorded executions.

Execution lookups need POSTGRES_DSN.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var executions store.Store
		if appConfig.UsePostgres() {
			st, err := store.NewPostgresStore(context.Background(), appConfig.PostgresDSN)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to connect to Postgres: %v\n", err)
				os.Exit(1)
			}
			defer st.Close()
			executions = st
		}

		if err := mcp.NewServer(appConfig, executions, appLog).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchPipeline, "pipeline", "", "pipeline name shown in the header")
}
