package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stackline/src/broker"
	"stackline/src/contracts"
	"stackline/src/logger"
	"stackline/src/orchestrator"
	"stackline/src/pipeline"
	"stackline/src/platform"
	"stackline/src/tui"
)

var (
	runVariant   string
	runPR        string
	runPipeline  string
	runRevision  string
	runWorkspace string
	runExec      bool
	runWatch     bool
)

// runCmd executes a pipeline locally
var runCmd = &cobra.Command{
	Use:   "run [file.hcl|dir]...",
	Short: "Execute a pipeline locally",
	Long: `Execute a pipeline once: stages in order, actions grouped by run order,
artifacts handed from producers to consumers. Every state change is
published to the broker and recorded in the execution store.

Without files the built-in pipeline is executed (see --variant).
Without --exec actions are simulated; with --exec sources are cloned,
build and test commands run in a shell and bucket deploys are uploaded.

Local Mode (default): agents run in-process and report as the pipeline progresses
Distributed Mode: agents started with 'stackline serve' pick up the state changes`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		log := appLog
		if runWatch {
			log = logger.NewSilentLogger()
		}

		def, err := selectPipeline(appConfig, log, args, runPipeline, runVariant, runPR)
		if err != nil {
			fmt.Fprintln(os.Stderr, formatError("Failed to load pipeline", err))
			os.Exit(1)
		}

		p, err := platform.Open(ctx, appConfig, log)
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

		if p.Mode == platform.LocalMode {
			if _, err := platform.StartAgents(ctx, p, svc, appConfig, log); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to start agents: %v\n", err)
				os.Exit(1)
			}
		}

		var runner orchestrator.Runner = orchestrator.DryRunner{}
		if runExec {
			shell := orchestrator.NewShellRunner(log)
			runner = orchestrator.Dispatch{
				Default: orchestrator.DryRunner{},
				ByCategory: map[pipeline.Category]orchestrator.Runner{
					pipeline.CategorySource: &orchestrator.GitSourceRunner{Secrets: svc.Secrets},
					pipeline.CategoryBuild:  shell,
					pipeline.CategoryTest:   shell,
					pipeline.CategoryDeploy: &orchestrator.DeployRunner{Objects: svc.Objects},
				},
			}
		}

		opts := []orchestrator.Option{
			orchestrator.WithRunner(runner),
			orchestrator.WithBroker(p.Broker),
			orchestrator.WithStore(p.Store),
			orchestrator.WithRegion(appConfig.AWSRegion),
		}
		if runWorkspace != "" {
			opts = append(opts, orchestrator.WithWorkspace(runWorkspace))
		}
		if runWatch {
			id := uuid.NewString()
			opts = append(opts, orchestrator.WithIDGenerator(func() string { return id }))
			watchRun(ctx, p, orchestrator.New(log, opts...), def, id)
			return
		}
		orch := orchestrator.New(log, opts...)

		fmt.Printf("🔧 Running %s in %s mode\n", def.Name(), p.Mode)
		rec, err := orch.Run(ctx, def, runRevision)
		printExecution(rec)
		if err != nil {
			os.Exit(1)
		}
	},
}

// watchRun executes def in the background as executionID and follows it in
// the TUI.
func watchRun(ctx context.Context, p *platform.Platform, orch *orchestrator.Orchestrator, def *pipeline.Definition, executionID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, err := p.Stream(ctx, broker.ReplayGroup("stackline-run"), executionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to follow execution: %v\n", err)
		os.Exit(1)
	}

	done := make(chan *contracts.ExecutionRecord, 1)
	go func() {
		rec, _ := orch.Run(ctx, def, runRevision)
		done <- rec
	}()

	if err := tui.Start(ctx, changes, def.Name()); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		os.Exit(1)
	}

	select {
	case rec := <-done:
		printExecution(rec)
	default:
		fmt.Println("Execution stopped before it finished.")
	}
}

func printExecution(rec *contracts.ExecutionRecord) {
	if rec == nil {
		return
	}
	icon := "✅"
	if rec.Status != contracts.StatusSucceeded {
		icon = "❌"
	}
	fmt.Printf("%s Execution %s: %s\n", icon, rec.ExecutionID, rec.Status)
	for _, stage := range rec.Stages {
		fmt.Printf("   %-10s %s\n", stage.Name, stage.Status)
		for _, a := range stage.Actions {
			fmt.Printf("     %-28s %s\n", a.Name, a.Status)
		}
	}
	if rec.Error != "" {
		fmt.Printf("\n%s\n", rec.Error)
	}
}

func init() {
	runCmd.Flags().StringVar(&runVariant, "variant", "production", "built-in pipeline to run when no files are given")
	runCmd.Flags().StringVar(&runPR, "pr", "", "pull request number of the integration variant")
	runCmd.Flags().StringVar(&runPipeline, "pipeline", "", "pipeline to run when the files define several")
	runCmd.Flags().StringVar(&runRevision, "revision", "", "source commit to run (default: branch head)")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "directory for artifact workspaces")
	runCmd.Flags().BoolVar(&runExec, "exec", false, "run actions for real instead of simulating them")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "follow the execution in the TUI")
}
