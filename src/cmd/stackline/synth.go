package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stackline/src/pipeline"
	"stackline/src/stacks"
)

var (
	synthVariant string
	synthPR      string
	synthOut     string
)

// synthCmd renders the built-in pipeline and its infrastructure template
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Render the deployment pipeline and infrastructure template",
	Long: `Render the built-in deployment pipeline as the managed pipeline
declaration, together with the infrastructure template it deploys and one
buildspec per build or test action.

Without --out the pipeline declaration is written to stdout.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := variantConfig(appConfig, synthVariant, synthPR)
		if err != nil {
			fmt.Fprintln(os.Stderr, formatError("Invalid variant", err))
			os.Exit(1)
		}

		infra := stacks.NewInfrastructure(cfg)
		def, err := stacks.Pipeline(cfg, infra, appLog)
		if err != nil {
			fmt.Fprintln(os.Stderr, formatError("Failed to build pipeline", err))
			os.Exit(1)
		}
		declaration, err := pipeline.Render(def).JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render pipeline: %v\n", err)
			os.Exit(1)
		}

		if synthOut == "" {
			fmt.Println(string(declaration))
			return
		}

		template, err := infra.Template()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to synthesize template: %v\n", err)
			os.Exit(1)
		}
		files := map[string][]byte{
			def.Name() + ".json": declaration,
			infra.TemplateFile(): template,
		}
		for _, stage := range def.Stages() {
			for _, a := range stage.Actions {
				build, ok := a.(*pipeline.BuildAction)
				if !ok {
					continue
				}
				spec, err := build.Spec().YAML()
				if err != nil {
					fmt.Fprintf(os.Stderr, "Failed to render buildspec for %s: %v\n", build.Name(), err)
					os.Exit(1)
				}
				files[filepath.Join("buildspecs", build.Name()+".yml")] = spec
			}
		}

		for name, data := range files {
			path := filepath.Join(synthOut, name)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", filepath.Dir(path), err)
				os.Exit(1)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
				os.Exit(1)
			}
		}
		fmt.Printf("✅ Synthesized %s (%s) into %s\n", def.Name(), cfg.Environment(), synthOut)
		fmt.Printf("   %d files written\n", len(files))
	},
}

// validateCmd checks HCL pipeline definitions
var validateCmd = &cobra.Command{
	Use:   "validate [file.hcl|dir]...",
	Short: "Validate pipeline definition files",
	Long: `Load HCL pipeline definitions and check every pipeline's stages, run
orders and artifact hand-offs without running anything.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		defs, err := newLoader().Load(args...)
		if err != nil {
			fmt.Fprintln(os.Stderr, formatError("❌ Invalid pipeline definition", err))
			os.Exit(1)
		}

		for _, def := range defs {
			fmt.Printf("✅ %s\n", def.Name())
			for _, stage := range def.Plan() {
				fmt.Printf("   %s\n", stage.Name)
				for i, group := range stage.Groups {
					for _, a := range group {
						fmt.Printf("     %d. %s (%s)\n", i+1, a.Name(), a.Category())
					}
				}
			}
			fmt.Printf("   %d artifacts\n", len(def.Artifacts()))
		}
	},
}

func init() {
	synthCmd.Flags().StringVar(&synthVariant, "variant", "production", "pipeline variant: production or integration")
	synthCmd.Flags().StringVar(&synthPR, "pr", "", "pull request number of the integration variant")
	synthCmd.Flags().StringVar(&synthOut, "out", "", "directory to write the rendered files to")
}
