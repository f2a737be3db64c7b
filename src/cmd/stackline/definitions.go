package main

import (
	"fmt"
	"strings"

	"stackline/src/config"
	"stackline/src/definition"
	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/pipeline"
	"stackline/src/stacks"
)

// variantConfig returns a copy of cfg for the named built-in pipeline.
func variantConfig(cfg *config.Config, variant, prNumber string) (*config.Config, error) {
	c := *cfg
	switch variant {
	case "", "production":
		c.PRNumber = ""
	case "integration":
		if prNumber != "" {
			c.PRNumber = prNumber
		}
		if c.PRNumber == "" {
			return nil, errs.Configuration("the integration variant needs a pull request number").
				WithHint("pass --pr or set GITHUB_PR_NUMBER")
		}
	default:
		return nil, errs.Configuration("unknown variant %q (want production or integration)", variant)
	}
	return &c, nil
}

// selectPipeline loads the pipeline to act on: one of the definitions in
// paths, or the built-in variant when no paths are given.
func selectPipeline(cfg *config.Config, log logger.Logger, paths []string, name, variant, prNumber string) (*pipeline.Definition, error) {
	if len(paths) == 0 {
		vcfg, err := variantConfig(cfg, variant, prNumber)
		if err != nil {
			return nil, err
		}
		return stacks.Pipeline(vcfg, stacks.NewInfrastructure(vcfg), log)
	}

	defs, err := definition.NewLoader(cfg, log).Load(paths...)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(defs) > 1 {
			return nil, errs.Configuration("%d pipelines defined, choose one", len(defs)).
				WithHint("pass --pipeline " + pipelineNames(defs))
		}
		return defs[0], nil
	}
	for _, d := range defs {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, errs.Configuration("pipeline %q is not defined (found %s)", name, pipelineNames(defs))
}

func pipelineNames(defs []*pipeline.Definition) string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name())
	}
	return strings.Join(names, ", ")
}

// formatError renders err with its hint, if any.
func formatError(prefix string, err error) string {
	props := errs.Properties(err)
	msg := fmt.Sprintf("%s: %v", prefix, err)
	if hint, ok := props["hint"].(string); ok {
		msg += "\n💡 " + hint
	}
	return msg
}

func newLoader() *definition.Loader {
	return definition.NewLoader(appConfig, appLog)
}
