// Package definition loads pipeline definitions from HCL files.
package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"stackline/src/config"
	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/pipeline"
)

// Loader turns definition files into validated pipeline graphs.
type Loader struct {
	cfg    *config.Config
	lookup func(string) (string, bool)
	log    logger.Logger
}

// NewLoader creates a loader. Variables in definition files are taken from
// cfg; env() reads the process environment.
func NewLoader(cfg *config.Config, log logger.Logger) *Loader {
	return &Loader{cfg: cfg, lookup: os.LookupEnv, log: log}
}

// WithLookup replaces the environment lookup used by env().
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	l.lookup = lookup
	return l
}

// Load reads every .hcl file under paths (files or directories) and
// returns the pipelines they define, in file order.
func (l *Loader) Load(paths ...string) ([]*pipeline.Definition, error) {
	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errs.Configuration("no .hcl files found in %v", paths)
	}

	parser := hclparse.NewParser()
	var defs []*pipeline.Definition
	seen := map[string]string{}

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, errs.Wrap(errs.KindParse, diags, "failed to parse %s", file)
		}

		fileDefs, err := l.decode(hclFile.Body, file)
		if err != nil {
			return nil, err
		}
		for _, d := range fileDefs {
			if prev, ok := seen[d.Name()]; ok {
				return nil, errs.Configuration("pipeline %q defined in both %s and %s", d.Name(), prev, file)
			}
			seen[d.Name()] = file
		}
		defs = append(defs, fileDefs...)
	}

	l.log.Debug("Loaded pipeline definitions", "files", len(files), "pipelines", len(defs))
	return defs, nil
}

// Parse decodes definitions from source held in memory.
func (l *Loader) Parse(src []byte, filename string) ([]*pipeline.Definition, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errs.Wrap(errs.KindParse, diags, "failed to parse %s", filename)
	}
	return l.decode(hclFile.Body, filename)
}

func (l *Loader) decode(body hcl.Body, filename string) ([]*pipeline.Definition, error) {
	ctx := evalContext(l.cfg, l.lookup)

	var root fileRoot
	if diags := gohcl.DecodeBody(body, ctx, &root); diags.HasErrors() {
		return nil, errs.Wrap(errs.KindParse, diags, "failed to decode %s", filename)
	}

	defs := make([]*pipeline.Definition, 0, len(root.Pipelines))
	for _, pb := range root.Pipelines {
		def, err := l.buildPipeline(ctx, pb)
		if err != nil {
			return nil, fmt.Errorf("%s: pipeline %q: %w", filename, pb.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// artifacts hands out one handle per artifact name so that every reference
// to a name shares it. Names nobody produces stay dangling and are
// reported by pipeline.Build.
type artifacts map[string]*pipeline.Artifact

func (a artifacts) ref(name string) *pipeline.Artifact {
	if art, ok := a[name]; ok {
		return art
	}
	art := pipeline.NewArtifact(name)
	a[name] = art
	return art
}

func (a artifacts) refs(names []string) []*pipeline.Artifact {
	out := make([]*pipeline.Artifact, 0, len(names))
	for _, n := range names {
		out = append(out, a.ref(n))
	}
	return out
}

func (l *Loader) buildPipeline(ctx *hcl.EvalContext, pb *pipelineBlock) (*pipeline.Definition, error) {
	arts := artifacts{}
	specs := make([]pipeline.StageSpec, 0, len(pb.Stages))

	for _, sb := range pb.Stages {
		content, diags := sb.Actions.Content(actionSchema)
		if diags.HasErrors() {
			return nil, errs.Wrap(errs.KindParse, diags, "stage %q", sb.Name)
		}

		spec := pipeline.StageSpec{Name: sb.Name}
		for _, block := range content.Blocks {
			action, err := decodeAction(ctx, arts, sb.Name, block)
			if err != nil {
				return nil, err
			}
			spec.Actions = append(spec.Actions, action)
		}
		specs = append(specs, spec)
	}

	opts := []pipeline.Option{pipeline.WithLogger(l.log)}
	if pb.ArtifactStore != "" {
		opts = append(opts, pipeline.WithArtifactStore(pb.ArtifactStore))
	}
	return pipeline.Build(pb.Name, specs, opts...)
}

func decodeAction(ctx *hcl.EvalContext, arts artifacts, stage string, block *hcl.Block) (pipeline.Action, error) {
	name := block.Labels[0]
	wrap := func(diags hcl.Diagnostics) error {
		return errs.Wrap(errs.KindParse, diags, "%s %q", block.Type, name)
	}

	switch block.Type {
	case blockSource:
		var b sourceBlock
		if diags := gohcl.DecodeBody(block.Body, ctx, &b); diags.HasErrors() {
			return nil, wrap(diags)
		}
		return sourceAction(arts, stage, name, b)

	case blockBuild, blockTest:
		var b buildBlock
		if diags := gohcl.DecodeBody(block.Body, ctx, &b); diags.HasErrors() {
			return nil, wrap(diags)
		}
		props := buildProps(arts, b)
		if block.Type == blockTest {
			return pipeline.NewTest(name, props), nil
		}
		return pipeline.NewBuild(name, props), nil

	case blockDeployStack:
		var b stackDeployBlock
		if diags := gohcl.DecodeBody(block.Body, ctx, &b); diags.HasErrors() {
			return nil, wrap(diags)
		}
		return stackDeployAction(arts, name, b)

	case blockDeployBucket:
		var b bucketDeployBlock
		if diags := gohcl.DecodeBody(block.Body, ctx, &b); diags.HasErrors() {
			return nil, wrap(diags)
		}
		return pipeline.NewBucketDeploy(name, pipeline.BucketDeployProps{
			Bucket:    b.Bucket,
			Input:     arts.ref(b.Input),
			Extract:   b.Extract,
			ObjectKey: b.ObjectKey,
			RunOrder:  b.RunOrder,
		}), nil
	}
	return nil, errs.Parse("unknown action type %q", block.Type)
}

func sourceAction(arts artifacts, stage, name string, b sourceBlock) (pipeline.Action, error) {
	var trigger pipeline.Trigger
	switch b.Trigger {
	case "":
	case string(pipeline.TriggerWebhook), string(pipeline.TriggerPoll), string(pipeline.TriggerNone):
		trigger = pipeline.Trigger(b.Trigger)
	default:
		return nil, errs.Parse("source %q: unknown trigger %q (want webhook, poll or none)", name, b.Trigger)
	}

	// An unnamed output is named by pipeline.Build; register the handle
	// under that name so later actions can refer to it.
	var output *pipeline.Artifact
	if b.Output != "" {
		output = arts.ref(b.Output)
	} else {
		output = pipeline.NewArtifact("")
		arts[fmt.Sprintf("Artifact_%s_%s", stage, name)] = output
	}

	return pipeline.NewSource(name, pipeline.SourceProps{
		Owner:         b.Owner,
		Repo:          b.Repo,
		Branch:        b.Branch,
		OAuthSecret:   b.OAuthSecret,
		WebhookSecret: b.WebhookSecret,
		Trigger:       trigger,
		Output:        output,
	}), nil
}

func buildProps(arts artifacts, b buildBlock) pipeline.BuildProps {
	spec := pipeline.BuildSpec{
		Install:   b.Install,
		PreBuild:  b.PreBuild,
		Build:     b.Commands,
		PostBuild: b.PostBuild,
	}
	for _, ab := range b.Artifacts {
		spec.Artifacts = append(spec.Artifacts, pipeline.ArtifactFiles{
			Artifact:      arts.ref(ab.Name),
			BaseDirectory: ab.BaseDirectory,
			Files:         ab.Files,
		})
	}
	for _, rb := range b.Reports {
		spec.Reports = append(spec.Reports, pipeline.ReportFiles{
			Group:         rb.Group,
			BaseDirectory: rb.BaseDirectory,
			Files:         rb.Files,
		})
	}
	return pipeline.BuildProps{
		Project:     b.Project,
		Input:       arts.ref(b.Input),
		ExtraInputs: arts.refs(b.ExtraInputs),
		Spec:        spec,
		Environment: b.Env,
		RunOrder:    b.RunOrder,
	}
}

func stackDeployAction(arts artifacts, name string, b stackDeployBlock) (pipeline.Action, error) {
	artifactName, path, ok := strings.Cut(b.Template, "::")
	if !ok || artifactName == "" || path == "" {
		return nil, errs.Parse("deploy_stack %q: template %q must be <artifact>::<path>", name, b.Template)
	}

	var mode pipeline.ActionMode
	switch b.ActionMode {
	case "":
	case string(pipeline.ModeCreateUpdate), string(pipeline.ModeReplace), string(pipeline.ModeDelete):
		mode = pipeline.ActionMode(b.ActionMode)
	default:
		return nil, errs.Parse("deploy_stack %q: unknown action_mode %q (want CREATE_UPDATE, REPLACE_ON_FAILURE or DELETE_ONLY)", name, b.ActionMode)
	}

	bindings := make([]pipeline.CodeBinding, 0, len(b.Bindings))
	for _, bb := range b.Bindings {
		code := pipeline.CodeReference{BucketParam: bb.BucketParam, KeyParam: bb.KeyParam}
		if bb.Code != "" {
			code = pipeline.NewCodeReference(bb.Code)
		}
		bindings = append(bindings, pipeline.CodeBinding{Code: code, Artifact: arts.ref(bb.Artifact)})
	}
	overrides, err := pipeline.Bind(bindings...)
	if err != nil {
		return nil, err
	}

	if len(b.Parameters) > 0 {
		literals := pipeline.ParameterOverrides{}
		for k, v := range b.Parameters {
			literals[k] = pipeline.Literal(v)
		}
		if overrides, err = overrides.Merge(literals); err != nil {
			return nil, err
		}
	}

	var hooks []pipeline.DeployHook
	if b.GrantArtifactRead {
		hooks = append(hooks, pipeline.GrantArtifactRead(b.DeploymentRole))
	}

	return pipeline.NewStackDeploy(name, pipeline.StackDeployProps{
		StackName:    b.StackName,
		Template:     arts.ref(artifactName).AtPath(path),
		Parameters:   overrides,
		ExtraInputs:  arts.refs(b.ExtraInputs),
		Capabilities: b.Capabilities,
		ActionMode:   mode,
		RunOrder:     b.RunOrder,
		Hooks:        hooks,
	}), nil
}

// findHCLFiles walks paths and returns every .hcl file, sorted per directory.
func findHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, err, "cannot read definition path %s", path)
		}

		if !info.IsDir() {
			if _, ok := seen[path]; !ok {
				files = append(files, path)
				seen[path] = struct{}{}
			}
			continue
		}

		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				if _, ok := seen[p]; !ok {
					files = append(files, p)
					seen[p] = struct{}{}
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
