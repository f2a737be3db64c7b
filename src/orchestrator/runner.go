package orchestrator

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"stackline/src/contracts"
	"stackline/src/pipeline"
)

// Job is one action to run, with everything the orchestrator resolved for it.
type Job struct {
	Pipeline    string
	ExecutionID string
	Stage       string
	Action      pipeline.Action
	// Workspace holds one directory per artifact.
	Workspace *Workspace
	// ArtifactStore is the bucket artifact locations point into.
	ArtifactStore string
	// Parameters are the resolved overrides of a stack deployment.
	Parameters map[string]string
	// Revision pins the source revision; empty means the branch head.
	Revision string
}

// InputDir returns the directory of the action's first input.
func (j Job) InputDir() string {
	inputs := j.Action.Inputs()
	if len(inputs) == 0 {
		return ""
	}
	return j.Workspace.Dir(inputs[0].Name())
}

// Location is where the job's output artifact is recorded as stored.
func (j Job) Location(artifact string) pipeline.ResolvedLocation {
	return pipeline.ResolvedLocation{
		BucketName: j.ArtifactStore,
		ObjectKey:  path.Join(j.Pipeline, artifact, j.ExecutionID),
	}
}

// Result is what a runner reports for a finished action.
type Result struct {
	// Outputs maps every produced artifact to its location.
	Outputs map[string]pipeline.ResolvedLocation
	// Revision is set by source actions.
	Revision *contracts.SourceRevision
	Message  string
}

// Runner executes one action.
type Runner interface {
	Run(ctx context.Context, job Job) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job Job) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, job Job) (Result, error) { return f(ctx, job) }

// DryRunner pretends every action succeeds. Outputs are recorded at their
// conventional locations and sources report the requested revision.
type DryRunner struct{}

func (DryRunner) Run(ctx context.Context, job Job) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res := outputsOf(job)

	switch a := job.Action.(type) {
	case *pipeline.SourceAction:
		sha := job.Revision
		if sha == "" {
			sha = "HEAD"
		}
		res.Revision = &contracts.SourceRevision{
			ActionName:  a.Name(),
			RevisionID:  sha,
			RevisionURL: a.RepositoryURL() + "/commit/" + sha,
		}
		res.Message = fmt.Sprintf("would fetch %s@%s", a.Props().Branch, sha)
	case *pipeline.BuildAction:
		res.Message = fmt.Sprintf("would run %d commands", len(a.Spec().Commands()))
	case *pipeline.StackDeployAction:
		res.Message = fmt.Sprintf("would deploy %s with %d parameters", a.StackName(), len(job.Parameters))
	case *pipeline.BucketDeployAction:
		res.Message = fmt.Sprintf("would copy %s to %s", a.Props().Input.Name(), a.Props().Bucket)
	}
	return res, nil
}

func outputsOf(job Job) Result {
	res := Result{Outputs: map[string]pipeline.ResolvedLocation{}}
	for _, out := range job.Action.Outputs() {
		res.Outputs[out.Name()] = job.Location(out.Name())
	}
	return res
}

// Dispatch routes each action to the runner registered for its category,
// falling back to Default.
type Dispatch struct {
	Default    Runner
	ByCategory map[pipeline.Category]Runner
}

func (d Dispatch) Run(ctx context.Context, job Job) (Result, error) {
	if r, ok := d.ByCategory[job.Action.Category()]; ok {
		return r.Run(ctx, job)
	}
	if d.Default != nil {
		return d.Default.Run(ctx, job)
	}
	return DryRunner{}.Run(ctx, job)
}

// Workspace lays artifacts out as directories under a root.
type Workspace struct {
	Root string
}

// Dir returns the directory holding an artifact's files.
func (w *Workspace) Dir(artifact string) string {
	return filepath.Join(w.Root, artifact)
}
