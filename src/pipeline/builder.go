// Package pipeline models deployment pipelines as validated graphs of stages,
// actions and artifacts, with deferred artifact bindings for template parameters.
package pipeline

import (
	"fmt"
	"sort"

	"stackline/src/errs"
	"stackline/src/logger"
)

// StageSpec declares a stage and its actions.
type StageSpec struct {
	Name    string
	Actions []Action
}

// Stage is a validated stage of a Definition.
type Stage struct {
	Name    string
	Actions []Action
}

// Groups returns the stage's actions grouped by ascending run order.
// Actions within a group may run concurrently.
func (s Stage) Groups() [][]Action {
	byOrder := map[int][]Action{}
	for _, a := range s.Actions {
		byOrder[a.RunOrder()] = append(byOrder[a.RunOrder()], a)
	}
	orders := make([]int, 0, len(byOrder))
	for o := range byOrder {
		orders = append(orders, o)
	}
	sort.Ints(orders)

	groups := make([][]Action, 0, len(orders))
	for _, o := range orders {
		groups = append(groups, byOrder[o])
	}
	return groups
}

// ActionRef locates an action within a definition.
type ActionRef struct {
	Stage      string
	StageIndex int
	Action     string
	RunOrder   int
}

type options struct {
	artifactStore string
	log           logger.Logger
}

// Option configures Build.
type Option func(*options)

// WithArtifactStore names the bucket that holds the pipeline's artifacts.
func WithArtifactStore(bucket string) Option {
	return func(o *options) { o.artifactStore = bucket }
}

// WithLogger makes Build log each validation pass at debug level.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Definition is a validated, immutable pipeline graph. It holds its own
// copies of the actions and artifacts it was built from.
type Definition struct {
	name          string
	artifactStore string
	stages        []Stage
	producers     map[string]ActionRef
	consumers     map[string][]ActionRef
	grants        []Grant
}

// Build validates the stage specifications and returns the pipeline graph.
//
// Every validation failure is a ConfigurationError wrapping one of the
// package sentinels: an input artifact not produced by an earlier stage (or an
// earlier run order of the same stage) is ErrDanglingArtifact, an artifact
// name produced twice is ErrDuplicateArtifact, and anything other than exactly
// one source action, placed in the first stage, is ErrSourceStage.
func Build(name string, specs []StageSpec, opts ...Option) (*Definition, error) {
	o := options{log: logger.NewSilentLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With("pipeline", name)

	if name == "" {
		return nil, errs.Configuration("pipeline name is required")
	}

	if err := checkShape(specs); err != nil {
		return nil, err
	}
	log.Debug("shape pass complete", "stages", len(specs))

	// Later passes work on copies; the caller's actions and artifacts are
	// never modified, even when validation fails.
	specs = snapshot(specs)

	nameArtifacts(specs)
	log.Debug("naming pass complete")

	if err := checkSource(specs); err != nil {
		return nil, err
	}
	log.Debug("source pass complete")

	def := &Definition{
		name:          name,
		artifactStore: o.artifactStore,
		producers:     map[string]ActionRef{},
		consumers:     map[string][]ActionRef{},
	}
	if err := def.linkArtifacts(specs); err != nil {
		return nil, err
	}
	log.Debug("artifact pass complete", "artifacts", len(def.producers))

	for _, spec := range specs {
		def.stages = append(def.stages, Stage{Name: spec.Name, Actions: append([]Action(nil), spec.Actions...)})
	}

	if err := def.runHooks(); err != nil {
		return nil, err
	}
	log.Debug("hook pass complete", "grants", len(def.grants))

	return def, nil
}

func checkShape(specs []StageSpec) error {
	if len(specs) == 0 {
		return wrapConfig(ErrSourceStage, "pipeline has no stages")
	}

	stageNames := map[string]bool{}
	for _, spec := range specs {
		if spec.Name == "" {
			return errs.Configuration("stage name is required")
		}
		if stageNames[spec.Name] {
			return wrapConfig(ErrDuplicateStage, "stage %q", spec.Name)
		}
		stageNames[spec.Name] = true

		if len(spec.Actions) == 0 {
			return wrapConfig(ErrEmptyStage, "stage %q", spec.Name)
		}

		actionNames := map[string]bool{}
		for i, a := range spec.Actions {
			if a == nil {
				return wrapConfig(ErrInvalidAction, "stage %q action %d is nil", spec.Name, i)
			}
			if a.Name() == "" {
				return wrapConfig(ErrInvalidAction, "stage %q action %d has no name", spec.Name, i)
			}
			if actionNames[a.Name()] {
				return wrapConfig(ErrDuplicateAction, "stage %q action %q", spec.Name, a.Name())
			}
			actionNames[a.Name()] = true

			if a.RunOrder() < 1 || a.RunOrder() > 999 {
				return wrapConfig(ErrInvalidRunOrder, "stage %q action %q has run order %d (want 1-999)", spec.Name, a.Name(), a.RunOrder())
			}
			for _, in := range a.Inputs() {
				if in == nil {
					return wrapConfig(ErrInvalidAction, "stage %q action %q has a nil input", spec.Name, a.Name())
				}
			}
			for _, out := range a.Outputs() {
				if out == nil {
					return wrapConfig(ErrInvalidAction, "stage %q action %q has a nil output", spec.Name, a.Name())
				}
			}
			if bd, ok := a.(*BucketDeployAction); ok && !bd.props.Extract && bd.props.ObjectKey == "" {
				return wrapConfig(ErrInvalidAction, "stage %q action %q needs an object key when extract is off", spec.Name, a.Name())
			}
			if sd, ok := a.(*StackDeployAction); ok {
				if sd.props.StackName == "" {
					return wrapConfig(ErrInvalidAction, "stage %q action %q has no stack name", spec.Name, a.Name())
				}
				if sd.props.Template.Artifact == nil || sd.props.Template.Path == "" {
					return wrapConfig(ErrInvalidAction, "stage %q action %q has no template path", spec.Name, a.Name())
				}
			}
		}
	}
	return nil
}

// nameArtifacts gives unnamed outputs a name derived from their producer.
func nameArtifacts(specs []StageSpec) {
	for _, spec := range specs {
		for _, a := range spec.Actions {
			unnamed := 0
			for _, out := range a.Outputs() {
				if out.name != "" {
					continue
				}
				unnamed++
				out.name = fmt.Sprintf("Artifact_%s_%s", spec.Name, a.Name())
				if unnamed > 1 {
					out.name = fmt.Sprintf("%s_%d", out.name, unnamed)
				}
			}
		}
	}
}

func checkSource(specs []StageSpec) error {
	var sources []string
	for i, spec := range specs {
		for _, a := range spec.Actions {
			if a.Category() != CategorySource {
				if i == 0 {
					return wrapConfig(ErrSourceStage, "first stage %q may only hold source actions, found %s action %q", spec.Name, a.Category(), a.Name())
				}
				continue
			}
			if i != 0 {
				return wrapConfig(ErrSourceStage, "source action %q is in stage %q, not the first stage", a.Name(), spec.Name)
			}
			if len(a.Inputs()) != 0 || len(a.Outputs()) != 1 {
				return wrapConfig(ErrSourceStage, "source action %q must have no inputs and exactly one output", a.Name())
			}
			sources = append(sources, a.Name())
		}
	}

	switch len(sources) {
	case 1:
		return nil
	case 0:
		return wrapConfig(ErrSourceStage, "no source action")
	default:
		return wrapConfig(ErrSourceStage, "%d source actions %v", len(sources), sources)
	}
}

func (d *Definition) linkArtifacts(specs []StageSpec) error {
	for si, spec := range specs {
		// Register the stage's outputs first so same-stage references can be
		// checked against run order.
		for _, a := range spec.Actions {
			for _, out := range a.Outputs() {
				if prev, ok := d.producers[out.name]; ok {
					return wrapConfig(ErrDuplicateArtifact, "%q produced by %s/%s and %s/%s", out.name, prev.Stage, prev.Action, spec.Name, a.Name())
				}
				d.producers[out.name] = ActionRef{Stage: spec.Name, StageIndex: si, Action: a.Name(), RunOrder: a.RunOrder()}
			}
		}

		for _, a := range spec.Actions {
			ref := ActionRef{Stage: spec.Name, StageIndex: si, Action: a.Name(), RunOrder: a.RunOrder()}
			for _, in := range a.Inputs() {
				if in.name == "" {
					return wrapConfig(ErrDanglingArtifact, "%s/%s consumes an unnamed artifact that no action produces", spec.Name, a.Name())
				}
				producer, ok := d.producers[in.name]
				if !ok {
					return wrapConfig(ErrDanglingArtifact, "%s/%s consumes %q, which no earlier action produces", spec.Name, a.Name(), in.name)
				}
				if producer.StageIndex == si && producer.RunOrder >= a.RunOrder() {
					return wrapConfig(ErrDanglingArtifact, "%s/%s consumes %q, produced by %s at run order %d", spec.Name, a.Name(), in.name, producer.Action, producer.RunOrder)
				}
				d.consumers[in.name] = append(d.consumers[in.name], ref)
			}
		}
	}
	return nil
}

func (d *Definition) runHooks() error {
	for _, stage := range d.stages {
		for _, a := range stage.Actions {
			sd, ok := a.(*StackDeployAction)
			if !ok {
				continue
			}
			for _, hook := range sd.props.Hooks {
				grants, err := hook(HookContext{
					Pipeline:      d.name,
					Stage:         stage.Name,
					Action:        sd,
					ArtifactStore: d.artifactStore,
				})
				if err != nil {
					return err
				}
				d.grants = append(d.grants, grants...)
			}
		}
	}
	return nil
}

// Name returns the pipeline name.
func (d *Definition) Name() string { return d.name }

// ArtifactStore returns the artifact bucket, if one was configured.
func (d *Definition) ArtifactStore() string { return d.artifactStore }

// Stages returns the stages in execution order.
func (d *Definition) Stages() []Stage {
	stages := make([]Stage, len(d.stages))
	for i, s := range d.stages {
		stages[i] = Stage{Name: s.Name, Actions: append([]Action(nil), s.Actions...)}
	}
	return stages
}

// Stage looks up a stage by name.
func (d *Definition) Stage(name string) (Stage, bool) {
	for _, s := range d.Stages() {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Source returns the pipeline's single source action.
func (d *Definition) Source() *SourceAction {
	for _, a := range d.stages[0].Actions {
		if src, ok := a.(*SourceAction); ok {
			return src
		}
	}
	return nil
}

// Artifacts returns every artifact name, sorted.
func (d *Definition) Artifacts() []string {
	return sortedKeys(d.producers)
}

// Producer returns the action that produces the named artifact.
func (d *Definition) Producer(artifact string) (ActionRef, bool) {
	ref, ok := d.producers[artifact]
	return ref, ok
}

// Consumers returns the actions that consume the named artifact.
func (d *Definition) Consumers(artifact string) []ActionRef {
	return append([]ActionRef(nil), d.consumers[artifact]...)
}

// Grants returns the permission grants contributed by deploy hooks.
func (d *Definition) Grants() []Grant {
	return append([]Grant(nil), d.grants...)
}

// Dependency links an artifact to the action producing it and the actions reading it.
type Dependency struct {
	Artifact  string
	Producer  ActionRef
	Consumers []ActionRef
}

// Dependencies returns one entry per artifact, sorted by artifact name.
func (d *Definition) Dependencies() []Dependency {
	deps := make([]Dependency, 0, len(d.producers))
	for _, name := range d.Artifacts() {
		deps = append(deps, Dependency{
			Artifact:  name,
			Producer:  d.producers[name],
			Consumers: d.Consumers(name),
		})
	}
	return deps
}

// PlannedStage is a stage with its actions split into run-order groups.
type PlannedStage struct {
	Name   string
	Groups [][]Action
}

// Plan returns the execution plan: stages in order, each with its
// run-order groups in ascending order.
func (d *Definition) Plan() []PlannedStage {
	plan := make([]PlannedStage, 0, len(d.stages))
	for _, s := range d.stages {
		plan = append(plan, PlannedStage{Name: s.Name, Groups: s.Groups()})
	}
	return plan
}
