// Package orchestrator runs pipeline definitions locally. Stages run one
// after another, run-order groups within a stage run in ascending order and
// the actions of a group run concurrently. The first failing action cancels
// its group and fails the execution.
//
// Every state change is published to the broker as a CodePipeline-style
// state change event and recorded in the execution store, so the status
// hook, the watch view and the MCP tools see local runs the same way they
// see hosted ones.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stackline/src/broker"
	"stackline/src/contracts"
	"stackline/src/logger"
	"stackline/src/pipeline"
	"stackline/src/sanitize"
	"stackline/src/store"
)

// publishTimeout bounds each state change publish, including the final ones
// sent after the run's context is canceled.
const publishTimeout = 5 * time.Second

// Orchestrator executes pipeline definitions.
type Orchestrator struct {
	runner   Runner
	broker   broker.Broker
	store    store.Store
	log      logger.Logger
	region   string
	workRoot string
	newID    func() string
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner sets the action runner. The default is DryRunner.
func WithRunner(r Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithBroker publishes state changes to b.
func WithBroker(b broker.Broker) Option {
	return func(o *Orchestrator) { o.broker = b }
}

// WithStore records executions in s.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithRegion sets the region carried by state change events.
func WithRegion(region string) Option {
	return func(o *Orchestrator) { o.region = region }
}

// WithWorkspace keeps artifact directories under root instead of the
// system temp directory.
func WithWorkspace(root string) Option {
	return func(o *Orchestrator) { o.workRoot = root }
}

// WithIDGenerator replaces the execution id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

// New creates an Orchestrator.
func New(log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner: DryRunner{},
		log:    log,
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workRoot == "" {
		o.workRoot = filepath.Join(os.TempDir(), "stackline")
	}
	return o
}

// Run executes def once. revision pins the source commit; empty takes the
// branch head. The returned record is the final state of the execution and
// is non-nil even when the execution fails.
func (o *Orchestrator) Run(ctx context.Context, def *pipeline.Definition, revision string) (*contracts.ExecutionRecord, error) {
	id := o.newID()
	e := &execution{
		o:         o,
		def:       def,
		revision:  revision,
		ws:        &Workspace{Root: filepath.Join(o.workRoot, def.Name(), id)},
		plan:      def.Plan(),
		locations: pipeline.Locations{},
		log:       o.log.With("pipeline", def.Name(), "executionId", id),
	}
	e.rec = newRecord(def, e.plan, id, o.now())
	e.seq = NewSequencer(len(e.plan))

	if o.store != nil {
		if err := o.store.CreateExecution(ctx, e.rec.Clone()); err != nil {
			return e.rec.Clone(), fmt.Errorf("failed to record execution: %w", err)
		}
	}

	if err := e.seq.Start(); err != nil {
		return e.rec.Clone(), err
	}
	e.log.Info("Execution started", "stages", len(e.plan))
	e.setStatus(contracts.StatusInProgress, "")
	e.save(ctx)
	e.publish(ctx, contracts.DetailTypePipelineExecution, contracts.PipelineStateDetail{State: contracts.StateStarted})

	for i, stage := range e.plan {
		e.setStageStatus(i, contracts.StatusInProgress)
		e.save(ctx)
		e.publish(ctx, contracts.DetailTypeStageExecution, contracts.PipelineStateDetail{State: contracts.StateStarted, Stage: stage.Name})

		if err := e.runStage(ctx, i, stage); err != nil {
			if ferr := e.seq.Fail(); ferr != nil {
				return e.rec.Clone(), ferr
			}
			msg := sanitize.Clean(err.Error())
			e.setStageStatus(i, contracts.StatusFailed)
			e.setStatus(contracts.StatusFailed, msg)
			e.save(ctx)
			e.publish(ctx, contracts.DetailTypeStageExecution, contracts.PipelineStateDetail{State: contracts.StateFailed, Stage: stage.Name, Message: msg})
			e.publish(ctx, contracts.DetailTypePipelineExecution, contracts.PipelineStateDetail{State: contracts.StateFailed, Message: msg})
			e.log.Error("Execution failed", "stage", stage.Name, "error", err)
			return e.rec.Clone(), err
		}

		e.setStageStatus(i, contracts.StatusSucceeded)
		e.save(ctx)
		e.publish(ctx, contracts.DetailTypeStageExecution, contracts.PipelineStateDetail{State: contracts.StateSucceeded, Stage: stage.Name})
		if err := e.seq.Advance(); err != nil {
			return e.rec.Clone(), err
		}
	}

	e.setStatus(contracts.StatusSucceeded, "")
	e.save(ctx)
	e.publish(ctx, contracts.DetailTypePipelineExecution, contracts.PipelineStateDetail{State: contracts.StateSucceeded})
	e.log.Info("Execution succeeded")
	return e.rec.Clone(), nil
}

type execution struct {
	o        *Orchestrator
	def      *pipeline.Definition
	plan     []pipeline.PlannedStage
	revision string
	ws       *Workspace
	seq      *Sequencer
	log      logger.Logger

	mu        sync.Mutex
	rec       *contracts.ExecutionRecord
	locations pipeline.Locations

	saveMu sync.Mutex
}

func newRecord(def *pipeline.Definition, plan []pipeline.PlannedStage, id string, now time.Time) *contracts.ExecutionRecord {
	rec := &contracts.ExecutionRecord{
		PipelineName: def.Name(),
		ExecutionID:  id,
		Status:       contracts.StatusPending,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	for _, stage := range plan {
		sr := contracts.StageRecord{Name: stage.Name, Status: contracts.StatusPending}
		for _, group := range stage.Groups {
			for _, a := range group {
				sr.Actions = append(sr.Actions, contracts.ActionRecord{
					Name:     a.Name(),
					Category: string(a.Category()),
					RunOrder: a.RunOrder(),
					Status:   contracts.StatusPending,
				})
			}
		}
		rec.Stages = append(rec.Stages, sr)
	}
	return rec
}

// runStage runs the stage's groups in order; the actions of a group run
// concurrently and the first failure cancels the rest of the group.
func (e *execution) runStage(ctx context.Context, si int, stage pipeline.PlannedStage) error {
	for _, group := range stage.Groups {
		g, gctx := errgroup.WithContext(ctx)
		for _, a := range group {
			g.Go(func() error {
				return e.runAction(gctx, si, stage.Name, a)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (e *execution) runAction(ctx context.Context, si int, stage string, a pipeline.Action) error {
	state := contracts.PipelineStateDetail{Stage: stage, Action: a.Name(), Category: string(a.Category())}
	log := e.log.With("stage", stage, "action", a.Name())

	e.setActionStatus(si, a.Name(), contracts.StatusInProgress, "")
	state.State = contracts.StateStarted
	e.save(ctx)
	e.publish(ctx, contracts.DetailTypeActionExecution, state)

	job := Job{
		Pipeline:      e.def.Name(),
		ExecutionID:   e.rec.ExecutionID,
		Stage:         stage,
		Action:        a,
		Workspace:     e.ws,
		ArtifactStore: e.def.ArtifactStore(),
		Revision:      e.revision,
	}

	res, err := e.resolve(&job)
	if err == nil {
		res, err = e.o.runner.Run(ctx, job)
	}
	if err != nil {
		status, evtState := contracts.StatusFailed, contracts.StateFailed
		if errors.Is(err, context.Canceled) {
			status, evtState = contracts.StatusStopped, contracts.StateCanceled
		}
		msg := sanitize.Clean(err.Error())
		e.setActionStatus(si, a.Name(), status, msg)
		state.State, state.Message = evtState, msg
		e.save(ctx)
		e.publish(ctx, contracts.DetailTypeActionExecution, state)
		log.Warn("Action did not succeed", "status", status, "error", err)
		return fmt.Errorf("%s/%s: %w", stage, a.Name(), err)
	}

	e.recordResult(job, res)
	e.setActionStatus(si, a.Name(), contracts.StatusSucceeded, res.Message)
	state.State, state.Message = contracts.StateSucceeded, res.Message
	e.save(ctx)
	e.publish(ctx, contracts.DetailTypeActionExecution, state)
	log.Info("Action succeeded", "message", res.Message)
	return nil
}

// resolve substitutes recorded artifact locations into a stack
// deployment's parameter overrides.
func (e *execution) resolve(job *Job) (Result, error) {
	sd, ok := job.Action.(*pipeline.StackDeployAction)
	if !ok {
		return Result{}, nil
	}
	e.mu.Lock()
	locations := make(pipeline.Locations, len(e.locations))
	for k, v := range e.locations {
		locations[k] = v
	}
	e.mu.Unlock()

	params, err := sd.Parameters().Resolve(locations)
	if err != nil {
		return Result{}, err
	}
	job.Parameters = params
	return Result{}, nil
}

func (e *execution) recordResult(job Job, res Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, out := range job.Action.Outputs() {
		loc, ok := res.Outputs[out.Name()]
		if !ok {
			loc = job.Location(out.Name())
		}
		e.locations[out.Name()] = loc
	}
	if res.Revision != nil {
		e.rec.Revisions = append(e.rec.Revisions, *res.Revision)
	}
}

func (e *execution) setStatus(status, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.Status = status
	e.rec.Error = msg
	e.rec.UpdatedAt = e.o.now()
}

func (e *execution) setStageStatus(si int, status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.Stages[si].Status = status
	e.rec.UpdatedAt = e.o.now()
}

func (e *execution) setActionStatus(si int, action, status, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rec.Stages[si].Actions {
		ar := &e.rec.Stages[si].Actions[i]
		if ar.Name == action {
			ar.Status = status
			ar.Message = msg
		}
	}
	e.rec.UpdatedAt = e.o.now()
}

// save writes a snapshot of the record. Store failures are logged; they
// never fail the execution.
func (e *execution) save(ctx context.Context) {
	if e.o.store == nil {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	snapshot := e.rec.Clone()
	e.mu.Unlock()

	if err := e.o.store.UpdateExecution(context.WithoutCancel(ctx), snapshot); err != nil {
		e.log.Warn("Failed to record execution state", "error", err)
	}
}

// publish emits a state change event. Publish failures are logged.
func (e *execution) publish(ctx context.Context, detailType string, detail contracts.PipelineStateDetail) {
	if e.o.broker == nil {
		return
	}
	detail.Pipeline = e.def.Name()
	detail.ExecutionID = e.rec.ExecutionID

	data, err := json.Marshal(detail)
	if err != nil {
		e.log.Warn("Failed to encode state change", "error", err)
		return
	}
	evt := contracts.BusEvent{
		Version:    "0",
		ID:         uuid.NewString(),
		DetailType: detailType,
		Source:     contracts.SourceCodePipeline,
		Time:       e.o.now().UTC(),
		Region:     e.o.region,
		Resources:  []string{"arn:aws:codepipeline:" + e.o.region + "::" + e.def.Name()},
		Detail:     data,
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := broker.PublishJSON(pctx, e.o.broker, contracts.TopicPipelineState, e.rec.ExecutionID, evt); err != nil {
		e.log.Warn("Failed to publish state change", "error", err)
	}
}
