package platform

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"stackline/src/config"
	"stackline/src/contracts"
	"stackline/src/eventbus"
	"stackline/src/github"
	"stackline/src/logger"
	"stackline/src/orchestrator"
	"stackline/src/producer"
	"stackline/src/stacks"
	"stackline/src/storage"
)

type recordingReporter struct {
	mu     sync.Mutex
	states []github.State
}

func (r *recordingReporter) CreateStatus(ctx context.Context, owner, repo, sha string, req github.StatusRequest) (*github.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, req.State)
	return &github.Status{State: req.State}, nil
}

func (r *recordingReporter) has(state github.State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == state {
			return true
		}
	}
	return false
}

func setup(t *testing.T) (context.Context, *Platform, *Services, *config.Config) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatal(err)
	}
	p, err := Open(ctx, cfg, logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })

	svc, err := NewServices(ctx, cfg)
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	return ctx, p, svc, cfg
}

// TestEndToEnd_ExecutionReportsCommitStatus runs the production pipeline
// and checks the status agent reports the outcome on the source commit.
func TestEndToEnd_ExecutionReportsCommitStatus(t *testing.T) {
	ctx, p, svc, cfg := setup(t)
	reporter := &recordingReporter{}
	svc.Reporter = reporter

	if _, err := StartAgents(ctx, p, svc, cfg, logger.NewSilentLogger()); err != nil {
		t.Fatalf("StartAgents() error = %v", err)
	}
	changes, err := p.Stream(ctx, "test", "exec-1")
	if err != nil {
		t.Fatal(err)
	}

	def, err := stacks.Pipeline(cfg, stacks.NewInfrastructure(cfg), logger.NewSilentLogger())
	if err != nil {
		t.Fatal(err)
	}
	o := orchestrator.New(logger.NewSilentLogger(),
		orchestrator.WithBroker(p.Broker),
		orchestrator.WithStore(p.Store),
		orchestrator.WithWorkspace(t.TempDir()),
		orchestrator.WithIDGenerator(func() string { return "exec-1" }),
	)
	rec, err := o.Run(ctx, def, "abc123")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.Status != contracts.StatusSucceeded {
		t.Fatalf("Status = %q, want Succeeded", rec.Status)
	}

	var last StateChange
	timeout := time.After(2 * time.Second)
	for last.Level() != "pipeline" || last.State != contracts.StateSucceeded {
		select {
		case last = <-changes:
		case <-timeout:
			t.Fatalf("no pipeline SUCCEEDED change streamed, last = %+v", last)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for !reporter.has(github.StateSuccess) {
		if time.Now().After(deadline) {
			t.Fatal("status agent did not report success")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEndToEnd_ProducedEventsAreArchived(t *testing.T) {
	ctx, p, svc, cfg := setup(t)
	if _, err := StartAgents(ctx, p, svc, cfg, logger.NewSilentLogger()); err != nil {
		t.Fatalf("StartAgents() error = %v", err)
	}

	h := producer.New(eventbus.NewBrokerBus(p.Broker, cfg.AWSRegion), logger.NewSilentLogger(),
		producer.WithIDGenerator(func() string { return "corr-9" }))
	if _, err := h.Produce(ctx, `{"status":"ok"}`); err != nil {
		t.Fatalf("Produce() error = %v", err)
	}

	objects := svc.Objects.(*storage.MemoryStore)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if obj, ok := objects.Get(svc.ArchiveBucket, "corr-9"); ok {
			var evt contracts.BusEvent
			if err := json.Unmarshal(obj.Body, &evt); err != nil {
				t.Fatalf("archived body is not an event: %v", err)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("produced event was not archived")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
