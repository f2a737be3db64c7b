package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"stackline/src/alerting"
	"stackline/src/archive"
	"stackline/src/broker"
	"stackline/src/consumer"
	"stackline/src/contracts"
	"stackline/src/eventbus"
	"stackline/src/github"
	"stackline/src/logger"
	"stackline/src/producer"
	"stackline/src/secrets"
	"stackline/src/status"
	"stackline/src/storage"
	"stackline/src/store"
)

func start(t *testing.T, ctx context.Context, a *Agent) {
	t.Helper()
	go func() { _ = a.Run(ctx) }()
	select {
	case <-a.Ready():
	case <-time.After(time.Second):
		t.Fatalf("%s agent did not subscribe", a.Name())
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRule_Matches(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		evt  contracts.BusEvent
		want bool
	}{
		{"empty rule", Rule{}, contracts.BusEvent{Source: "x"}, true},
		{"source match", Rule{Sources: []string{"com.ian"}}, contracts.BusEvent{Source: "com.ian", DetailType: "any"}, true},
		{"source mismatch", Rule{Sources: []string{"com.ian"}}, contracts.BusEvent{Source: "aws.s3"}, false},
		{"detail type mismatch", Rule{Sources: []string{"com.ian"}, DetailTypes: []string{"AWS Lambda event"}}, contracts.BusEvent{Source: "com.ian", DetailType: "other"}, false},
		{"both match", Rule{Sources: []string{"com.ian"}, DetailTypes: []string{"AWS Lambda event"}}, contracts.BusEvent{Source: "com.ian", DetailType: "AWS Lambda event"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(&tt.evt); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArchiveAgent_StoresProducedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := broker.NewInMemoryBroker()
	defer b.Close()

	objects := storage.NewMemoryStore()
	start(t, ctx, NewArchiveAgent(b, archive.New(objects, "event-archive-production", "", logger.NewSilentLogger()), logger.NewSilentLogger()))

	h := producer.New(eventbus.NewBrokerBus(b, "eu-west-2"), logger.NewSilentLogger(),
		producer.WithIDGenerator(func() string { return "corr-1" }))
	result, err := h.Produce(ctx, `{"status":"active"}`)
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if result.FailedEntryCount != 0 || len(result.Entries) != 1 {
		t.Fatalf("result = %+v", result)
	}

	eventually(t, "archived event", func() bool {
		_, ok := objects.Get("event-archive-production", "corr-1")
		return ok
	})

	obj, _ := objects.Get("event-archive-production", "corr-1")
	var evt contracts.BusEvent
	if err := json.Unmarshal(obj.Body, &evt); err != nil {
		t.Fatalf("archived body is not an event: %v", err)
	}
	if evt.Source != contracts.SourceProducer || evt.DetailType != contracts.DetailTypeLambdaEvent {
		t.Errorf("archived event = %+v", evt)
	}
}

func TestArchiveAgent_IgnoresOtherEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := broker.NewInMemoryBroker()
	defer b.Close()

	objects := storage.NewMemoryStore()
	a := NewArchiveAgent(b, archive.New(objects, "bucket", "", logger.NewSilentLogger()), logger.NewSilentLogger())
	start(t, ctx, a)

	other := contracts.BusEvent{ID: "1", Source: "aws.s3", DetailType: contracts.DetailTypeLambdaEvent, Detail: json.RawMessage(`{"correlationId":"c"}`)}
	if err := broker.PublishJSON(ctx, b, contracts.TopicEvents, "1", other); err != nil {
		t.Fatal(err)
	}
	matching := contracts.BusEvent{ID: "2", Source: contracts.SourceProducer, DetailType: contracts.DetailTypeLambdaEvent, Detail: json.RawMessage(`{"status":"s","correlationId":"d"}`)}
	if err := broker.PublishJSON(ctx, b, contracts.TopicEvents, "2", matching); err != nil {
		t.Fatal(err)
	}

	eventually(t, "matching event archived", func() bool {
		_, ok := objects.Get("bucket", "d")
		return ok
	})
	if objects.Len() != 1 {
		t.Errorf("Expected 1 archived object, got %d", objects.Len())
	}
}

type recordingReporter struct {
	mu    sync.Mutex
	calls []github.StatusRequest
	shas  []string
}

func (r *recordingReporter) CreateStatus(ctx context.Context, owner, repo, sha string, req github.StatusRequest) (*github.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	r.shas = append(r.shas, owner+"/"+repo+"@"+sha)
	return &github.Status{State: req.State}, nil
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestStatusAgent_ReportsExecutionChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := broker.NewInMemoryBroker()
	defer b.Close()

	executions := store.NewMemoryStore()
	err := executions.CreateExecution(ctx, &contracts.ExecutionRecord{
		PipelineName: "production-pipeline",
		ExecutionID:  "exec-1",
		Status:       contracts.StatusInProgress,
		Revisions: []contracts.SourceRevision{{
			RevisionID:  "abc123",
			RevisionURL: "https://github.com/lukehedger/infra-as-node/commit/abc123",
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	reporter := &recordingReporter{}
	hook := status.New(executions, reporter, logger.NewSilentLogger())
	start(t, ctx, NewStatusAgent(b, hook, logger.NewSilentLogger()))

	publish := func(detailType string, detail contracts.PipelineStateDetail) {
		data, _ := json.Marshal(detail)
		evt := contracts.BusEvent{ID: detailType, Source: contracts.SourceCodePipeline, DetailType: detailType, Region: "eu-west-2", Detail: data}
		if err := broker.PublishJSON(ctx, b, contracts.TopicPipelineState, "exec-1", evt); err != nil {
			t.Fatal(err)
		}
	}
	// Stage changes are not reported.
	publish(contracts.DetailTypeStageExecution, contracts.PipelineStateDetail{Pipeline: "production-pipeline", ExecutionID: "exec-1", Stage: "Build", State: "STARTED"})
	publish(contracts.DetailTypePipelineExecution, contracts.PipelineStateDetail{Pipeline: "production-pipeline", ExecutionID: "exec-1", State: "STARTED"})

	eventually(t, "commit status", func() bool { return reporter.count() == 1 })
	time.Sleep(20 * time.Millisecond)

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	if len(reporter.calls) != 1 {
		t.Fatalf("Expected 1 status, got %d", len(reporter.calls))
	}
	if reporter.calls[0].State != github.StatePending {
		t.Errorf("State = %q, want pending", reporter.calls[0].State)
	}
	if reporter.shas[0] != "lukehedger/infra-as-node@abc123" {
		t.Errorf("target = %q", reporter.shas[0])
	}
}

func TestAlertingAgent_DeadLettersFailedNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var posts sync.WaitGroup
	posts.Add(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer posts.Done()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := broker.NewInMemoryBroker()
	defer b.Close()
	deadLetters, err := b.Subscribe(ctx, contracts.TopicDeadLetter, "test")
	if err != nil {
		t.Fatal(err)
	}

	provider := secrets.NewMemoryProvider(map[string]string{
		"dev/Tread/SlackWebhook": `{"SLACK_WEBHOOK_URL":"` + srv.URL + `"}`,
	})
	notifier := alerting.New(provider, "dev/Tread/SlackWebhook", logger.NewSilentLogger())
	start(t, ctx, NewAlertingAgent(b, notifier, logger.NewSilentLogger()))

	note := contracts.Notification{MessageID: "m-1", Message: "deploy failed"}
	if err := broker.PublishJSON(ctx, b, contracts.TopicNotifications, "m-1", note); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-deadLetters:
		var dl contracts.DeadLetter
		if err := json.Unmarshal(msg.Value, &dl); err != nil {
			t.Fatalf("invalid dead letter: %v", err)
		}
		if dl.Topic != contracts.TopicNotifications || dl.Key != "m-1" {
			t.Errorf("dead letter = %+v", dl)
		}
		var body contracts.Notification
		if err := json.Unmarshal(dl.Body, &body); err != nil || body.Message != "deploy failed" {
			t.Errorf("dead letter body = %s", dl.Body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dead letter published")
	}
	posts.Wait()
}

func TestDeadLetterAgent(t *testing.T) {
	b := broker.NewInMemoryBroker()
	defer b.Close()

	a := NewDeadLetterAgent(b, consumer.NewDeadLetterConsumer(logger.NewSilentLogger()), logger.NewSilentLogger())

	good, _ := json.Marshal(contracts.DeadLetter{Topic: "t", Key: "k", Body: json.RawMessage(`{"a":1}`)})
	if err := a.handle(context.Background(), broker.Message{Value: good}); err != nil {
		t.Errorf("handle() error = %v", err)
	}

	err := a.handle(context.Background(), broker.Message{Value: []byte("not json")})
	if err == nil {
		t.Error("handle() should reject a malformed dead letter")
	}
}

func TestAgent_RunStopsOnCancel(t *testing.T) {
	b := broker.NewInMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := NewConsumerAgent(b, consumer.NewEventConsumer(logger.NewSilentLogger()), logger.NewSilentLogger())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	<-a.Ready()
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestAgent_RunAgainAfterStop(t *testing.T) {
	b := broker.NewInMemoryBroker()
	defer b.Close()

	a := NewConsumerAgent(b, consumer.NewEventConsumer(logger.NewSilentLogger()), logger.NewSilentLogger())
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- a.Run(ctx) }()
		<-a.Ready()
		cancel()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("run %d: Run() error = %v", i, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("run %d: Run() did not return after cancel", i)
		}
	}
}
