package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stackline/src/broker"
	"stackline/src/contracts"
	"stackline/src/eventbus"
	"stackline/src/logger"
	"stackline/src/producer"
	"stackline/src/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *broker.InMemoryBroker, *store.MemoryStore) {
	t.Helper()
	b := broker.NewInMemoryBroker()
	t.Cleanup(func() { b.Close() })

	executions := store.NewMemoryStore()
	p := producer.New(eventbus.NewBrokerBus(b, "eu-west-2"), logger.NewSilentLogger(),
		producer.WithIDGenerator(func() string { return "corr-1" }))
	srv := httptest.NewServer(New(p, executions, logger.NewSilentLogger()).Routes())
	t.Cleanup(srv.Close)
	return srv, b, executions
}

func TestProduce(t *testing.T) {
	srv, b, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := b.Subscribe(ctx, contracts.TopicEvents, "test")
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(srv.URL+"/eventbridge-producer", "application/json", strings.NewReader(`{"status":"active"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	var result eventbus.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(result.Entries) != 1 || result.FailedEntryCount != 0 {
		t.Errorf("result = %+v", result)
	}

	select {
	case msg := <-msgs:
		evt, err := contracts.DecodeBusEvent(msg.Value)
		if err != nil {
			t.Fatal(err)
		}
		if evt.Source != contracts.SourceProducer {
			t.Errorf("Source = %q", evt.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestProduce_InvalidBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, body := range []string{"", "not json", `{"other":1}`} {
		resp, err := http.Post(srv.URL+"/eventbridge-producer", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("body %q: StatusCode = %d, want 500", body, resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("body %q: missing CORS header", body)
		}
	}
}

func TestPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/eventbridge-producer", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST" {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST", got)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestExecutions(t *testing.T) {
	srv, _, executions := newTestServer(t)
	err := executions.CreateExecution(context.Background(), &contracts.ExecutionRecord{
		PipelineName: "production-pipeline",
		ExecutionID:  "exec-1",
		Status:       contracts.StatusSucceeded,
		StartedAt:    time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/pipelines/production-pipeline/executions/exec-1")
	if err != nil {
		t.Fatal(err)
	}
	var rec contracts.ExecutionRecord
	err = json.NewDecoder(resp.Body).Decode(&rec)
	resp.Body.Close()
	if err != nil || rec.Status != contracts.StatusSucceeded {
		t.Errorf("execution = %+v, %v", rec, err)
	}

	resp, err = http.Get(srv.URL + "/pipelines/production-pipeline/executions/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/pipelines/production-pipeline/executions?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	var recs []contracts.ExecutionRecord
	err = json.NewDecoder(resp.Body).Decode(&recs)
	resp.Body.Close()
	if err != nil || len(recs) != 1 {
		t.Errorf("list = %+v, %v", recs, err)
	}

	resp, err = http.Get(srv.URL + "/pipelines/production-pipeline/executions?limit=zero")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", resp.StatusCode)
	}
}
