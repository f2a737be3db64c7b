package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/github"
	"stackline/src/logger"
	"stackline/src/secrets"
	"stackline/src/store"
)

func TestMapState(t *testing.T) {
	tests := []struct {
		status string
		want   github.State
	}{
		{"InProgress", github.StatePending},
		{"Failed", github.StateFailure},
		{"Succeeded", github.StateSuccess},
		{"Stopped", github.StateError},
		{"Superseded", github.StateError},
		{"", github.StateError},
	}

	for _, tt := range tests {
		if got := MapState(tt.status); got != tt.want {
			t.Errorf("MapState(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

type recordedStatus struct {
	owner, repo, sha string
	req              github.StatusRequest
}

type fakeReporter struct {
	calls []recordedStatus
	err   error
}

func (f *fakeReporter) CreateStatus(ctx context.Context, owner, repo, sha string, req github.StatusRequest) (*github.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, recordedStatus{owner, repo, sha, req})
	return &github.Status{State: req.State}, nil
}

func seededStore(t *testing.T, rec *contracts.ExecutionRecord) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	if err := s.CreateExecution(context.Background(), rec); err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}
	return s
}

func TestHook_Report(t *testing.T) {
	s := seededStore(t, &contracts.ExecutionRecord{
		PipelineName: "production-pipeline",
		ExecutionID:  "e-1",
		Status:       "InProgress",
		Revisions: []contracts.SourceRevision{
			{RevisionID: "0123abc", RevisionURL: "https://github.com/acme/infra/commit/0123abc"},
		},
	})
	reporter := &fakeReporter{}
	h := New(s, reporter, logger.NewSilentLogger())

	_, err := h.Report(context.Background(), "eu-west-2", contracts.PipelineStateDetail{Pipeline: "production-pipeline", ExecutionID: "e-1"})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	if len(reporter.calls) != 1 {
		t.Fatalf("Expected 1 status, got %d", len(reporter.calls))
	}
	call := reporter.calls[0]
	if call.owner != "acme" || call.repo != "infra" || call.sha != "0123abc" {
		t.Errorf("target = %s/%s@%s", call.owner, call.repo, call.sha)
	}
	if call.req.State != github.StatePending {
		t.Errorf("state = %q, want pending", call.req.State)
	}
	if call.req.Description != "InProgress: Execution e-1" {
		t.Errorf("description = %q", call.req.Description)
	}
	if call.req.Context != DefaultContext {
		t.Errorf("context = %q", call.req.Context)
	}
	want := "https://eu-west-2.console.aws.amazon.com/codesuite/codepipeline/pipelines/production-pipeline/executions/e-1/visualization?region=eu-west-2"
	if call.req.TargetURL != want {
		t.Errorf("target_url = %q, want %q", call.req.TargetURL, want)
	}
}

func TestHook_ReportErrors(t *testing.T) {
	tests := []struct {
		name      string
		revisions []contracts.SourceRevision
		kind      errs.Kind
	}{
		{name: "no revisions", revisions: nil, kind: errs.KindParse},
		{name: "no revision id", revisions: []contracts.SourceRevision{{RevisionURL: "https://github.com/a/b"}}, kind: errs.KindParse},
		{name: "no revision url", revisions: []contracts.SourceRevision{{RevisionID: "abc"}}, kind: errs.KindParse},
		{name: "not github", revisions: []contracts.SourceRevision{{RevisionID: "abc", RevisionURL: "https://example.com/a/b"}}, kind: errs.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore(t, &contracts.ExecutionRecord{PipelineName: "p", ExecutionID: "e", Status: "Failed", Revisions: tt.revisions})
			reporter := &fakeReporter{}

			_, err := New(s, reporter, logger.NewSilentLogger()).Report(context.Background(), "eu-west-2", contracts.PipelineStateDetail{Pipeline: "p", ExecutionID: "e"})
			if got := errs.KindOf(err); got != tt.kind {
				t.Errorf("KindOf(err) = %q, want %q (err %v)", got, tt.kind, err)
			}
			if len(reporter.calls) != 0 {
				t.Errorf("Expected no status, got %d", len(reporter.calls))
			}
		})
	}
}

func TestHook_HandleNeverFails(t *testing.T) {
	s := store.NewMemoryStore()
	reporter := &fakeReporter{err: errors.New("github down")}
	h := New(s, reporter, logger.NewSilentLogger(), WithContext("Custom / Context"))

	events := []string{
		`{`,
		`{"detail":{}}`,
		`{"region":"eu-west-2","detail":{"pipeline":"p","execution-id":"missing"}}`,
	}
	for _, raw := range events {
		if err := h.Handle(context.Background(), json.RawMessage(raw)); err != nil {
			t.Errorf("Handle(%s) error = %v, want nil", raw, err)
		}
	}
}

func TestHook_HandleReportsEvent(t *testing.T) {
	s := seededStore(t, &contracts.ExecutionRecord{
		PipelineName: "p",
		ExecutionID:  "e-9",
		Status:       "Succeeded",
		Revisions:    []contracts.SourceRevision{{RevisionID: "sha", RevisionURL: "https://github.com/acme/infra"}},
	})
	reporter := &fakeReporter{}
	h := New(s, reporter, logger.NewSilentLogger(), WithContext("Custom / Context"))

	raw := `{"source":"aws.codepipeline","detail-type":"CodePipeline Pipeline Execution State Change","region":"us-east-1","detail":{"pipeline":"p","execution-id":"e-9","state":"SUCCEEDED"}}`
	if err := h.Handle(context.Background(), json.RawMessage(raw)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(reporter.calls) != 1 {
		t.Fatalf("Expected 1 status, got %d", len(reporter.calls))
	}
	if reporter.calls[0].req.State != github.StateSuccess || reporter.calls[0].req.Context != "Custom / Context" {
		t.Errorf("request = %+v", reporter.calls[0].req)
	}
}

func TestTokenReporter(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1,"state":"success"}`))
	}))
	defer server.Close()

	provider := secrets.NewMemoryProvider(map[string]string{"github": "ghp_token"})
	r := NewTokenReporter(provider, "github").WithBaseURL(server.URL)

	if _, err := r.CreateStatus(context.Background(), "acme", "infra", "sha", github.StatusRequest{State: github.StateSuccess}); err != nil {
		t.Fatalf("CreateStatus() error = %v", err)
	}
	if auth != "Bearer ghp_token" {
		t.Errorf("Authorization = %q", auth)
	}

	_, err := NewTokenReporter(provider, "").CreateStatus(context.Background(), "a", "b", "c", github.StatusRequest{})
	if !errs.IsConfiguration(err) {
		t.Errorf("error = %v, want ConfigurationError", err)
	}
}

type countingSource struct {
	calls int
}

func (c *countingSource) GetExecution(ctx context.Context, pipeline, executionID string) (*contracts.ExecutionRecord, error) {
	c.calls++
	return nil, errors.New("unexpected lookup")
}

func TestHook_ReportChecksSecretFirst(t *testing.T) {
	source := &countingSource{}
	reporter := NewTokenReporter(secrets.NewMemoryProvider(nil), "")

	_, err := New(source, reporter, logger.NewSilentLogger()).Report(context.Background(), "eu-west-2",
		contracts.PipelineStateDetail{Pipeline: "production-pipeline", ExecutionID: "exec-1", State: "STARTED"})
	if !errs.IsConfiguration(err) {
		t.Errorf("Report() error = %v, want ConfigurationError", err)
	}
	if source.calls != 0 {
		t.Errorf("GetExecution called %d times, want 0", source.calls)
	}
}
