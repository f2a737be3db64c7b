// Package status reports pipeline execution state to the commit that
// triggered the execution.
package status

import (
	"context"
	"encoding/json"
	"fmt"

	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/github"
	"stackline/src/logger"
	"stackline/src/secrets"
)

// DefaultContext labels the commit status.
const DefaultContext = "Integration Infrastructure / CodePipeline"

// ExecutionSource looks up execution details by id.
type ExecutionSource interface {
	GetExecution(ctx context.Context, pipeline, executionID string) (*contracts.ExecutionRecord, error)
}

// Reporter sets commit statuses.
type Reporter interface {
	CreateStatus(ctx context.Context, owner, repo, sha string, status github.StatusRequest) (*github.Status, error)
}

// Checker is implemented by reporters that can tell up front whether they
// are configured. Hook checks before looking up the execution.
type Checker interface {
	Check() error
}

// MapState translates an execution status into a commit status state.
// Unrecognized values map to error.
func MapState(status string) github.State {
	switch status {
	case contracts.StatusInProgress:
		return github.StatePending
	case contracts.StatusFailed:
		return github.StateFailure
	case contracts.StatusSucceeded:
		return github.StateSuccess
	default:
		return github.StateError
	}
}

// ConsoleURL links to the execution's visualization in the AWS console.
func ConsoleURL(region, pipeline, executionID string) string {
	return fmt.Sprintf("https://%s.console.aws.amazon.com/codesuite/codepipeline/pipelines/%s/executions/%s/visualization?region=%s",
		region, pipeline, executionID, region)
}

// Hook reports execution state changes as commit statuses.
type Hook struct {
	source   ExecutionSource
	reporter Reporter
	context  string
	log      logger.Logger
}

// Option configures a Hook.
type Option func(*Hook)

// WithContext overrides the commit status context label.
func WithContext(label string) Option {
	return func(h *Hook) {
		if label != "" {
			h.context = label
		}
	}
}

// New creates a Hook.
func New(source ExecutionSource, reporter Reporter, log logger.Logger, opts ...Option) *Hook {
	h := &Hook{source: source, reporter: reporter, context: DefaultContext, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Report looks up the execution named by change, finds the revision that
// triggered it and sets the matching commit status.
func (h *Hook) Report(ctx context.Context, region string, change contracts.PipelineStateDetail) (github.StatusRequest, error) {
	if c, ok := h.reporter.(Checker); ok {
		if err := c.Check(); err != nil {
			return github.StatusRequest{}, err
		}
	}

	exec, err := h.source.GetExecution(ctx, change.Pipeline, change.ExecutionID)
	if err != nil {
		return github.StatusRequest{}, err
	}
	if len(exec.Revisions) == 0 {
		return github.StatusRequest{}, errs.Parse("No revision info found in execution %s", change.ExecutionID)
	}

	rev := exec.Revisions[0]
	if rev.RevisionID == "" {
		return github.StatusRequest{}, errs.Parse("No revision ID found in execution %s", change.ExecutionID)
	}
	if rev.RevisionURL == "" {
		return github.StatusRequest{}, errs.Parse("No revision URL found in execution %s", change.ExecutionID)
	}

	owner, repo, err := github.ParseRepositoryURL(rev.RevisionURL)
	if err != nil {
		return github.StatusRequest{}, err
	}

	req := github.StatusRequest{
		State:       MapState(exec.Status),
		TargetURL:   ConsoleURL(region, change.Pipeline, change.ExecutionID),
		Description: fmt.Sprintf("%s: Execution %s", exec.Status, change.ExecutionID),
		Context:     h.context,
	}
	if _, err := h.reporter.CreateStatus(ctx, owner, repo, rev.RevisionID, req); err != nil {
		return github.StatusRequest{}, err
	}

	h.log.Info("Reported commit status",
		"pipeline", change.Pipeline,
		"executionId", change.ExecutionID,
		"sha", rev.RevisionID,
		"state", req.State)
	return req, nil
}

// Handle decodes a state-change event and reports it. Every failure is
// logged and swallowed so the bus never retries.
func (h *Hook) Handle(ctx context.Context, raw json.RawMessage) error {
	evt, err := contracts.DecodeBusEvent(raw)
	if err == nil {
		var change contracts.PipelineStateDetail
		change, err = evt.PipelineState()
		if err == nil {
			_, err = h.Report(ctx, evt.Region, change)
		}
	}
	if err != nil {
		h.log.Error(err.Error(), "error", err, "kind", errs.KindOf(err))
	}
	return nil
}

// TokenReporter creates a GitHub client per call from a token kept in a secret.
type TokenReporter struct {
	secrets  secrets.Provider
	secretID string
	baseURL  string
}

// NewTokenReporter reads the GitHub token from secretID on every call.
func NewTokenReporter(provider secrets.Provider, secretID string) *TokenReporter {
	return &TokenReporter{secrets: provider, secretID: secretID}
}

// WithBaseURL points created clients at another API host.
func (r *TokenReporter) WithBaseURL(url string) *TokenReporter {
	r.baseURL = url
	return r
}

// Check fails when no token secret is configured.
func (r *TokenReporter) Check() error {
	if r.secretID == "" {
		return errs.Configuration("AWS_SECRETS_GITHUB is undefined")
	}
	return nil
}

func (r *TokenReporter) CreateStatus(ctx context.Context, owner, repo, sha string, status github.StatusRequest) (*github.Status, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}
	token, err := r.secrets.GetSecret(ctx, r.secretID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errs.Configuration("Could not retrieve GitHub access token from secret %s", r.secretID)
	}

	client := github.NewClient(token)
	if r.baseURL != "" {
		client.WithBaseURL(r.baseURL)
	}
	return client.CreateStatus(ctx, owner, repo, sha, status)
}
