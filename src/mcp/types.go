// Package mcp serves pipeline tools to LLM clients over the Model Context Protocol.
package mcp

// ValidationResult is the validate_pipeline response.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Pipelines []PipelineSummary `json:"pipelines,omitempty"`
	Error     map[string]any    `json:"error,omitempty"`
}

// PipelineSummary describes a validated pipeline.
type PipelineSummary struct {
	Name          string         `json:"name"`
	ArtifactStore string         `json:"artifact_store,omitempty"`
	Stages        []StageSummary `json:"stages"`
	Artifacts     []string       `json:"artifacts"`
}

// StageSummary lists a stage's actions grouped by run order.
type StageSummary struct {
	Name   string     `json:"name"`
	Groups [][]string `json:"run_order_groups"`
}

// ExecutionSummary is a compact view of an execution record.
type ExecutionSummary struct {
	Pipeline    string          `json:"pipeline"`
	ExecutionID string          `json:"execution_id"`
	Status      string          `json:"status"`
	Revision    string          `json:"revision,omitempty"`
	StartedAt   string          `json:"started_at"`
	Error       []string        `json:"error,omitempty"`
	Actions     []ActionSummary `json:"actions,omitempty"`
}

// ActionSummary is one action of an execution.
type ActionSummary struct {
	Stage   string   `json:"stage"`
	Action  string   `json:"action"`
	Status  string   `json:"status"`
	Message []string `json:"message,omitempty"`
}
