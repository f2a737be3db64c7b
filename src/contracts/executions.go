package contracts

import "time"

// Execution status values, as reported by the orchestrator.
const (
	StatusPending    = "Pending"
	StatusInProgress = "InProgress"
	StatusSucceeded  = "Succeeded"
	StatusFailed     = "Failed"
	StatusStopped    = "Stopped"
)

// SourceRevision identifies the commit that triggered an execution.
type SourceRevision struct {
	ActionName  string `json:"action_name"`
	RevisionID  string `json:"revision_id"`
	RevisionURL string `json:"revision_url"`
	Summary     string `json:"summary,omitempty"`
}

// ActionRecord is the last known state of one action in an execution.
type ActionRecord struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	RunOrder int    `json:"run_order"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// StageRecord is the last known state of one stage in an execution.
type StageRecord struct {
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Actions []ActionRecord `json:"actions"`
}

// ExecutionRecord is the persisted view of a pipeline execution.
type ExecutionRecord struct {
	PipelineName string           `json:"pipeline_name"`
	ExecutionID  string           `json:"execution_id"`
	Status       string           `json:"status"`
	Revisions    []SourceRevision `json:"revisions"`
	Stages       []StageRecord    `json:"stages"`
	Error        string           `json:"error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of the record.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	c := *r
	c.Revisions = append([]SourceRevision(nil), r.Revisions...)
	c.Stages = make([]StageRecord, len(r.Stages))
	for i, s := range r.Stages {
		c.Stages[i] = s
		c.Stages[i].Actions = append([]ActionRecord(nil), s.Actions...)
	}
	return &c
}
