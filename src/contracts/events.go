package contracts

import (
	"encoding/json"
	"strings"
	"time"

	"stackline/src/errs"
)

// BusEvent is the envelope every event on the bus shares. Detail is decoded
// per variant with the accessors below.
type BusEvent struct {
	Version    string          `json:"version"`
	ID         string          `json:"id"`
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Account    string          `json:"account"`
	Time       time.Time       `json:"time"`
	Region     string          `json:"region"`
	Resources  []string        `json:"resources"`
	Detail     json.RawMessage `json:"detail"`
}

// DecodeBusEvent parses an event envelope.
func DecodeBusEvent(data []byte) (*BusEvent, error) {
	var evt BusEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "event is not a valid envelope")
	}
	return &evt, nil
}

// ProducedDetail is the detail of an event emitted by the producer.
type ProducedDetail struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlationId"`
}

// Produced decodes the detail as a produced event. The status field is required.
func (e *BusEvent) Produced() (ProducedDetail, error) {
	var d ProducedDetail
	if err := decodeDetail(e.Detail, &d); err != nil {
		return d, err
	}
	if d.Status == "" {
		return d, missingField("detail.status")
	}
	return d, nil
}

// Stored decodes the detail as a storage event, which must carry a correlation id.
func (e *BusEvent) Stored() (ProducedDetail, error) {
	var d ProducedDetail
	if err := decodeDetail(e.Detail, &d); err != nil {
		return d, err
	}
	if strings.TrimSpace(d.CorrelationID) == "" {
		return d, missingField("detail.correlationId")
	}
	return d, nil
}

// PipelineStateDetail is the detail of a pipeline, stage or action state change.
type PipelineStateDetail struct {
	Pipeline    string  `json:"pipeline"`
	ExecutionID string  `json:"execution-id"`
	State       string  `json:"state"`
	Stage       string  `json:"stage,omitempty"`
	Action      string  `json:"action,omitempty"`
	Category    string  `json:"category,omitempty"`
	Message     string  `json:"message,omitempty"`
	Version     float64 `json:"version,omitempty"`
}

// PipelineState decodes the detail as a state change. Pipeline and
// execution id are required.
func (e *BusEvent) PipelineState() (PipelineStateDetail, error) {
	var d PipelineStateDetail
	if err := decodeDetail(e.Detail, &d); err != nil {
		return d, err
	}
	if d.Pipeline == "" {
		return d, missingField("detail.pipeline")
	}
	if d.ExecutionID == "" {
		return d, missingField("detail.execution-id")
	}
	return d, nil
}

// IsPipelineExecution reports whether the event is an execution-level state change.
func (e *BusEvent) IsPipelineExecution() bool {
	return e.Source == SourceCodePipeline && e.DetailType == DetailTypePipelineExecution
}

// State values carried by state-change events.
const (
	StateStarted    = "STARTED"
	StateSucceeded  = "SUCCEEDED"
	StateFailed     = "FAILED"
	StateCanceled   = "CANCELED"
	StateSuperseded = "SUPERSEDED"
)

// Notification is an alert message forwarded to the chat webhook.
type Notification struct {
	MessageID string    `json:"messageId"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchRecord is one record of a stream or queue batch.
type BatchRecord struct {
	ID         string `json:"id"`
	ForceRetry bool   `json:"forceRetry,omitempty"`
	// Payload is the decoded record body.
	Payload json.RawMessage `json:"payload"`
}

// DeadLetter wraps a record that failed processing.
type DeadLetter struct {
	Topic  string          `json:"topic"`
	Key    string          `json:"key"`
	Reason string          `json:"reason"`
	Body   json.RawMessage `json:"body"`
}

func decodeDetail(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return missingField("detail")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errs.Wrap(errs.KindParse, err, "event detail is malformed")
	}
	return nil
}

func missingField(field string) error {
	return errs.Parse("missing field %s", field)
}
