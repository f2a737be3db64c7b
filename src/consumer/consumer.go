// Package consumer handles events and record batches delivered by the bus,
// streams and queues.
package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-lambda-go/events"

	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/response"
)

// ErrForcedRetry fails a batch whose record asks to be retried.
var ErrForcedRetry = errors.New("Lambda forced to retry")

// EventConsumer logs each bus event it receives.
type EventConsumer struct {
	log logger.Logger
}

// NewEventConsumer creates an EventConsumer.
func NewEventConsumer(log logger.Logger) *EventConsumer {
	return &EventConsumer{log: log}
}

// Handle logs the event. Failures are logged and never returned, so the bus
// does not redeliver.
func (c *EventConsumer) Handle(ctx context.Context, event json.RawMessage) error {
	if !json.Valid(event) {
		err := errs.Parse("event is not valid JSON")
		c.log.Error(err.Error(), "error", err, "kind", errs.KindOf(err))
		return nil
	}
	c.log.Info("Processed event", "event", event)
	return nil
}

// Success echoes the event back in a 200 response.
func Success(ctx context.Context, event json.RawMessage) events.APIGatewayProxyResponse {
	if !json.Valid(event) {
		return response.Failure(errs.Parse("event is not valid JSON"))
	}
	return response.OK(map[string]json.RawMessage{"event": event})
}

// BatchResult is the success body of a batch invocation.
type BatchResult struct {
	RecordsProcessed int `json:"recordsProcessed"`
}

// BatchConsumer processes stream and queue batches. The whole batch fails
// on the first bad record.
type BatchConsumer struct {
	log        logger.Logger
	honorRetry bool
	logRecords bool
}

// NewStreamConsumer fails the batch when a record carries forceRetry.
func NewStreamConsumer(log logger.Logger) *BatchConsumer {
	return &BatchConsumer{log: log, honorRetry: true}
}

// NewDeadLetterConsumer logs every record payload.
func NewDeadLetterConsumer(log logger.Logger) *BatchConsumer {
	return &BatchConsumer{log: log, logRecords: true}
}

// Process checks every record and returns how many were processed.
func (c *BatchConsumer) Process(ctx context.Context, records []contracts.BatchRecord) (BatchResult, error) {
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return BatchResult{}, err
		}

		var payload struct {
			ForceRetry bool `json:"forceRetry"`
		}
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return BatchResult{}, errs.Wrap(errs.KindParse, err, "record %s is not valid JSON", r.ID)
		}

		if c.logRecords {
			c.log.Info("Received record", "id", r.ID, "payload", r.Payload)
		}
		if c.honorRetry && (payload.ForceRetry || r.ForceRetry) {
			return BatchResult{}, ErrForcedRetry
		}
	}
	return BatchResult{RecordsProcessed: len(records)}, nil
}

// Respond runs Process and wraps the outcome in an HTTP-style response.
func (c *BatchConsumer) Respond(ctx context.Context, records []contracts.BatchRecord) events.APIGatewayProxyResponse {
	result, err := c.Process(ctx, records)
	if err != nil {
		c.log.Error("Failed to process batch", "error", err, "records", len(records))
		return response.Failure(err)
	}
	return response.OK(result)
}

// HandleKinesis processes a Kinesis stream batch.
func (c *BatchConsumer) HandleKinesis(ctx context.Context, event events.KinesisEvent) (events.APIGatewayProxyResponse, error) {
	return c.Respond(ctx, FromKinesis(event)), nil
}

// HandleSQS processes an SQS queue batch.
func (c *BatchConsumer) HandleSQS(ctx context.Context, event events.SQSEvent) (events.APIGatewayProxyResponse, error) {
	return c.Respond(ctx, FromSQS(event)), nil
}

// FromKinesis converts Kinesis records. Record data is already base64-decoded.
func FromKinesis(event events.KinesisEvent) []contracts.BatchRecord {
	records := make([]contracts.BatchRecord, 0, len(event.Records))
	for _, r := range event.Records {
		records = append(records, contracts.BatchRecord{
			ID:      r.EventID,
			Payload: json.RawMessage(r.Kinesis.Data),
		})
	}
	return records
}

// FromSQS converts SQS messages.
func FromSQS(event events.SQSEvent) []contracts.BatchRecord {
	records := make([]contracts.BatchRecord, 0, len(event.Records))
	for _, r := range event.Records {
		records = append(records, contracts.BatchRecord{
			ID:      r.MessageId,
			Payload: json.RawMessage(r.Body),
		})
	}
	return records
}
