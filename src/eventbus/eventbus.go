// Package eventbus puts events on EventBridge or on the local broker.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"

	"stackline/src/awsclient"
	"stackline/src/broker"
	"stackline/src/contracts"
	"stackline/src/errs"
)

// Entry is one event to put on the bus.
type Entry struct {
	Source     string
	DetailType string
	Detail     json.RawMessage
	Resources  []string
	Time       time.Time
}

// ResultEntry reports the outcome of one entry, in request order.
type ResultEntry struct {
	EventID      string `json:"EventId,omitempty"`
	ErrorCode    string `json:"ErrorCode,omitempty"`
	ErrorMessage string `json:"ErrorMessage,omitempty"`
}

// Result is the outcome of a PutEvents call.
type Result struct {
	Entries          []ResultEntry `json:"entries"`
	FailedEntryCount int           `json:"failedEntryCount"`
}

// Bus accepts events.
type Bus interface {
	PutEvents(ctx context.Context, entries ...Entry) (Result, error)
}

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeBus puts events on an EventBridge bus.
type EventBridgeBus struct {
	client  EventBridgeAPI
	busName string
}

// NewEventBridgeBus targets busName; an empty name means the default bus.
func NewEventBridgeBus(client EventBridgeAPI, busName string) *EventBridgeBus {
	return &EventBridgeBus{client: client, busName: busName}
}

// NewEventBridgeBusFromConfig builds a bus from an AWS configuration.
func NewEventBridgeBusFromConfig(cfg aws.Config, busName string) *EventBridgeBus {
	return NewEventBridgeBus(eventbridge.NewFromConfig(cfg), busName)
}

func (b *EventBridgeBus) PutEvents(ctx context.Context, entries ...Entry) (Result, error) {
	if len(entries) == 0 {
		return Result{Entries: []ResultEntry{}}, nil
	}

	reqs := make([]types.PutEventsRequestEntry, 0, len(entries))
	for _, e := range entries {
		req := types.PutEventsRequestEntry{
			Source:     aws.String(e.Source),
			DetailType: aws.String(e.DetailType),
			Detail:     aws.String(string(e.Detail)),
			Resources:  e.Resources,
			Time:       aws.Time(timeOrNow(e.Time)),
		}
		if b.busName != "" {
			req.EventBusName = aws.String(b.busName)
		}
		reqs = append(reqs, req)
	}

	out, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: reqs})
	if err != nil {
		return Result{}, awsclient.Upstream("PutEvents", err)
	}

	// Failed entries are the ones carrying an error code.
	result := Result{Entries: make([]ResultEntry, 0, len(out.Entries))}
	for _, e := range out.Entries {
		entry := ResultEntry{
			EventID:      aws.ToString(e.EventId),
			ErrorCode:    aws.ToString(e.ErrorCode),
			ErrorMessage: aws.ToString(e.ErrorMessage),
		}
		if entry.ErrorCode != "" {
			result.FailedEntryCount++
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

// BrokerBus publishes events as bus envelopes on the local broker.
type BrokerBus struct {
	broker broker.Broker
	topic  string
	region string
}

// NewBrokerBus publishes to contracts.TopicEvents.
func NewBrokerBus(b broker.Broker, region string) *BrokerBus {
	return &BrokerBus{broker: b, topic: contracts.TopicEvents, region: region}
}

// PutEvents publishes every entry. A failed publish is reported in the
// entry's result rather than as an error, matching EventBridge semantics.
func (b *BrokerBus) PutEvents(ctx context.Context, entries ...Entry) (Result, error) {
	result := Result{Entries: make([]ResultEntry, 0, len(entries))}

	for _, e := range entries {
		if !json.Valid(e.Detail) {
			return Result{}, errs.Parse("event detail for %s is not valid JSON", e.DetailType)
		}

		evt := contracts.BusEvent{
			Version:    "0",
			ID:         uuid.NewString(),
			DetailType: e.DetailType,
			Source:     e.Source,
			Time:       timeOrNow(e.Time),
			Region:     b.region,
			Resources:  e.Resources,
			Detail:     e.Detail,
		}
		if evt.Resources == nil {
			evt.Resources = []string{}
		}

		if err := broker.PublishJSON(ctx, b.broker, b.topic, evt.ID, evt); err != nil {
			result.FailedEntryCount++
			result.Entries = append(result.Entries, ResultEntry{ErrorCode: "InternalFailure", ErrorMessage: err.Error()})
			continue
		}
		result.Entries = append(result.Entries, ResultEntry{EventID: evt.ID})
	}
	return result, nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
