// Package agents runs the event handlers as long-lived broker consumers.
// Each agent subscribes to one topic, filters messages the way the deployed
// event rules do, and hands every match to its handler.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"stackline/src/alerting"
	"stackline/src/archive"
	"stackline/src/broker"
	"stackline/src/consumer"
	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/status"
)

// Handler processes one message. Returned errors are logged; when the agent
// forwards dead letters, the message is also republished to the dead-letter
// topic.
type Handler func(ctx context.Context, msg broker.Message) error

// Rule matches bus events by source and detail type. Empty lists match anything.
type Rule struct {
	Sources     []string
	DetailTypes []string
}

// Matches reports whether evt satisfies the rule.
func (r Rule) Matches(evt *contracts.BusEvent) bool {
	if len(r.Sources) > 0 && !slices.Contains(r.Sources, evt.Source) {
		return false
	}
	if len(r.DetailTypes) > 0 && !slices.Contains(r.DetailTypes, evt.DetailType) {
		return false
	}
	return true
}

// Agent consumes one topic.
type Agent struct {
	name        string
	topic       string
	group       string
	broker      broker.Broker
	handle      Handler
	deadLetters bool
	logger      logger.Logger
	ready       chan struct{}
	readyOnce   sync.Once
}

func newAgent(name, topic string, b broker.Broker, h Handler, log logger.Logger) *Agent {
	return &Agent{
		name:   name,
		topic:  topic,
		group:  "stackline-" + name,
		broker: b,
		handle: h,
		logger: log.With("agent", name),
		ready:  make(chan struct{}),
	}
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Ready is closed once the agent first subscribes.
func (a *Agent) Ready() <-chan struct{} { return a.ready }

// Run consumes messages until ctx is done or the subscription closes.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("Starting", "topic", a.topic)

	msgChan, err := a.broker.Subscribe(ctx, a.topic, a.group)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", a.topic, err)
	}
	a.readyOnce.Do(func() { close(a.ready) })

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("Message channel closed, shutting down")
				return nil
			}
			a.process(ctx, msg)

		case <-ctx.Done():
			a.logger.Info("Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

func (a *Agent) process(ctx context.Context, msg broker.Message) {
	err := a.handle(ctx, msg)
	if err == nil {
		return
	}
	a.logger.Error("Error processing message", "key", msg.Key, "error", err, "kind", errs.KindOf(err))

	if !a.deadLetters {
		return
	}
	dl := contracts.DeadLetter{Topic: msg.Topic, Key: msg.Key, Reason: err.Error(), Body: rawOrQuoted(msg.Value)}
	if perr := broker.PublishJSON(ctx, a.broker, contracts.TopicDeadLetter, msg.Key, dl); perr != nil {
		a.logger.Error("Failed to publish dead letter", "key", msg.Key, "error", perr)
	}
}

// busEvents decodes bus events and passes those matching rule to fn.
func busEvents(rule Rule, fn func(ctx context.Context, raw json.RawMessage) error) Handler {
	return func(ctx context.Context, msg broker.Message) error {
		evt, err := contracts.DecodeBusEvent(msg.Value)
		if err != nil {
			return err
		}
		if !rule.Matches(evt) {
			return nil
		}
		return fn(ctx, msg.Value)
	}
}

// NewConsumerAgent logs every event from the producer.
func NewConsumerAgent(b broker.Broker, c *consumer.EventConsumer, log logger.Logger) *Agent {
	rule := Rule{Sources: []string{contracts.SourceProducer}}
	return newAgent("consumer", contracts.TopicEvents, b, busEvents(rule, c.Handle), log)
}

// NewArchiveAgent stores every produced Lambda event.
func NewArchiveAgent(b broker.Broker, h *archive.Handler, log logger.Logger) *Agent {
	rule := Rule{Sources: []string{contracts.SourceProducer}, DetailTypes: []string{contracts.DetailTypeLambdaEvent}}
	return newAgent("archive", contracts.TopicEvents, b, busEvents(rule, h.Handle), log)
}

// NewStatusAgent reports pipeline execution state changes as commit statuses.
func NewStatusAgent(b broker.Broker, h *status.Hook, log logger.Logger) *Agent {
	rule := Rule{Sources: []string{contracts.SourceCodePipeline}, DetailTypes: []string{contracts.DetailTypePipelineExecution}}
	return newAgent("status", contracts.TopicPipelineState, b, busEvents(rule, h.Handle), log)
}

// NewAlertingAgent forwards notifications to the chat webhook. Failed
// notifications are sent to the dead-letter topic.
func NewAlertingAgent(b broker.Broker, n *alerting.Notifier, log logger.Logger) *Agent {
	a := newAgent("alerting", contracts.TopicNotifications, b, func(ctx context.Context, msg broker.Message) error {
		var note contracts.Notification
		if err := json.Unmarshal(msg.Value, &note); err != nil {
			return errs.Wrap(errs.KindParse, err, "notification is malformed")
		}
		if note.MessageID == "" {
			note.MessageID = msg.Key
		}
		return n.Notify(ctx, []contracts.Notification{note})
	}, log)
	a.deadLetters = true
	return a
}

// NewDeadLetterAgent logs every dead letter through the batch consumer.
func NewDeadLetterAgent(b broker.Broker, c *consumer.BatchConsumer, log logger.Logger) *Agent {
	return newAgent("deadletter", contracts.TopicDeadLetter, b, func(ctx context.Context, msg broker.Message) error {
		var dl contracts.DeadLetter
		if err := json.Unmarshal(msg.Value, &dl); err != nil {
			return errs.Wrap(errs.KindParse, err, "dead letter is malformed")
		}
		_, err := c.Process(ctx, []contracts.BatchRecord{{ID: dl.Topic + "/" + dl.Key, Payload: dl.Body}})
		return err
	}, log)
}

func rawOrQuoted(value []byte) json.RawMessage {
	if json.Valid(value) {
		return append(json.RawMessage(nil), value...)
	}
	quoted, _ := json.Marshal(string(value))
	return quoted
}
