// Package broker defines the interface for message brokers and provides implementations.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Broker abstracts message publishing and consumption.
// This interface supports both in-memory (local) and distributed (Redpanda/Kafka) implementations.
type Broker interface {
	// Publish sends a message to a topic with an optional key for partitioning.
	// For in-memory broker, key is carried but not used for routing.
	// For Redpanda/Kafka, key is used for partition assignment.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel for consuming messages from a topic.
	// groupID is used for consumer group coordination in Kafka, unless it
	// was built with TailGroup or ReplayGroup.
	// For in-memory broker, groupID is ignored.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a consumed message from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}

// Reader subscriptions consume without a consumer group and commit nothing.
// The in-memory broker treats every subscription as a tail reader.
const (
	tailPrefix   = "tail:"
	replayPrefix = "replay:"
)

// TailGroup names a reader subscription that only receives messages
// published after it subscribed.
func TailGroup(name string) string { return tailPrefix + name }

// ReplayGroup names a reader subscription that starts at the oldest
// retained message.
func ReplayGroup(name string) string { return replayPrefix + name }

type readMode int

const (
	readGroup readMode = iota
	readTail
	readReplay
)

func parseGroup(groupID string) (readMode, string) {
	if name, ok := strings.CutPrefix(groupID, tailPrefix); ok {
		return readTail, name
	}
	if name, ok := strings.CutPrefix(groupID, replayPrefix); ok {
		return readReplay, name
	}
	return readGroup, groupID
}

// PublishJSON marshals v and publishes it to topic.
func PublishJSON(ctx context.Context, b Broker, topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", topic, err)
	}
	return b.Publish(ctx, topic, key, data)
}
