package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"stackline/src/logger"
)

// RedpandaBroker is a Kafka-compatible broker implementation using franz-go.
type RedpandaBroker struct {
	client    *kgo.Client
	brokers   []string
	mu        sync.Mutex
	consumers map[*kgo.Client]string // consumer -> topic:group
	logger    logger.Logger
	closed    bool
}

// NewRedpandaBroker connects the producer client to brokers
// (e.g. ["localhost:19092"]). Topics are created on first use.
func NewRedpandaBroker(brokers []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &RedpandaBroker{
		client:    client,
		brokers:   brokers,
		consumers: make(map[*kgo.Client]string),
		logger:    log.With("component", "redpanda"),
	}, nil
}

// Publish produces one record and waits for it to be acknowledged, so
// handlers can report per-event failures.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("broker is closed")
	}

	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts a consumer for topic. Only one live subscription per
// topic and consumer group is allowed; reader subscriptions (TailGroup,
// ReplayGroup) are unrestricted. The consumer is released when ctx is done.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	mode, name := parseGroup(groupID)
	key := topic + ":" + groupID
	opts := []kgo.Opt{kgo.SeedBrokers(b.brokers...), kgo.ConsumeTopics(topic)}
	switch mode {
	case readTail:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	case readReplay:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	default:
		for _, existing := range b.consumers {
			if existing == key {
				return nil, fmt.Errorf("consumer already exists for topic %s and group %s", topic, groupID)
			}
		}
		// New groups start from the beginning.
		opts = append(opts, kgo.ConsumerGroup(name), kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}

	consumer, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	b.consumers[consumer] = key

	msgChan := make(chan Message, 256)
	go b.consumeLoop(ctx, consumer, msgChan)

	return msgChan, nil
}

// consumeLoop polls consumer until ctx is done or the broker closes.
func (b *RedpandaBroker) consumeLoop(ctx context.Context, consumer *kgo.Client, msgChan chan<- Message) {
	defer close(msgChan)
	defer b.release(consumer)

	for ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}

		for _, err := range fetches.Errors() {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("fetch failed", "topic", err.Topic, "partition", err.Partition, "error", err.Err)
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			msg := Message{
				Topic:     record.Topic,
				Key:       string(record.Key),
				Value:     record.Value,
				Offset:    record.Offset,
				Partition: record.Partition,
				Timestamp: record.Timestamp.UnixMilli(),
			}
			select {
			case msgChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *RedpandaBroker) release(consumer *kgo.Client) {
	b.mu.Lock()
	_, live := b.consumers[consumer]
	delete(b.consumers, consumer)
	b.mu.Unlock()
	if live {
		consumer.Close()
	}
}

// Close shuts down the broker and all consumer connections.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for consumer := range b.consumers {
		consumer.Close()
	}
	b.consumers = make(map[*kgo.Client]string)

	b.client.Close()
	return nil
}
