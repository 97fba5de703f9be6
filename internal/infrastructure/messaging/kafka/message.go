// Package kafka wraps segmentio/kafka-go with the consumer, producer and
// topic management used by the scoring worker.
package kafka

import (
	"context"
	"time"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher publishes messages.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// BatchItemError reports one failed message of a batch. Index is -1 when
// the whole batch failed.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

// BatchPublishResult summarises a batch publish.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}
