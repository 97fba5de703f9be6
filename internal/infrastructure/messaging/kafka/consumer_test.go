package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockKafkaReader serves queued messages, then blocks until ctx is done.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    int
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockKafkaReader) commits() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.committed...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
}

func (r *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "test-group",
		Topic:   "requests",
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	tests := []func(*ConsumerConfig){
		func(c *ConsumerConfig) { c.Brokers = nil },
		func(c *ConsumerConfig) { c.GroupID = "" },
		func(c *ConsumerConfig) { c.Topic = "" },
		func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" },
		func(c *ConsumerConfig) { c.Retry.MaxRetries = -1 },
		func(c *ConsumerConfig) { c.Security.SASLMechanism = "PLAIN" },
		func(c *ConsumerConfig) { c.Security.SASLMechanism = "GSSAPI" },
	}
	for _, mutate := range tests {
		cfg := newTestConsumerConfig()
		mutate(&cfg)
		assert.Error(t, ValidateConsumerConfig(cfg))
	}
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: "requests", Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "h", Value: []byte("v")}}},
		{Topic: "requests", Offset: 2, Value: []byte("b")},
	}}
	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(msg.Value))
		if msg.Offset == 1 {
			assert.Equal(t, "v", msg.Headers["h"])
		}
		return nil
	}
	c := newConsumerWithReader(reader, newTestConsumerConfig(), handler, nil, nil)
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []int64{1, 2}, reader.commits())
	assert.Equal(t, 1, reader.closed)
	assert.Equal(t, int64(2), c.Stats()["processed"])
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{Topic: "requests", Offset: 7, Key: []byte("k"), Value: []byte("bad")}}}
	dlq := &recordingPublisher{}
	calls := 0
	handler := func(context.Context, *Message) error {
		calls++
		return errors.New("boom")
	}
	cfg := newTestConsumerConfig()
	cfg.Retry = RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond, DeadLetterTopic: "dlq"}

	c := newConsumerWithReader(reader, cfg, handler, dlq, nil)
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, 3, calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "dlq", dlq.msgs[0].Topic)
	assert.Equal(t, []byte("k"), dlq.msgs[0].Key)
	assert.Equal(t, "requests", dlq.msgs[0].Headers["original_topic"])
	assert.Equal(t, "boom", dlq.msgs[0].Headers["error_message"])
	stats := c.Stats()
	assert.Equal(t, int64(1), stats["failed"])
	assert.Equal(t, int64(2), stats["retried"])
	assert.Equal(t, int64(1), stats["dead_lettered"])
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	reader := &mockKafkaReader{}
	c := newConsumerWithReader(reader, newTestConsumerConfig(), func(context.Context, *Message) error { return nil }, nil, nil)
	assert.NoError(t, c.Close())
	assert.Equal(t, 1, reader.closed)
}
