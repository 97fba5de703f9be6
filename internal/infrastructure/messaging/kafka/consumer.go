package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeInternal, "consumer already running")

// RetryConfig defines how failed messages are retried. Messages that still
// fail are published to DeadLetterTopic when it is set, then committed.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topic           string
	AutoOffsetReset string // "earliest" | "latest"
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
	Security        SecurityConfig
	Retry           RetryConfig
}

// ConsumerMetrics holds consumer counters.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
	Lag                  atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic in a consumer group and hands every message to
// a handler. Offsets are committed after the handler returns, so delivery
// is at least once.
type Consumer struct {
	reader     ReaderInterface
	config     ConsumerConfig
	logger     logging.Logger
	handler    MessageHandler
	deadLetter Publisher

	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	metrics   *ConsumerMetrics
}

// NewConsumer creates a consumer group reader for cfg.Topic.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, deadLetter Publisher, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}

	mech, err := cfg.Security.mechanism()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.Security.tlsConfig()
	if err != nil {
		return nil, err
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			TLS:           tlsCfg,
			SASLMechanism: mech,
		},
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	return newConsumerWithReader(kafka.NewReader(readerCfg), cfg, handler, deadLetter, logger), nil
}

func newConsumerWithReader(r ReaderInterface, cfg ConsumerConfig, handler MessageHandler, deadLetter Publisher, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Retry.RetryBackoff == 0 {
		cfg.Retry.RetryBackoff = time.Second
	}
	if cfg.Retry.MaxRetryBackoff == 0 {
		cfg.Retry.MaxRetryBackoff = 30 * time.Second
	}
	return &Consumer{
		reader:     r,
		config:     cfg,
		logger:     logger,
		handler:    handler,
		deadLetter: deadLetter,
		metrics:    &ConsumerMetrics{},
	}
}

// Start runs the consume loop in the background until Close or ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.String("topic", c.config.Topic))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch message failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.metrics.MessagesConsumed.Add(1)
		if m.HighWaterMark > 0 {
			c.metrics.Lag.Store(m.HighWaterMark - m.Offset - 1)
		}

		if err := c.processMessage(ctx, toMessage(m)); err != nil {
			// Only cancellation aborts processing; leave the offset
			// uncommitted so the message is redelivered.
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", logging.Err(err), logging.Int64("offset", m.Offset))
		}
	}
}

func toMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// processMessage returns an error only when ctx is done. Handler failures
// are retried, then dead-lettered or dropped.
func (c *Consumer) processMessage(ctx context.Context, msg *Message) error {
	err := c.handler(ctx, msg)
	backoff := c.config.Retry.RetryBackoff
	for i := 0; err != nil && i < c.config.Retry.MaxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.MessagesRetried.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		err = c.handler(ctx, msg)
		backoff *= 2
		if backoff > c.config.Retry.MaxRetryBackoff {
			backoff = c.config.Retry.MaxRetryBackoff
		}
	}
	if err == nil {
		c.metrics.MessagesProcessed.Add(1)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.metrics.MessagesFailed.Add(1)
	c.logger.Error("message processing failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Err(err))

	if c.deadLetter == nil || c.config.Retry.DeadLetterTopic == "" {
		return nil
	}
	headers := make(map[string]string, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["original_topic"] = msg.Topic
	headers["error_message"] = err.Error()
	dl := &ProducerMessage{
		Topic:   c.config.Retry.DeadLetterTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if dlErr := c.deadLetter.Publish(ctx, dl); dlErr != nil {
		c.logger.Error("failed to publish to dead letter topic", logging.Err(dlErr))
		return nil
	}
	c.metrics.MessagesDeadLettered.Add(1)
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() map[string]int64 {
	return map[string]int64{
		"consumed":      c.metrics.MessagesConsumed.Load(),
		"processed":     c.metrics.MessagesProcessed.Load(),
		"failed":        c.metrics.MessagesFailed.Load(),
		"retried":       c.metrics.MessagesRetried.Load(),
		"dead_lettered": c.metrics.MessagesDeadLettered.Load(),
		"lag":           c.metrics.Lag.Load(),
	}
}

// Close stops the loop and closes the reader. Later calls are no-ops.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		err = c.reader.Close()
		c.logger.Info("kafka consumer closed", logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	})
	return err
}

// ValidateConsumerConfig validates configuration.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.InvalidParam("brokers required")
	}
	if cfg.GroupID == "" {
		return errors.InvalidParam("group id required")
	}
	if cfg.Topic == "" {
		return errors.InvalidParam("topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.InvalidParam("invalid auto offset reset").WithDetail(cfg.AutoOffsetReset)
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.InvalidParam("max retries must be >= 0")
	}
	return cfg.Security.validate()
}
