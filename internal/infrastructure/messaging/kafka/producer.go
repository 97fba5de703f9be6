package kafka

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "producer closed")

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	Brokers          []string
	Acks             string // "none" | "one" | "all"
	MaxRetries       int
	BatchSize        int
	BatchTimeout     time.Duration
	MaxMessageBytes  int
	CompressionCodec string // "" | gzip | snappy | lz4 | zstd
	WriteTimeout     time.Duration
	Security         SecurityConfig
}

// ProducerMetrics holds producer counters.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes messages. Messages with the same key go to the same
// partition.
type Producer struct {
	writer  WriterInterface
	config  ProducerConfig
	logger  logging.Logger
	closed  atomic.Bool
	metrics *ProducerMetrics
}

// NewProducer creates a producer.
func NewProducer(cfg ProducerConfig, logger logging.Logger) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	applyProducerDefaults(&cfg)

	mech, err := cfg.Security.mechanism()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.Security.tlsConfig()
	if err != nil {
		return nil, err
	}

	var acks kafka.RequiredAcks
	switch cfg.Acks {
	case "none":
		acks = kafka.RequireNone
	case "all":
		acks = kafka.RequireAll
	default:
		acks = kafka.RequireOne
	}

	var compression kafka.Compression
	switch cfg.CompressionCodec {
	case "gzip":
		compression = kafka.Gzip
	case "snappy":
		compression = kafka.Snappy
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: acks,
		Compression:  compression,
		Transport: &kafka.Transport{
			DialTimeout: 10 * time.Second,
			TLS:         tlsCfg,
			SASL:        mech,
		},
	}
	return newProducerWithWriter(writer, cfg, logger), nil
}

func newProducerWithWriter(w WriterInterface, cfg ProducerConfig, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	applyProducerDefaults(&cfg)
	return &Producer{writer: w, config: cfg, logger: logger, metrics: &ProducerMetrics{}}
}

func applyProducerDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = 1 << 20
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
}

// Publish publishes a single message.
func (p *Producer) Publish(ctx context.Context, msg *ProducerMessage) error {
	if err := p.check(msg); err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		p.metrics.MessagesFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeExternalService, "publish failed").WithDetail(msg.Topic)
	}
	p.metrics.MessagesSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(msg.Value)))
	p.logger.Debug("message published", logging.String("topic", msg.Topic), logging.Int("bytes", len(msg.Value)))
	return nil
}

// PublishBatch publishes msgs in one write and reports per-message outcomes.
func (p *Producer) PublishBatch(ctx context.Context, msgs []*ProducerMessage) (*BatchPublishResult, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil, errors.InvalidParam("messages empty")
	}
	kMsgs := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		if err := p.check(msg); err != nil {
			return nil, err
		}
		kMsgs[i] = toKafkaMessage(msg)
	}

	result := &BatchPublishResult{}
	err := p.writer.WriteMessages(ctx, kMsgs...)
	var writeErrs kafka.WriteErrors
	switch {
	case err == nil:
		result.Succeeded = len(msgs)
	case stderrors.As(err, &writeErrs):
		for i, we := range writeErrs {
			if we != nil {
				result.Failed++
				result.Errors = append(result.Errors, BatchItemError{Index: i, Topic: msgs[i].Topic, Error: we})
			} else {
				result.Succeeded++
			}
		}
	default:
		result.Failed = len(msgs)
		result.Errors = append(result.Errors, BatchItemError{Index: -1, Error: err})
	}

	p.metrics.MessagesSent.Add(int64(result.Succeeded))
	p.metrics.MessagesFailed.Add(int64(result.Failed))
	return result, nil
}

func (p *Producer) check(msg *ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg == nil || msg.Topic == "" {
		return errors.InvalidParam("topic required")
	}
	if len(msg.Value) == 0 {
		return errors.InvalidParam("value required")
	}
	if len(msg.Value) > p.config.MaxMessageBytes {
		return errors.InvalidParam("message too large").WithDetail(msg.Topic)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Producer) Stats() map[string]int64 {
	return map[string]int64{
		"sent":   p.metrics.MessagesSent.Load(),
		"failed": p.metrics.MessagesFailed.Load(),
		"bytes":  p.metrics.BytesSent.Load(),
	}
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.metrics.MessagesSent.Load()))
	return err
}

func toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

// ValidateProducerConfig validates configuration.
func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.InvalidParam("brokers required")
	}
	if cfg.MaxRetries < 0 {
		return errors.InvalidParam("max retries must be >= 0")
	}
	return cfg.Security.validate()
}
