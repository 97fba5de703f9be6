package kafka

import (
	"context"
	stderrors "errors"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// ScoringTopics returns the topics used by the scoring worker. An empty
// deadLetter is skipped.
func ScoringTopics(requests, results, deadLetter string, partitions, replication int) []TopicConfig {
	const day = 24 * 3600 * 1000
	topics := []TopicConfig{
		{Name: requests, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: 3 * day},
		{Name: results, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: 3 * day},
	}
	if deadLetter != "" {
		topics = append(topics, TopicConfig{Name: deadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day})
	}
	return topics
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates topics through the cluster controller.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager connects to the controller of the cluster behind brokers.
func NewTopicManager(ctx context.Context, brokers []string, security SecurityConfig, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.InvalidParam("brokers required")
	}
	mech, err := security.mechanism()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := security.tlsConfig()
	if err != nil {
		return nil, err
	}
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true, TLS: tlsCfg, SASLMechanism: mech}

	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to dial kafka").WithDetail(brokers[0])
	}
	controller, err := conn.Controller()
	_ = conn.Close()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to find kafka controller")
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	cconn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to dial kafka controller").WithDetail(addr)
	}
	return newTopicManagerWithConn(cconn, logger), nil
}

func newTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger}
}

// CreateTopic creates a topic. An existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.InvalidParam("topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.InvalidParam("partitions and replication factor must be > 0").WithDetail(cfg.Name)
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
		})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create topic").WithDetail(cfg.Name)
	}
	m.logger.Info("topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether name has at least one partition.
func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		if stderrors.Is(err, kafka.UnknownTopicOrPartition) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read partitions").WithDetail(name)
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic that does not exist yet.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}
