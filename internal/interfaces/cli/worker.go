package cli

import (
	"github.com/spf13/cobra"

	app "github.com/turtacn/molscore/internal/application/scoring"
	"github.com/turtacn/molscore/internal/config"
	"github.com/turtacn/molscore/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	molhttp "github.com/turtacn/molscore/internal/interfaces/http"
	"github.com/turtacn/molscore/internal/interfaces/http/handlers"
)

// NewWorkerCmd creates the worker command.
func NewWorkerCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Score requests consumed from Kafka",
		Long: `Consume ScoreRequest messages from kafka.request_topic and publish
ScoreResponse messages, keyed by request id, to kafka.result_topic.
Requests that keep failing are moved to kafka.dead_letter_topic.
Health and metrics endpoints are served on --addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			logger := cliCtx.Logger
			ctx := cmd.Context()
			if addr == "" {
				addr = cfg.Server.Addr()
			}

			security := kafkaSecurity(cfg)
			if cfg.Kafka.CreateTopics {
				tm, err := kafka.NewTopicManager(ctx, cfg.Kafka.Brokers, security, logger)
				if err != nil {
					return err
				}
				err = tm.EnsureTopics(ctx, kafka.ScoringTopics(cfg.Kafka.RequestTopic, cfg.Kafka.ResultTopic,
					cfg.Kafka.DeadLetterTopic, cfg.Kafka.NumPartitions, cfg.Kafka.ReplicationFactor))
				_ = tm.Close()
				if err != nil {
					return err
				}
			}

			comps, err := buildComponents(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer comps.Close()

			producer, err := kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.Kafka.Brokers,
				Acks:         "all",
				MaxRetries:   cfg.Kafka.MaxRetries,
				BatchTimeout: cfg.Kafka.BatchTimeout,
				Security:     security,
			}, logger)
			if err != nil {
				return err
			}
			defer producer.Close()

			worker := app.NewWorker(comps.Service, producer, cfg.Kafka.ResultTopic, comps.Metrics, logger)
			consumer, err := kafka.NewConsumer(consumerConfig(cfg, security), worker.Handle, producer, logger)
			if err != nil {
				return err
			}
			defer consumer.Close()
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			logger.Info("scoring worker started",
				logging.String("requests", cfg.Kafka.RequestTopic),
				logging.String("results", cfg.Kafka.ResultTopic),
			)

			router := molhttp.NewRouter(molhttp.RouterConfig{
				HealthHandler:    handlers.NewHealthHandler(Version, comps.Checkers...),
				MetricsCollector: comps.Collector,
				MetricsPath:      cfg.Metrics.Path,
			})
			return runServer(cmd, cfg, addr, router, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "health and metrics listen address (default: server.host:server.port)")
	return cmd
}

func kafkaSecurity(cfg *config.Config) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		SASLMechanism: cfg.Kafka.SASLMechanism,
		SASLUsername:  cfg.Kafka.SASLUsername,
		SASLPassword:  cfg.Kafka.SASLPassword,
		TLSEnabled:    cfg.Kafka.TLSEnabled,
		TLSCAFile:     cfg.Kafka.TLSCAFile,
	}
}

func consumerConfig(cfg *config.Config, security kafka.SecurityConfig) kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topic:           cfg.Kafka.RequestTopic,
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		MinBytes:        cfg.Kafka.MinBytes,
		MaxBytes:        cfg.Kafka.MaxBytes,
		MaxWait:         cfg.Kafka.MaxWait,
		Security:        security,
		Retry: kafka.RetryConfig{
			MaxRetries:      cfg.Kafka.MaxRetries,
			RetryBackoff:    cfg.Kafka.RetryBackoff,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		},
	}
}
