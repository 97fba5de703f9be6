package scoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/turtacn/molscore/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscore/pkg/errors"
	"github.com/turtacn/molscore/pkg/types/common"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// Worker outcome labels.
const (
	WorkerScored   = "scored"
	WorkerRejected = "rejected"
	WorkerFailed   = "failed"
)

// Worker turns ScoreRequest messages into ScoreResponse messages.
//
// Requests the service rejects as the caller's fault (unknown scorer, bad
// option, oversized or undecodable batch) are answered with an error
// response and acknowledged. Any other failure is returned to the consumer,
// which retries and eventually dead-letters the message.
type Worker struct {
	service     Service
	publisher   kafka.Publisher
	resultTopic string
	metrics     *prometheus.ScoringMetrics
	logger      logging.Logger
}

// NewWorker creates a Worker publishing to resultTopic. metrics may be nil.
func NewWorker(service Service, publisher kafka.Publisher, resultTopic string, metrics *prometheus.ScoringMetrics, logger logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Worker{
		service:     service,
		publisher:   publisher,
		resultTopic: resultTopic,
		metrics:     metrics,
		logger:      logger.Named("worker"),
	}
}

// Handle is a kafka.MessageHandler.
func (w *Worker) Handle(ctx context.Context, msg *kafka.Message) error {
	if w.metrics != nil {
		w.metrics.WorkerInFlight.WithLabelValues().Inc()
		defer w.metrics.WorkerInFlight.WithLabelValues().Dec()
	}

	var req types.ScoreRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		bad := errors.Wrap(err, errors.ErrCodeSerialization, "malformed score request")
		resp := &types.ScoreResponse{RequestID: string(msg.Key), Error: errorDetail(bad)}
		return w.finish(ctx, resp, WorkerRejected)
	}
	if req.RequestID == "" {
		req.RequestID = string(msg.Key)
	}
	if req.RequestID == "" {
		req.RequestID = string(common.NewID())
	}
	req.Source = types.SourceKafka

	start := time.Now()
	resp, err := w.service.Score(ctx, &req)
	if err != nil {
		if !errors.IsClientError(errors.GetCode(err)) {
			w.count(WorkerFailed)
			w.logger.Warn("score request failed",
				logging.String("request_id", req.RequestID),
				logging.String("scorer", req.Scorer),
				logging.Err(err),
			)
			return err
		}
		resp = &types.ScoreResponse{
			RequestID:  req.RequestID,
			Scorer:     req.Scorer,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      errorDetail(err),
		}
		return w.finish(ctx, resp, WorkerRejected)
	}
	return w.finish(ctx, resp, WorkerScored)
}

func (w *Worker) finish(ctx context.Context, resp *types.ScoreResponse, outcome string) error {
	value, err := json.Marshal(resp)
	if err != nil {
		w.count(WorkerFailed)
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode score response")
	}
	err = w.publisher.Publish(ctx, &kafka.ProducerMessage{
		Topic: w.resultTopic,
		Key:   []byte(resp.RequestID),
		Value: value,
		Headers: map[string]string{
			"content_type": "application/json",
			"scorer":       resp.Scorer,
		},
	})
	if err != nil {
		w.count(WorkerFailed)
		return err
	}
	w.count(outcome)
	return nil
}

func (w *Worker) count(outcome string) {
	if w.metrics != nil {
		w.metrics.WorkerMessagesTotal.WithLabelValues(outcome).Inc()
	}
}

// errorDetail converts err into its wire form.
func errorDetail(err error) *common.ErrorDetail {
	var ae *errors.AppError
	if errors.As(err, &ae) {
		return &common.ErrorDetail{Code: ae.Code.String(), Message: ae.Message, Detail: ae.Detail}
	}
	return &common.ErrorDetail{Code: errors.CodeUnknown.String(), Message: err.Error()}
}
