package scoring

import (
	"context"
	"time"

	domain "github.com/turtacn/molscore/internal/domain/scoring"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// runRecordTimeout bounds a history write. The write outlives the request
// context so cancelled requests are still recorded.
const runRecordTimeout = 5 * time.Second

// RunRecorder persists scoring run history.
type RunRecorder interface {
	Record(ctx context.Context, run *types.ScoreRun) error
}

// RunReader reads back what a RunRecorder wrote.
type RunReader interface {
	Get(ctx context.Context, requestID string) (*types.ScoreRun, error)
	List(ctx context.Context, filter types.RunFilter) ([]*types.ScoreRun, error)
}

// RunStore is a RunRecorder that can be queried.
type RunStore interface {
	RunRecorder
	RunReader
}

// scored is the outcome of one scoring call.
type scored struct {
	scores []float32
	valid  int
}

func (s *serviceImpl) record(ctx context.Context, requestID string, req *types.ScoreRequest, opts domain.Options, out scored, elapsed time.Duration, scoreErr error) {
	if s.cfg.Runs == nil {
		return
	}
	run := newScoreRun(requestID, req, opts, out, elapsed, scoreErr)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runRecordTimeout)
	defer cancel()
	if err := s.cfg.Runs.Record(rctx, run); err != nil {
		s.logger.Warn("failed to record scoring run",
			logging.String("request_id", requestID),
			logging.Err(err),
		)
	}
}

func newScoreRun(requestID string, req *types.ScoreRequest, opts domain.Options, out scored, elapsed time.Duration, scoreErr error) *types.ScoreRun {
	run := &types.ScoreRun{
		RequestID:  requestID,
		Scorer:     req.Scorer,
		Source:     req.Source,
		Options:    opts,
		Molecules:  len(req.SMILES),
		Valid:      out.valid,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if scoreErr != nil {
		run.ErrorCode = errors.GetCode(scoreErr).String()
		return run
	}
	scores := out.scores
	if len(scores) == 0 {
		return run
	}
	var sum float64
	run.MaxScore = float64(scores[0])
	for _, v := range scores {
		sum += float64(v)
		if float64(v) > run.MaxScore {
			run.MaxScore = float64(v)
		}
	}
	run.MeanScore = sum / float64(len(scores))
	return run
}
