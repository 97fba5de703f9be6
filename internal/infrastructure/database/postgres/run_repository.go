package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// queryExecutor abstracts sql.DB and sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

const runColumns = `request_id, scorer, source, options, molecules, valid, mean_score, max_score, duration_ms, error_code, created_at`

// RunRepository stores scoring runs in the score_runs table.
type RunRepository struct {
	db     queryExecutor
	logger logging.Logger
}

// NewRunRepository creates a RunRepository on conn.
func NewRunRepository(conn *Connection, log logging.Logger) *RunRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RunRepository{db: conn.DB(), logger: log}
}

// Record inserts run. A request id seen before is overwritten, so a
// redelivered request keeps its latest outcome.
func (r *RunRepository) Record(ctx context.Context, run *types.ScoreRun) error {
	if run == nil || run.RequestID == "" {
		return errors.InvalidParam("scoring run requires a request id")
	}
	opts := []byte("{}")
	if len(run.Options) > 0 {
		var err error
		if opts, err = json.Marshal(run.Options); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode run options")
		}
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO score_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (request_id) DO UPDATE SET
			scorer = EXCLUDED.scorer,
			source = EXCLUDED.source,
			options = EXCLUDED.options,
			molecules = EXCLUDED.molecules,
			valid = EXCLUDED.valid,
			mean_score = EXCLUDED.mean_score,
			max_score = EXCLUDED.max_score,
			duration_ms = EXCLUDED.duration_ms,
			error_code = EXCLUDED.error_code,
			created_at = EXCLUDED.created_at`,
		run.RequestID, run.Scorer, run.Source, string(opts), run.Molecules,
		run.Valid, run.MeanScore, run.MaxScore, run.DurationMs, run.ErrorCode, createdAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record scoring run").WithDetail(run.RequestID)
	}
	r.logger.Debug("scoring run recorded", logging.String("request_id", run.RequestID))
	return nil
}

// Get returns the run recorded for requestID.
func (r *RunRepository) Get(ctx context.Context, requestID string) (*types.ScoreRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM score_runs WHERE request_id = $1`, requestID)
	run, err := scanRun(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("scoring run not found").WithDetail(requestID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load scoring run").WithDetail(requestID)
	}
	return run, nil
}

// List returns the runs matching filter, newest first.
func (r *RunRepository) List(ctx context.Context, filter types.RunFilter) ([]*types.ScoreRun, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []interface{}
	)
	if filter.Scorer != "" {
		args = append(args, filter.Scorer)
		where = append(where, fmt.Sprintf("scorer = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + runColumns + ` FROM score_runs`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, filter.Limit)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list scoring runs")
	}
	defer rows.Close()

	var out []*types.ScoreRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan scoring run")
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list scoring runs")
	}
	return out, nil
}

// Purge deletes runs created before cutoff and returns how many were
// removed.
func (r *RunRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM score_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to purge scoring runs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to purge scoring runs")
	}
	r.logger.Info("scoring runs purged", logging.Int64("deleted", n), logging.String("cutoff", cutoff.Format(time.RFC3339)))
	return n, nil
}

func scanRun(s scanner) (*types.ScoreRun, error) {
	var (
		run  types.ScoreRun
		opts []byte
	)
	err := s.Scan(&run.RequestID, &run.Scorer, &run.Source, &opts, &run.Molecules,
		&run.Valid, &run.MeanScore, &run.MaxScore, &run.DurationMs, &run.ErrorCode, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(opts) > 0 && string(opts) != "{}" {
		if err := json.Unmarshal(opts, &run.Options); err != nil {
			return nil, err
		}
	}
	return &run, nil
}
