package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

var runRowColumns = []string{
	"request_id", "scorer", "source", "options", "molecules", "valid",
	"mean_score", "max_score", "duration_ms", "error_code", "created_at",
}

type RunRepositoryTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo *RunRepository
	now  time.Time
}

func (s *RunRepositoryTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)
	s.repo = NewRunRepository(NewConnectionWithDB(s.db, nil), logging.NewNopLogger())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RunRepositoryTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RunRepositoryTestSuite) TestRecord() {
	run := &types.ScoreRun{
		RequestID:  "req-1",
		Scorer:     "tanimoto",
		Source:     types.SourceHTTP,
		Options:    map[string]any{"k": 0.5},
		Molecules:  3,
		Valid:      2,
		MeanScore:  0.25,
		MaxScore:   1,
		DurationMs: 12,
		CreatedAt:  s.now,
	}
	s.mock.ExpectExec("INSERT INTO score_runs .* ON CONFLICT \\(request_id\\) DO UPDATE").
		WithArgs("req-1", "tanimoto", "http", `{"k":0.5}`, 3, 2, 0.25, 1.0, int64(12), "", s.now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Record(context.Background(), run))
}

func (s *RunRepositoryTestSuite) TestRecord_EmptyOptionsAndTimestamp() {
	s.mock.ExpectExec("INSERT INTO score_runs").
		WithArgs("req-2", "no_sulphur", "", "{}", 0, 0, 0.0, 0.0, int64(0), "SCORE_001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Record(context.Background(), &types.ScoreRun{
		RequestID: "req-2",
		Scorer:    "no_sulphur",
		ErrorCode: "SCORE_001",
	}))
}

func (s *RunRepositoryTestSuite) TestRecord_RequiresRequestID() {
	err := s.repo.Record(context.Background(), &types.ScoreRun{Scorer: "no_sulphur"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidParam))
}

func (s *RunRepositoryTestSuite) TestRecord_DatabaseError() {
	s.mock.ExpectExec("INSERT INTO score_runs").WillReturnError(errors.New("connection reset"))

	err := s.repo.Record(context.Background(), &types.ScoreRun{RequestID: "req-3", Scorer: "no_sulphur"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *RunRepositoryTestSuite) TestGet() {
	s.mock.ExpectQuery("SELECT .* FROM score_runs WHERE request_id = \\$1").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("req-1", "tanimoto", "kafka", []byte(`{"k":0.5}`), 3, 2, 0.25, 1.0, int64(12), "", s.now))

	run, err := s.repo.Get(context.Background(), "req-1")
	s.Require().NoError(err)
	s.Equal("tanimoto", run.Scorer)
	s.Equal(types.SourceKafka, run.Source)
	s.Equal(map[string]any{"k": 0.5}, run.Options)
	s.Equal(3, run.Molecules)
	s.Equal(2, run.Valid)
	s.Equal(int64(12), run.DurationMs)
	s.True(run.CreatedAt.Equal(s.now))
}

func (s *RunRepositoryTestSuite) TestGet_NotFound() {
	s.mock.ExpectQuery("SELECT .* FROM score_runs WHERE request_id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.repo.Get(context.Background(), "missing")
	s.True(pkgerrors.IsNotFound(err))
}

func (s *RunRepositoryTestSuite) TestList_Filters() {
	since := s.now.Add(-time.Hour)
	s.mock.ExpectQuery("SELECT .* FROM score_runs WHERE scorer = \\$1 AND created_at >= \\$2 ORDER BY created_at DESC LIMIT \\$3").
		WithArgs("no_sulphur", since, 2).
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("b", "no_sulphur", "cli", []byte(`{}`), 1, 1, 1.0, 1.0, int64(1), "", s.now).
			AddRow("a", "no_sulphur", "cli", []byte(`{}`), 2, 0, 0.0, 1.0, int64(2), "", since))

	runs, err := s.repo.List(context.Background(), types.RunFilter{Scorer: "no_sulphur", Since: since, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.Equal("b", runs[0].RequestID)
	s.Nil(runs[0].Options)
}

func (s *RunRepositoryTestSuite) TestList_DefaultLimit() {
	s.mock.ExpectQuery("SELECT .* FROM score_runs ORDER BY created_at DESC LIMIT \\$1").
		WithArgs(types.DefaultRunLimit).
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	runs, err := s.repo.List(context.Background(), types.RunFilter{})
	s.NoError(err)
	s.Empty(runs)
}

func (s *RunRepositoryTestSuite) TestPurge() {
	s.mock.ExpectExec("DELETE FROM score_runs WHERE created_at < \\$1").
		WithArgs(s.now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := s.repo.Purge(context.Background(), s.now)
	s.NoError(err)
	s.Equal(int64(7), n)
}

func TestRunRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RunRepositoryTestSuite))
}
