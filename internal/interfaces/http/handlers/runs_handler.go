package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	app "github.com/turtacn/molscore/internal/application/scoring"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// RunsHandler serves the scoring run history.
type RunsHandler struct {
	runs   app.RunReader
	logger logging.Logger
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(runs app.RunReader, logger logging.Logger) *RunsHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RunsHandler{runs: runs, logger: logger}
}

// ListRuns handles GET /api/v1/runs?scorer=&since=&limit=.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRunFilter(r.URL.Query())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	runs, err := h.runs.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list scoring runs", logging.Err(err))
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, runs)
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, run)
}

func parseRunFilter(q url.Values) (types.RunFilter, error) {
	filter := types.RunFilter{Scorer: q.Get("scorer")}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.Wrap(err, errors.ErrCodeInvalidParam, "since must be an RFC 3339 timestamp").WithDetail(v)
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := cast.ToIntE(v)
		if err != nil || limit < 0 {
			return filter, errors.InvalidParam("limit must be a non-negative integer").WithDetail(v)
		}
		filter.Limit = limit
	}
	return filter.Normalize(), nil
}
