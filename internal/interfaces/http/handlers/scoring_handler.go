package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	app "github.com/turtacn/molscore/internal/application/scoring"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// DefaultMaxBodyBytes bounds a score request body.
const DefaultMaxBodyBytes int64 = 8 << 20

// ScoringHandler serves the scorer endpoints.
type ScoringHandler struct {
	service      app.Service
	maxBodyBytes int64
	logger       logging.Logger
}

// NewScoringHandler creates a ScoringHandler. maxBodyBytes <= 0 selects
// DefaultMaxBodyBytes.
func NewScoringHandler(service app.Service, maxBodyBytes int64, logger logging.Logger) *ScoringHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ScoringHandler{service: service, maxBodyBytes: maxBodyBytes, logger: logger}
}

// ListScorers handles GET /api/v1/scorers.
func (h *ScoringHandler) ListScorers(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, h.service.ListScorers(r.Context()))
}

// Score handles POST /api/v1/scorers/{name}/score.
func (h *ScoringHandler) Score(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeAppError(w, r, errors.Wrap(err, errors.ErrCodeInvalidParam, "request body too large or unreadable"))
		return
	}

	var req types.ScoreRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeAppError(w, r, errors.Wrap(err, errors.ErrCodeInvalidParam, "malformed score request"))
		return
	}
	req.Scorer = chi.URLParam(r, "name")
	req.Source = types.SourceHTTP
	if req.RequestID == "" {
		req.RequestID = chimw.GetReqID(r.Context())
	}

	resp, err := h.service.Score(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, resp)
}
