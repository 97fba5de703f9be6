// Package scoring defines the scoring request and response messages used by
// the HTTP API, the Go client and the Kafka worker.
package scoring

import (
	"time"

	"github.com/turtacn/molscore/pkg/types/common"
)

// Request sources recorded in the run history.
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
	SourceCLI   = "cli"
)

// ScoreRequest asks for a batch of SMILES strings to be scored.
type ScoreRequest struct {
	// RequestID correlates the response. The server assigns one when empty.
	RequestID string `json:"request_id,omitempty"`
	// Scorer is the registered scorer name. The HTTP API takes it from
	// the path instead.
	Scorer  string         `json:"scorer,omitempty"`
	SMILES  []string       `json:"smiles"`
	Options map[string]any `json:"options,omitempty"`
	// Source names the transport that received the request.
	Source string `json:"-"`
}

// ScoreResponse carries one score per requested SMILES, in request order.
type ScoreResponse struct {
	RequestID  string              `json:"request_id"`
	Scorer     string              `json:"scorer"`
	Scores     []float32           `json:"scores"`
	DurationMs int64               `json:"duration_ms"`
	Error      *common.ErrorDetail `json:"error,omitempty"`
}

// ScorerInfo describes a registered scorer.
type ScorerInfo struct {
	Name     string  `json:"name"`
	Sentinel float32 `json:"sentinel"`
}

// ScoreRun is the history record of one scoring request. MeanScore and
// MaxScore cover every slot of the batch, sentinels included. Valid counts
// the molecules that parsed and stays zero for scorers that do not report
// validity.
type ScoreRun struct {
	RequestID  string         `json:"request_id"`
	Scorer     string         `json:"scorer"`
	Source     string         `json:"source,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
	Molecules  int            `json:"molecules"`
	Valid      int            `json:"valid"`
	MeanScore  float64        `json:"mean_score"`
	MaxScore   float64        `json:"max_score"`
	DurationMs int64          `json:"duration_ms"`
	ErrorCode  string         `json:"error_code,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Failed reports whether the request ended with an error.
func (r *ScoreRun) Failed() bool { return r.ErrorCode != "" }

// RunFilter selects history records, newest first.
type RunFilter struct {
	Scorer string
	Since  time.Time
	Limit  int
}

// Run history page sizes.
const (
	DefaultRunLimit = 50
	MaxRunLimit     = 1000
)

// Normalize clamps Limit into [1, MaxRunLimit].
func (f RunFilter) Normalize() RunFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultRunLimit
	case f.Limit > MaxRunLimit:
		f.Limit = MaxRunLimit
	}
	return f
}
