package prometheus

// Label values shared by the scoring metrics.
const (
	StatusOK    = "ok"
	StatusError = "error"

	ValidityValid   = "valid"
	ValidityInvalid = "invalid"
)

// ScoringMetrics holds the metrics recorded by the scoring service and its
// transports.
type ScoringMetrics struct {
	ScoreRequestsTotal  CounterVec
	ScoreDuration       HistogramVec
	MoleculesTotal      CounterVec
	ScorerConstructions CounterVec
	ScorerPoolLookups   CounterVec
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	WorkerMessagesTotal CounterVec
	WorkerInFlight      GaugeVec
}

// NewScoringMetrics registers the scoring metrics on collector.
func NewScoringMetrics(collector MetricsCollector) *ScoringMetrics {
	return &ScoringMetrics{
		ScoreRequestsTotal: collector.RegisterCounter("score_requests_total",
			"Scoring calls by scorer and outcome.", "scorer", "status"),
		ScoreDuration: collector.RegisterHistogram("score_duration_seconds",
			"Latency of scoring calls.", nil, "scorer"),
		MoleculesTotal: collector.RegisterCounter("molecules_total",
			"Molecules scored by scorer and validity.", "scorer", "validity"),
		ScorerConstructions: collector.RegisterCounter("scorer_constructions_total",
			"Scorer constructions by scorer and outcome.", "scorer", "status"),
		ScorerPoolLookups: collector.RegisterCounter("scorer_pool_lookups_total",
			"Scorer pool lookups by result.", "result"),
		HTTPRequestsTotal: collector.RegisterCounter("http_requests_total",
			"HTTP requests by method, route and status code.", "method", "route", "code"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds",
			"HTTP request latency.", nil, "method", "route"),
		WorkerMessagesTotal: collector.RegisterCounter("worker_messages_total",
			"Scoring requests consumed from the message stream by outcome.", "status"),
		WorkerInFlight: collector.RegisterGauge("worker_in_flight",
			"Scoring requests currently being processed by the worker."),
	}
}

// ObserveBatch records the validity split of a scored batch.
func (m *ScoringMetrics) ObserveBatch(scorer string, total, valid int) {
	if valid > 0 {
		m.MoleculesTotal.WithLabelValues(scorer, ValidityValid).Add(float64(valid))
	}
	if invalid := total - valid; invalid > 0 {
		m.MoleculesTotal.WithLabelValues(scorer, ValidityInvalid).Add(float64(invalid))
	}
}
