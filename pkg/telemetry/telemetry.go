// Package telemetry exposes Prometheus metrics for the analysis
// pipeline. Hosts that embed the runner can serve them with promhttp;
// the CLI leaves them unexported unless watch mode is given a listen
// address.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the analysis pipeline.
type Metrics struct {
	// Pipeline metrics
	AnalysisRuns     *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec

	// Coaching metrics
	SuggestionsEmitted *prometheus.CounterVec

	// Forecast metrics
	ForecastDelayProbability *prometheus.GaugeVec
	ForecastDaysUntil        *prometheus.GaugeVec

	// Alert metrics
	AlertsRaised   *prometheus.CounterVec
	AlertsResolved *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all pipeline metrics. Registration
// happens once per process; later calls return the shared instance.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			AnalysisRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stride_analysis_runs_total",
					Help: "Total number of analysis passes",
				},
				[]string{"board_id", "result"},
			),
			AnalysisDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "stride_analysis_duration_seconds",
					Help:    "Duration of one analysis pass in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to 5s
				},
				[]string{"board_id"},
			),
			SuggestionsEmitted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stride_suggestions_emitted_total",
					Help: "Total number of coaching suggestions emitted",
				},
				[]string{"type", "severity", "method"},
			),
			ForecastDelayProbability: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "stride_forecast_delay_probability",
					Help: "Probability (0-100) that the board misses its target date",
				},
				[]string{"board_id"},
			),
			ForecastDaysUntil: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "stride_forecast_days_until_completion",
					Help: "Projected days until the board completes",
				},
				[]string{"board_id"},
			),
			AlertsRaised: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stride_alerts_raised_total",
					Help: "Total number of alerts raised",
				},
				[]string{"board_id"},
			),
			AlertsResolved: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stride_alerts_resolved_total",
					Help: "Total number of alerts resolved",
				},
				[]string{"board_id"},
			),
		}
	})

	return sharedMetrics
}

// RecordAnalysis records one analysis pass.
func (m *Metrics) RecordAnalysis(boardID string, err error, seconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.AnalysisRuns.WithLabelValues(boardID, result).Inc()
	m.AnalysisDuration.WithLabelValues(boardID).Observe(seconds)
}

// RecordSuggestion records one emitted suggestion.
func (m *Metrics) RecordSuggestion(suggestionType, severity, method string) {
	m.SuggestionsEmitted.WithLabelValues(suggestionType, severity, method).Inc()
}

// RecordForecast publishes the latest projection gauges for a board.
func (m *Metrics) RecordForecast(boardID string, delayProbability float64, daysUntil int) {
	m.ForecastDelayProbability.WithLabelValues(boardID).Set(delayProbability)
	m.ForecastDaysUntil.WithLabelValues(boardID).Set(float64(daysUntil))
}

// RecordAlerts records the outcome of one alert sync.
func (m *Metrics) RecordAlerts(boardID string, raised, resolved int) {
	if raised > 0 {
		m.AlertsRaised.WithLabelValues(boardID).Add(float64(raised))
	}
	if resolved > 0 {
		m.AlertsResolved.WithLabelValues(boardID).Add(float64(resolved))
	}
}
