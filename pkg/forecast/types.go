// Package forecast computes completion projections with confidence
// bounds from a board's velocity history, classifies schedule risk,
// and derives prioritized improvement recommendations and alert
// conditions from the projection.
package forecast

import (
	"time"

	"github.com/stride-dev/stride/pkg/board"
)

// Core tuning constants. Periods are calendar weeks.
const (
	// MinVelocitySamples is the smallest history that supports a real
	// projection; below it Forecast returns the low-confidence fallback.
	MinVelocitySamples = 3

	// DefaultWindowPeriods caps how much history feeds the statistics.
	DefaultWindowPeriods = 8

	// DaysPerPeriod converts period-denominated velocity into days.
	DaysPerPeriod = 7

	// UnpredictableDays is the sentinel horizon reported when average
	// velocity is zero or negative and no completion can be projected.
	UnpredictableDays = 999

	// FallbackConfidence is the score attached to the insufficient-data
	// fallback projection.
	FallbackConfidence = 0.30
)

// Trend labels the direction of recent velocity movement.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendStable           Trend = "stable"
	TrendDecreasing       Trend = "decreasing"
	TrendInsufficientData Trend = "insufficient_data"
)

// ConfidenceLevel is the interval width the caller asks for.
type ConfidenceLevel int

const (
	Confidence90 ConfidenceLevel = 90
	Confidence95 ConfidenceLevel = 95
	Confidence99 ConfidenceLevel = 99
)

// ZScore returns the two-sided normal z-score for the level.
// Unknown levels fall back to the 95% value.
func (c ConfidenceLevel) ZScore() float64 {
	switch c {
	case Confidence90:
		return 1.645
	case Confidence99:
		return 2.576
	default:
		return 1.96
	}
}

// Options tunes one Forecast call. The zero value is usable: AsOf
// defaults to time.Now(), the window to DefaultWindowPeriods, the
// metric to tasks, and the confidence level to 95%.
type Options struct {
	AsOf            time.Time
	TargetDate      *time.Time
	ConfidenceLevel ConfidenceLevel
	WindowPeriods   int
	Metric          board.Metric
}

func (o Options) withDefaults() Options {
	if o.AsOf.IsZero() {
		o.AsOf = time.Now().UTC()
	}
	if o.ConfidenceLevel == 0 {
		o.ConfidenceLevel = Confidence95
	}
	if o.WindowPeriods <= 0 {
		o.WindowPeriods = DefaultWindowPeriods
	}
	if o.Metric == "" {
		o.Metric = board.MetricTasks
	}
	return o
}

// Projection is the forecaster's primary output: when the remaining
// scope completes, how sure we are, and how risky the schedule looks.
// Values are final once returned; persisted history is append-only.
type Projection struct {
	BoardID string
	AsOf    time.Time

	PredictedDate     time.Time
	LowerBound        time.Time
	UpperBound        time.Time
	DaysUntil         int
	MarginOfErrorDays float64
	ConfidenceScore   float64 // 0-1
	ConfidenceLevel   ConfidenceLevel

	RiskLevel        board.RiskLevel
	DelayProbability float64 // 0-100
	Trend            Trend

	TargetDate     *time.Time
	WillMeetTarget bool

	// Window statistics carried as evidence.
	Metric          board.Metric
	AverageVelocity float64
	StdDev          float64
	CV              float64
	SampleCount     int
}

// Predictable reports whether the projection carries a real completion
// date rather than the insufficient-data or zero-velocity degenerate.
func (p Projection) Predictable() bool {
	return p.Trend != TrendInsufficientData && p.DaysUntil != UnpredictableDays
}

// Recommendation is one prioritized improvement lever derived from the
// projection. Lower Priority sorts first.
type Recommendation struct {
	Priority int
	Code     string
	Summary  string
	Detail   string
	Impact   string // low, medium, high, critical
	Effort   string // low, medium, high
}

// Recommendation codes, in priority order.
const (
	RecReduceScope        = "reduce_scope"
	RecStabilizeVelocity  = "stabilize_velocity"
	RecAddressSlowdown    = "address_slowdown"
	RecIncreaseCapacity   = "increase_capacity"
	RecProcessImprovement = "process_improvement"
	RecIncreaseMonitoring = "increase_monitoring"
	RecGatherMoreData     = "gather_more_data"
)
