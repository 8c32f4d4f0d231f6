package forecast

import (
	"log/slog"
	"math"
	"time"

	"github.com/stride-dev/stride/pkg/board"
)

// Forecaster turns velocity history and scope into completion
// projections. It holds no mutable state; a single instance is safe
// for concurrent use.
type Forecaster struct {
	logger *slog.Logger
}

// New creates a Forecaster. The logger may be nil.
func New(logger *slog.Logger) *Forecaster {
	return &Forecaster{logger: logger}
}

// Forecast computes a completion projection and its improvement
// recommendations for one board. It is pure given its inputs and
// opts.AsOf, and it never fails: short history, zero velocity, and
// null-like numerics all degrade to well-defined projections.
func (f *Forecaster) Forecast(boardID string, snaps []board.VelocitySnapshot, scope board.ScopeMetrics, opts Options) (Projection, []Recommendation) {
	opts = opts.withDefaults()
	snaps = board.NormalizeSnapshots(snaps)

	if len(snaps) < MinVelocitySamples {
		f.logDebug("insufficient velocity history, returning fallback projection",
			"board", boardID, "samples", len(snaps), "required", MinVelocitySamples)
		proj := fallbackProjection(boardID, len(snaps), opts)
		return proj, []Recommendation{gatherMoreDataRecommendation(len(snaps))}
	}

	window := snaps
	if len(window) > opts.WindowPeriods {
		window = window[len(window)-opts.WindowPeriods:]
	}

	velocities := make([]float64, len(window))
	for i, s := range window {
		velocities[i] = s.Velocity(opts.Metric)
	}

	avg := mean(velocities)
	stdev := sampleStdDev(velocities)
	cv := coefficientOfVariation(avg, stdev)

	proj := Projection{
		BoardID:         boardID,
		AsOf:            opts.AsOf,
		ConfidenceLevel: opts.ConfidenceLevel,
		Trend:           classifyTrend(velocities),
		ConfidenceScore: confidenceScore(velocities, cv),
		TargetDate:      opts.TargetDate,
		Metric:          opts.Metric,
		AverageVelocity: avg,
		StdDev:          stdev,
		CV:              cv,
		SampleCount:     len(velocities),
	}

	remaining := scope.Remaining(opts.Metric)

	if avg <= 0 {
		// No forward progress on record; completion cannot be projected.
		proj.DaysUntil = UnpredictableDays
		proj.PredictedDate = opts.AsOf.AddDate(0, 0, UnpredictableDays)
		proj.LowerBound = proj.PredictedDate
		proj.UpperBound = proj.PredictedDate
	} else {
		weeksNeeded := remaining / avg
		daysUntil := int(math.Ceil(weeksNeeded * DaysPerPeriod))
		if daysUntil < 0 {
			daysUntil = 0
		}
		proj.DaysUntil = daysUntil
		proj.PredictedDate = opts.AsOf.AddDate(0, 0, daysUntil)
		proj.MarginOfErrorDays = opts.ConfidenceLevel.ZScore() * stdev * DaysPerPeriod / avg
		marginDur := time.Duration(proj.MarginOfErrorDays * 24 * float64(time.Hour))
		proj.LowerBound = proj.PredictedDate.Add(-marginDur)
		proj.UpperBound = proj.PredictedDate.Add(marginDur)
	}

	assessRisk(&proj)

	f.logDebug("projection computed",
		"board", boardID,
		"days_until", proj.DaysUntil,
		"risk", proj.RiskLevel,
		"delay_probability", proj.DelayProbability,
		"trend", proj.Trend,
		"confidence", proj.ConfidenceScore)

	return proj, buildRecommendations(proj)
}

// fallbackProjection is returned when history is too thin to project.
func fallbackProjection(boardID string, samples int, opts Options) Projection {
	return Projection{
		BoardID:         boardID,
		AsOf:            opts.AsOf,
		ConfidenceLevel: opts.ConfidenceLevel,
		ConfidenceScore: FallbackConfidence,
		RiskLevel:       board.RiskMedium,
		Trend:           TrendInsufficientData,
		TargetDate:      opts.TargetDate,
		Metric:          opts.Metric,
		SampleCount:     samples,
	}
}

// classifyTrend compares the mean of the three most recent periods
// against the mean of the three oldest periods in the window. A swing
// beyond ±10% is a trend; anything inside the band is stable.
func classifyTrend(velocities []float64) Trend {
	if len(velocities) < 3 {
		return TrendInsufficientData
	}

	recent := mean(lastN(velocities, 3))
	oldest := mean(firstN(velocities, 3))

	if oldest <= 0 {
		if recent > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}

	change := (recent - oldest) / oldest * 100
	switch {
	case change > 10:
		return TrendIncreasing
	case change < -10:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// confidenceScore blends sample adequacy (30%), overall consistency
// (40%), and recent consistency (30%) into a 0-1 score. Adequacy
// saturates at 10 samples; consistency inverts the CV.
func confidenceScore(velocities []float64, cv float64) float64 {
	adequacy := math.Min(float64(len(velocities))/10, 1)

	consistency := 1 - math.Min(cv, 100)/100

	recent := lastN(velocities, 3)
	recentCV := coefficientOfVariation(mean(recent), sampleStdDev(recent))
	recentConsistency := 1 - math.Min(recentCV, 100)/100

	score := 0.30*adequacy + 0.40*consistency + 0.30*recentConsistency
	return clamp(score, 0, 1)
}

// assessRisk fills RiskLevel, DelayProbability, and WillMeetTarget.
//
// Without a target the CV alone drives the call. With a target, the
// buffer between target and predicted date is scored against one
// standard error of the completion estimate and mapped through a
// fixed meet-probability bucket table.
func assessRisk(p *Projection) {
	if p.TargetDate == nil {
		switch {
		case p.CV < 20:
			p.RiskLevel = board.RiskLow
			p.DelayProbability = 10
		case p.CV < 40:
			p.RiskLevel = board.RiskMedium
			p.DelayProbability = 25
		default:
			p.RiskLevel = board.RiskHigh
			p.DelayProbability = 40
		}
		return
	}

	if !p.Predictable() {
		p.WillMeetTarget = false
		p.DelayProbability = 97
		p.RiskLevel = board.RiskCritical
		return
	}

	daysDiff := p.TargetDate.Sub(p.PredictedDate).Hours() / 24
	p.WillMeetTarget = daysDiff >= 0

	var z float64
	stderrDays := 0.0
	if p.AverageVelocity > 0 {
		stderrDays = p.StdDev * DaysPerPeriod / p.AverageVelocity
	}
	switch {
	case stderrDays > 0:
		z = daysDiff / stderrDays
	case daysDiff >= 0:
		// Zero variance makes the estimate exact; the verdict is binary.
		z = 3
	default:
		z = -3
	}

	p.DelayProbability = 100 - meetProbability(z)
	p.RiskLevel = riskFromDelay(p.DelayProbability)
}

// meetProbability maps a buffer z-score to the chance of hitting the
// target, using the coarse bucket table the product has always shipped.
func meetProbability(z float64) float64 {
	switch {
	case z > 2:
		return 97
	case z > 1:
		return 84
	case z > 0:
		return 65
	case z > -1:
		return 35
	case z > -2:
		return 16
	default:
		return 3
	}
}

// riskFromDelay converts a delay probability into the risk ladder.
func riskFromDelay(delay float64) board.RiskLevel {
	switch {
	case delay >= 50:
		return board.RiskCritical
	case delay >= 30:
		return board.RiskHigh
	case delay >= 15:
		return board.RiskMedium
	default:
		return board.RiskLow
	}
}

// logDebug logs a debug message if a logger is configured.
func (f *Forecaster) logDebug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
