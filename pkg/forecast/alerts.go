package forecast

import (
	"fmt"

	"github.com/stride-dev/stride/pkg/board"
)

// AlertType identifies a board-level alert condition.
type AlertType string

const (
	AlertTargetRisk   AlertType = "target_risk"
	AlertVarianceHigh AlertType = "variance_high"
	AlertVelocityDrop AlertType = "velocity_drop"
)

// AlertTypes lists every condition EvaluateAlerts reports on, in
// evaluation order.
var AlertTypes = []AlertType{AlertTargetRisk, AlertVarianceHigh, AlertVelocityDrop}

// Alert is the evaluated status of one condition for one board.
// Triggered=false means the condition currently holds clear; the store
// uses that to auto-resolve a previously raised alert of the same type.
type Alert struct {
	BoardID   string
	Type      AlertType
	Severity  board.RiskLevel
	Message   string
	Triggered bool
}

// EvaluateAlerts derives the alert status of every condition from a
// projection. Exactly one entry per AlertType is returned, triggered or
// not, so persistence can both raise and resolve. At most one alert per
// (board, type) is ever active; the store enforces that atomically.
func EvaluateAlerts(p Projection) []Alert {
	return []Alert{
		checkTargetRisk(p),
		checkVarianceHigh(p),
		checkVelocityDrop(p),
	}
}

// checkTargetRisk fires when a target date exists and the delay
// probability reaches 30%.
func checkTargetRisk(p Projection) Alert {
	a := Alert{BoardID: p.BoardID, Type: AlertTargetRisk}

	if p.TargetDate == nil || p.DelayProbability < 30 {
		return a
	}

	a.Triggered = true
	a.Severity = board.RiskHigh
	if p.DelayProbability >= 50 {
		a.Severity = board.RiskCritical
	}
	a.Message = fmt.Sprintf("Target date %s is at risk: %.0f%% delay probability, projected completion %s.",
		p.TargetDate.Format("2006-01-02"), p.DelayProbability, p.PredictedDate.Format("2006-01-02"))
	return a
}

// checkVarianceHigh fires when velocity CV exceeds 40%.
func checkVarianceHigh(p Projection) Alert {
	a := Alert{BoardID: p.BoardID, Type: AlertVarianceHigh}

	if p.Trend == TrendInsufficientData || p.CV <= 40 {
		return a
	}

	a.Triggered = true
	a.Severity = board.RiskMedium
	a.Message = fmt.Sprintf("Velocity variance is high: coefficient of variation %.0f%% over %d periods.",
		p.CV, p.SampleCount)
	return a
}

// checkVelocityDrop fires when the trend classifier reports decline.
func checkVelocityDrop(p Projection) Alert {
	a := Alert{BoardID: p.BoardID, Type: AlertVelocityDrop}

	if p.Trend != TrendDecreasing {
		return a
	}

	a.Triggered = true
	a.Severity = board.RiskHigh
	a.Message = fmt.Sprintf("Velocity is declining: recent average %.1f %s per period against earlier periods.",
		p.AverageVelocity, p.Metric)
	return a
}
