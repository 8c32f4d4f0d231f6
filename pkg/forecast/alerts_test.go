package forecast

import (
	"testing"
	"time"

	"github.com/stride-dev/stride/pkg/board"
)

func TestEvaluateAlertsAllTriggered(t *testing.T) {
	target := testAsOf.AddDate(0, 0, 10)
	proj := Projection{
		BoardID:          "board-1",
		AsOf:             testAsOf,
		PredictedDate:    testAsOf.AddDate(0, 0, 25),
		TargetDate:       &target,
		DelayProbability: 55,
		CV:               48,
		SampleCount:      8,
		Trend:            TrendDecreasing,
		AverageVelocity:  6.5,
		Metric:           board.MetricTasks,
	}

	alerts := EvaluateAlerts(proj)

	if len(alerts) != len(AlertTypes) {
		t.Fatalf("len(alerts) = %d, want %d", len(alerts), len(AlertTypes))
	}

	byType := map[AlertType]Alert{}
	for _, a := range alerts {
		byType[a.Type] = a
	}

	tr := byType[AlertTargetRisk]
	if !tr.Triggered || tr.Severity != board.RiskCritical {
		t.Errorf("target_risk = %+v, want triggered critical", tr)
	}
	if tr.Message == "" || tr.BoardID != "board-1" {
		t.Errorf("target_risk missing message or board: %+v", tr)
	}

	vh := byType[AlertVarianceHigh]
	if !vh.Triggered || vh.Severity != board.RiskMedium {
		t.Errorf("variance_high = %+v, want triggered medium", vh)
	}

	vd := byType[AlertVelocityDrop]
	if !vd.Triggered || vd.Severity != board.RiskHigh {
		t.Errorf("velocity_drop = %+v, want triggered high", vd)
	}
}

func TestEvaluateAlertsClear(t *testing.T) {
	proj := Projection{
		BoardID:          "board-1",
		AsOf:             testAsOf,
		DelayProbability: 10,
		CV:               12,
		Trend:            TrendStable,
	}

	alerts := EvaluateAlerts(proj)

	if len(alerts) != len(AlertTypes) {
		t.Fatalf("len(alerts) = %d, want %d", len(alerts), len(AlertTypes))
	}
	for _, a := range alerts {
		if a.Triggered {
			t.Errorf("%s triggered on a healthy projection", a.Type)
		}
	}
}

func TestEvaluateAlertsTargetRiskThresholds(t *testing.T) {
	mk := func(delay float64, target *time.Time) Projection {
		return Projection{BoardID: "b", DelayProbability: delay, TargetDate: target, PredictedDate: testAsOf}
	}
	target := testAsOf.AddDate(0, 0, 5)

	tests := []struct {
		name          string
		proj          Projection
		wantTriggered bool
		wantSeverity  board.RiskLevel
	}{
		{name: "no target never fires", proj: mk(80, nil), wantTriggered: false},
		{name: "below threshold", proj: mk(29, &target), wantTriggered: false},
		{name: "at threshold is high", proj: mk(30, &target), wantTriggered: true, wantSeverity: board.RiskHigh},
		{name: "fifty and up is critical", proj: mk(50, &target), wantTriggered: true, wantSeverity: board.RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := checkTargetRisk(tt.proj)
			if a.Triggered != tt.wantTriggered {
				t.Fatalf("Triggered = %v, want %v", a.Triggered, tt.wantTriggered)
			}
			if tt.wantTriggered && a.Severity != tt.wantSeverity {
				t.Errorf("Severity = %v, want %v", a.Severity, tt.wantSeverity)
			}
		})
	}
}

func TestEvaluateAlertsVarianceIgnoresInsufficientData(t *testing.T) {
	proj := Projection{BoardID: "b", CV: 100, Trend: TrendInsufficientData}
	if a := checkVarianceHigh(proj); a.Triggered {
		t.Error("variance_high should not fire on insufficient data")
	}
}
