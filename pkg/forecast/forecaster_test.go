package forecast

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stride-dev/stride/pkg/board"
)

var testAsOf = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

// weeklySnapshots builds one snapshot per week ending at testAsOf,
// oldest first, with the given completed-task counts.
func weeklySnapshots(tasks ...int) []board.VelocitySnapshot {
	snaps := make([]board.VelocitySnapshot, len(tasks))
	for i, n := range tasks {
		start := testAsOf.AddDate(0, 0, -7*(len(tasks)-i))
		snaps[i] = board.VelocitySnapshot{
			BoardID:        "board-1",
			PeriodStart:    start,
			PeriodEnd:      start.AddDate(0, 0, 7),
			TasksCompleted: n,
			QualityScore:   95,
		}
	}
	return snaps
}

func TestForecastSteadyVelocity(t *testing.T) {
	f := New(nil)
	scope := board.ScopeMetrics{TotalTasks: 55, CompletedTasks: 30, RemainingTasks: 25}

	proj, recs := f.Forecast("board-1", weeklySnapshots(10, 10, 10), scope, Options{AsOf: testAsOf})

	// 25 remaining at 10 per week is 2.5 weeks, rounded up to 18 days.
	if proj.DaysUntil != 18 {
		t.Errorf("DaysUntil = %d, want 18", proj.DaysUntil)
	}
	want := testAsOf.AddDate(0, 0, 18)
	if !proj.PredictedDate.Equal(want) {
		t.Errorf("PredictedDate = %v, want %v", proj.PredictedDate, want)
	}
	if proj.MarginOfErrorDays != 0 {
		t.Errorf("MarginOfErrorDays = %v, want 0 for zero variance", proj.MarginOfErrorDays)
	}
	if !proj.LowerBound.Equal(proj.PredictedDate) || !proj.UpperBound.Equal(proj.PredictedDate) {
		t.Error("zero-variance bounds should collapse onto the predicted date")
	}
	if proj.Trend != TrendStable {
		t.Errorf("Trend = %v, want stable", proj.Trend)
	}
	if proj.RiskLevel != board.RiskLow || proj.DelayProbability != 10 {
		t.Errorf("risk = %v/%v, want low/10", proj.RiskLevel, proj.DelayProbability)
	}
	if len(recs) != 0 {
		t.Errorf("healthy board should produce no recommendations, got %d", len(recs))
	}
}

func TestForecastMarginMonotonicInConfidenceLevel(t *testing.T) {
	f := New(nil)
	snaps := weeklySnapshots(8, 12, 10, 14, 6, 10, 12, 8)
	scope := board.ScopeMetrics{TotalTasks: 100, CompletedTasks: 80, RemainingTasks: 20}

	margins := make(map[ConfidenceLevel]float64)
	for _, level := range []ConfidenceLevel{Confidence90, Confidence95, Confidence99} {
		proj, _ := f.Forecast("board-1", snaps, scope, Options{AsOf: testAsOf, ConfidenceLevel: level})
		margins[level] = proj.MarginOfErrorDays
	}

	if !(margins[Confidence90] < margins[Confidence95] && margins[Confidence95] < margins[Confidence99]) {
		t.Errorf("margins not monotonic: 90=%v 95=%v 99=%v",
			margins[Confidence90], margins[Confidence95], margins[Confidence99])
	}
}

func TestForecastIdempotent(t *testing.T) {
	f := New(nil)
	snaps := weeklySnapshots(8, 12, 10, 14, 6, 10, 12, 8)
	scope := board.ScopeMetrics{TotalTasks: 100, CompletedTasks: 80, RemainingTasks: 20}
	target := testAsOf.AddDate(0, 0, 16)
	opts := Options{AsOf: testAsOf, TargetDate: &target}

	proj1, recs1 := f.Forecast("board-1", snaps, scope, opts)
	proj2, recs2 := f.Forecast("board-1", snaps, scope, opts)

	if !reflect.DeepEqual(proj1, proj2) {
		t.Errorf("projections differ across identical runs:\n%+v\n%+v", proj1, proj2)
	}
	if !reflect.DeepEqual(recs1, recs2) {
		t.Error("recommendations differ across identical runs")
	}
}

func TestForecastTargetBuckets(t *testing.T) {
	f := New(nil)
	// Zero variance, 20 remaining at 10 per week: predicted in 14 days.
	snaps := weeklySnapshots(10, 10, 10, 10)
	scope := board.ScopeMetrics{TotalTasks: 40, CompletedTasks: 20, RemainingTasks: 20}

	tests := []struct {
		name         string
		targetOffset int // days after AsOf
		wantDelay    float64
		wantRisk     board.RiskLevel
		wantMeet     bool
	}{
		{name: "comfortable buffer", targetOffset: 20, wantDelay: 3, wantRisk: board.RiskLow, wantMeet: true},
		{name: "lands exactly on target", targetOffset: 14, wantDelay: 3, wantRisk: board.RiskLow, wantMeet: true},
		{name: "target already missed", targetOffset: 10, wantDelay: 97, wantRisk: board.RiskCritical, wantMeet: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := testAsOf.AddDate(0, 0, tt.targetOffset)
			proj, _ := f.Forecast("board-1", snaps, scope, Options{AsOf: testAsOf, TargetDate: &target})

			if proj.DelayProbability != tt.wantDelay {
				t.Errorf("DelayProbability = %v, want %v", proj.DelayProbability, tt.wantDelay)
			}
			if proj.RiskLevel != tt.wantRisk {
				t.Errorf("RiskLevel = %v, want %v", proj.RiskLevel, tt.wantRisk)
			}
			if proj.WillMeetTarget != tt.wantMeet {
				t.Errorf("WillMeetTarget = %v, want %v", proj.WillMeetTarget, tt.wantMeet)
			}
		})
	}
}

func TestForecastTargetMidBucket(t *testing.T) {
	f := New(nil)
	// mean 10, sample stdev ~2.62, so one standard error is ~1.83 days.
	snaps := weeklySnapshots(8, 12, 10, 14, 6, 10, 12, 8)
	scope := board.ScopeMetrics{TotalTasks: 100, CompletedTasks: 80, RemainingTasks: 20}
	target := testAsOf.AddDate(0, 0, 16) // two days of buffer, z just above 1

	proj, _ := f.Forecast("board-1", snaps, scope, Options{AsOf: testAsOf, TargetDate: &target})

	if proj.DelayProbability != 16 {
		t.Errorf("DelayProbability = %v, want 16", proj.DelayProbability)
	}
	if proj.RiskLevel != board.RiskMedium {
		t.Errorf("RiskLevel = %v, want medium", proj.RiskLevel)
	}
	if !proj.WillMeetTarget {
		t.Error("WillMeetTarget = false, want true")
	}
}

func TestForecastInsufficientHistory(t *testing.T) {
	f := New(nil)
	scope := board.ScopeMetrics{TotalTasks: 10, CompletedTasks: 2, RemainingTasks: 8}

	proj, recs := f.Forecast("board-1", weeklySnapshots(5, 7), scope, Options{AsOf: testAsOf})

	if proj.Trend != TrendInsufficientData {
		t.Errorf("Trend = %v, want insufficient_data", proj.Trend)
	}
	if proj.ConfidenceScore != FallbackConfidence {
		t.Errorf("ConfidenceScore = %v, want %v", proj.ConfidenceScore, FallbackConfidence)
	}
	if proj.RiskLevel != board.RiskMedium {
		t.Errorf("RiskLevel = %v, want medium", proj.RiskLevel)
	}
	if proj.Predictable() {
		t.Error("fallback projection should not claim to be predictable")
	}
	if len(recs) != 1 || recs[0].Code != RecGatherMoreData {
		t.Fatalf("recs = %+v, want single gather_more_data", recs)
	}
}

func TestForecastZeroVelocitySentinel(t *testing.T) {
	f := New(nil)
	scope := board.ScopeMetrics{TotalTasks: 10, CompletedTasks: 0, RemainingTasks: 10}

	t.Run("without target", func(t *testing.T) {
		proj, _ := f.Forecast("board-1", weeklySnapshots(0, 0, 0, 0), scope, Options{AsOf: testAsOf})

		if proj.DaysUntil != UnpredictableDays {
			t.Errorf("DaysUntil = %d, want %d", proj.DaysUntil, UnpredictableDays)
		}
		if proj.RiskLevel != board.RiskHigh || proj.DelayProbability != 40 {
			t.Errorf("risk = %v/%v, want high/40", proj.RiskLevel, proj.DelayProbability)
		}
	})

	t.Run("with target", func(t *testing.T) {
		target := testAsOf.AddDate(0, 0, 30)
		proj, _ := f.Forecast("board-1", weeklySnapshots(0, 0, 0, 0), scope, Options{AsOf: testAsOf, TargetDate: &target})

		if proj.DaysUntil != UnpredictableDays {
			t.Errorf("DaysUntil = %d, want %d", proj.DaysUntil, UnpredictableDays)
		}
		if proj.DelayProbability != 97 || proj.RiskLevel != board.RiskCritical {
			t.Errorf("risk = %v/%v, want critical/97", proj.RiskLevel, proj.DelayProbability)
		}
		if proj.WillMeetTarget {
			t.Error("WillMeetTarget = true, want false")
		}
	})
}

func TestForecastHighVarianceNoTarget(t *testing.T) {
	f := New(nil)
	// Story points 3.5/10/16.5: mean 10, sample stdev 6.5, CV exactly 65.
	snaps := weeklySnapshots(0, 0, 0)
	snaps[0].StoryPointsCompleted = 3.5
	snaps[1].StoryPointsCompleted = 10
	snaps[2].StoryPointsCompleted = 16.5
	scope := board.ScopeMetrics{TotalStoryPoints: 60, CompletedStoryPoints: 30}

	proj, _ := f.Forecast("board-1", snaps, scope, Options{AsOf: testAsOf, Metric: board.MetricPoints})

	if math.Abs(proj.CV-65) > 1e-9 {
		t.Fatalf("CV = %v, want 65", proj.CV)
	}
	if proj.RiskLevel != board.RiskHigh {
		t.Errorf("RiskLevel = %v, want high", proj.RiskLevel)
	}
	if proj.DelayProbability != 40 {
		t.Errorf("DelayProbability = %v, want 40", proj.DelayProbability)
	}
}

func TestForecastWindowCap(t *testing.T) {
	f := New(nil)
	// Four noisy early weeks that must fall outside the 8-period window.
	snaps := weeklySnapshots(50, 50, 50, 50, 10, 10, 10, 10, 10, 10, 10, 10)
	scope := board.ScopeMetrics{TotalTasks: 100, CompletedTasks: 50, RemainingTasks: 50}

	proj, _ := f.Forecast("board-1", snaps, scope, Options{AsOf: testAsOf})

	if proj.SampleCount != DefaultWindowPeriods {
		t.Errorf("SampleCount = %d, want %d", proj.SampleCount, DefaultWindowPeriods)
	}
	if proj.AverageVelocity != 10 {
		t.Errorf("AverageVelocity = %v, want 10 (early periods must be excluded)", proj.AverageVelocity)
	}
}

func TestForecastConfidenceBounds(t *testing.T) {
	f := New(nil)

	cases := [][]int{
		{0, 0, 0},
		{1, 1, 1},
		{100, 0, 100, 0, 100, 0, 100, 0},
		{3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3},
	}

	for _, tasks := range cases {
		scope := board.ScopeMetrics{TotalTasks: 50, CompletedTasks: 10, RemainingTasks: 40}
		proj, _ := f.Forecast("board-1", weeklySnapshots(tasks...), scope, Options{AsOf: testAsOf})
		if proj.ConfidenceScore < 0 || proj.ConfidenceScore > 1 {
			t.Errorf("ConfidenceScore = %v out of [0,1] for %v", proj.ConfidenceScore, tasks)
		}
		if proj.DelayProbability < 0 || proj.DelayProbability > 100 {
			t.Errorf("DelayProbability = %v out of [0,100] for %v", proj.DelayProbability, tasks)
		}
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name       string
		velocities []float64
		want       Trend
	}{
		{name: "too short", velocities: []float64{5, 6}, want: TrendInsufficientData},
		{name: "flat", velocities: []float64{10, 10, 10}, want: TrendStable},
		{name: "rising past threshold", velocities: []float64{10, 10, 10, 12, 12, 12}, want: TrendIncreasing},
		{name: "exactly minus ten percent is stable", velocities: []float64{10, 10, 10, 9, 9, 9}, want: TrendStable},
		{name: "falling past threshold", velocities: []float64{10, 10, 10, 8, 8, 8}, want: TrendDecreasing},
		{name: "zero start with progress", velocities: []float64{0, 0, 0, 4, 5, 6}, want: TrendIncreasing},
		{name: "all zero", velocities: []float64{0, 0, 0}, want: TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyTrend(tt.velocities); got != tt.want {
				t.Errorf("classifyTrend(%v) = %v, want %v", tt.velocities, got, tt.want)
			}
		})
	}
}

func TestBuildRecommendationsOrderAndCoverage(t *testing.T) {
	proj := Projection{
		DelayProbability: 40,
		CV:               45,
		Trend:            TrendDecreasing,
		RiskLevel:        board.RiskHigh,
	}

	recs := buildRecommendations(proj)

	wantCodes := []string{
		RecReduceScope,
		RecStabilizeVelocity,
		RecAddressSlowdown,
		RecIncreaseCapacity,
		RecProcessImprovement,
		RecIncreaseMonitoring,
	}
	if len(recs) != len(wantCodes) {
		t.Fatalf("len(recs) = %d, want %d", len(recs), len(wantCodes))
	}
	for i, rec := range recs {
		if rec.Code != wantCodes[i] {
			t.Errorf("recs[%d].Code = %s, want %s", i, rec.Code, wantCodes[i])
		}
		if rec.Priority != i+1 {
			t.Errorf("recs[%d].Priority = %d, want %d", i, rec.Priority, i+1)
		}
		if rec.Summary == "" || rec.Detail == "" || rec.Impact == "" || rec.Effort == "" {
			t.Errorf("recs[%d] has empty fields: %+v", i, rec)
		}
	}

	if got := buildRecommendations(Projection{Trend: TrendStable, CV: 10, DelayProbability: 5}); len(got) != 0 {
		t.Errorf("healthy projection produced %d recommendations", len(got))
	}
}
