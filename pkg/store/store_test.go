package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/coach"
	"github.com/stride-dev/stride/pkg/forecast"
	"github.com/stride-dev/stride/pkg/learning"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "stride.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var storeAsOf = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestBoardRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Board(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	target := storeAsOf.AddDate(0, 0, 30)
	require.NoError(t, s.UpsertBoard(ctx, BoardInfo{ID: "b1", Name: "Platform", TargetDate: &target}))
	require.NoError(t, s.UpsertBoard(ctx, BoardInfo{ID: "b2", Name: "Mobile"}))

	got, err = s.Board(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Platform", got.Name)
	require.NotNil(t, got.TargetDate)
	assert.True(t, got.TargetDate.Equal(target))

	got, err = s.Board(ctx, "b2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.TargetDate)

	// Upsert replaces name and target.
	require.NoError(t, s.UpsertBoard(ctx, BoardInfo{ID: "b1", Name: "Platform Core"}))
	got, err = s.Board(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Platform Core", got.Name)
	assert.Nil(t, got.TargetDate)

	all, err := s.Boards(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b1", all[0].ID)
	assert.Equal(t, "b2", all[1].ID)
}

func TestTasksAndScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := storeAsOf.AddDate(0, 0, 5)
	tasks := []board.Task{
		{ID: "t1", Title: "done work", Progress: 100, StoryPoints: 3, LastUpdated: storeAsOf},
		{ID: "t2", Title: "in flight", Assignee: "alice", Priority: board.PriorityHigh,
			Risk: board.RiskHigh, DueDate: &due, Progress: 40, StoryPoints: 5,
			CommentCount: 2, LastUpdated: storeAsOf},
		{ID: "t3", Title: "not started", Progress: 0, StoryPoints: 2, LastUpdated: storeAsOf},
	}
	require.NoError(t, s.ReplaceTasks(ctx, "b1", tasks))

	active, err := s.ActiveTasks(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "t2", active[0].ID)
	assert.Equal(t, "t3", active[1].ID)
	assert.Equal(t, board.PriorityHigh, active[0].Priority)
	assert.Equal(t, board.RiskHigh, active[0].Risk)
	require.NotNil(t, active[0].DueDate)
	assert.True(t, active[0].DueDate.Equal(due))
	assert.Equal(t, 2, active[0].CommentCount)

	scope, err := s.Scope(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 3, scope.TotalTasks)
	assert.Equal(t, 1, scope.CompletedTasks)
	assert.Equal(t, 2, scope.RemainingTasks)
	assert.Equal(t, 10.0, scope.TotalStoryPoints)
	assert.Equal(t, 3.0, scope.CompletedStoryPoints)

	// Replace swaps the inventory wholesale.
	require.NoError(t, s.ReplaceTasks(ctx, "b1", tasks[:1]))
	scope, err = s.Scope(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, scope.TotalTasks)
}

func TestMembersRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	members := []board.Member{
		{ID: "m1", Name: "alice", DevelopingSkills: []string{"kubernetes", "sql"}},
		{ID: "m2", Name: "bob"},
	}
	require.NoError(t, s.ReplaceMembers(ctx, "b1", members))

	got, err := s.Members(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"kubernetes", "sql"}, got[0].DevelopingSkills)
	assert.Empty(t, got[1].DevelopingSkills)

	// Other boards see nothing.
	got, err = s.Members(ctx, "b2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotUpsertAndWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		start := storeAsOf.AddDate(0, 0, -7*(5-i))
		require.NoError(t, s.UpsertSnapshot(ctx, board.VelocitySnapshot{
			BoardID:        "b1",
			PeriodStart:    start,
			PeriodEnd:      start.AddDate(0, 0, 7),
			TasksCompleted: i + 1,
			QualityScore:   90,
		}))
	}

	got, err := s.VelocitySnapshots(ctx, "b1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// The three most recent, oldest first.
	assert.Equal(t, 3, got[0].TasksCompleted)
	assert.Equal(t, 5, got[2].TasksCompleted)
	assert.True(t, got[0].PeriodStart.Before(got[1].PeriodStart))

	// Re-recording a period replaces its values.
	latestStart := storeAsOf.AddDate(0, 0, -7)
	require.NoError(t, s.UpsertSnapshot(ctx, board.VelocitySnapshot{
		BoardID:        "b1",
		PeriodStart:    latestStart,
		PeriodEnd:      latestStart.AddDate(0, 0, 7),
		TasksCompleted: 42,
		QualityScore:   77,
	}))

	got, err = s.VelocitySnapshots(ctx, "b1", 10)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 42, got[4].TasksCompleted)
	assert.Equal(t, 77.0, got[4].QualityScore)
}

func TestScopeBaseline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.ScopeBaseline(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SetScopeBaseline(ctx, "b1", board.ScopeMetrics{
		TotalTasks: 100, CompletedTasks: 40, RemainingTasks: 60,
		TotalStoryPoints: 200, CompletedStoryPoints: 75,
	}))

	got, err = s.ScopeBaseline(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 100, got.TotalTasks)
	assert.Equal(t, 75.0, got.CompletedStoryPoints)

	// Second set replaces the first.
	require.NoError(t, s.SetScopeBaseline(ctx, "b1", board.ScopeMetrics{TotalTasks: 120}))
	got, err = s.ScopeBaseline(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 120, got.TotalTasks)
}

func TestProjectionHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LatestProjection(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, got)

	target := storeAsOf.AddDate(0, 0, 40)
	first := forecast.Projection{
		BoardID:           "b1",
		AsOf:              storeAsOf.AddDate(0, 0, -7),
		PredictedDate:     storeAsOf.AddDate(0, 0, 28),
		LowerBound:        storeAsOf.AddDate(0, 0, 21),
		UpperBound:        storeAsOf.AddDate(0, 0, 35),
		DaysUntil:         28,
		MarginOfErrorDays: 6.5,
		ConfidenceScore:   0.82,
		ConfidenceLevel:   forecast.Confidence95,
		RiskLevel:         board.RiskMedium,
		DelayProbability:  22,
		Trend:             forecast.TrendStable,
		TargetDate:        &target,
		WillMeetTarget:    true,
		Metric:            board.MetricTasks,
		AverageVelocity:   9.5,
		StdDev:            1.2,
		CV:                12.6,
		SampleCount:       8,
	}
	require.NoError(t, s.InsertProjection(ctx, first))

	second := first
	second.AsOf = storeAsOf
	second.DelayProbability = 35
	second.WillMeetTarget = false
	require.NoError(t, s.InsertProjection(ctx, second))

	got, err = s.LatestProjection(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.AsOf.Equal(storeAsOf))
	assert.False(t, got.WillMeetTarget)
	assert.Equal(t, 35.0, got.DelayProbability)
	assert.Equal(t, forecast.Confidence95, got.ConfidenceLevel)
	assert.Equal(t, forecast.TrendStable, got.Trend)
	assert.Equal(t, board.MetricTasks, got.Metric)
	require.NotNil(t, got.TargetDate)
	assert.True(t, got.TargetDate.Equal(target))
	assert.Equal(t, 8, got.SampleCount)
}

func suggestionFixture(id string, sev coach.Severity, created time.Time) coach.Suggestion {
	return coach.Suggestion{
		ID:                 id,
		BoardID:            "b1",
		Type:               coach.TypeVelocityDrop,
		Severity:           sev,
		Title:              "title " + id,
		Message:            "message",
		Reasoning:          "reasoning",
		RecommendedActions: []string{"do the thing"},
		ExpectedImpact:     "better",
		ConfidenceScore:    0.8,
		Evidence:           map[string]string{"k": "v"},
		GenerationMethod:   coach.MethodRule,
		Status:             coach.StatusActive,
		CreatedAt:          created,
		ExpiresAt:          created.Add(coach.DefaultExpiry),
	}
}

func TestSuggestionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []coach.Suggestion{
		suggestionFixture("s1", coach.SeverityMedium, storeAsOf),
		suggestionFixture("s2", coach.SeverityCritical, storeAsOf),
		suggestionFixture("s3", coach.SeverityLow, storeAsOf),
	}
	require.NoError(t, s.InsertSuggestions(ctx, batch))

	active, err := s.ActiveSuggestions(ctx, "b1", storeAsOf)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "s2", active[0].ID, "critical sorts first")
	assert.Equal(t, "s1", active[1].ID)
	assert.Equal(t, "s3", active[2].ID)
	assert.Equal(t, []string{"do the thing"}, active[0].RecommendedActions)
	assert.Equal(t, map[string]string{"k": "v"}, active[0].Evidence)

	// Expired suggestions drop out of the active view.
	afterExpiry := storeAsOf.Add(coach.DefaultExpiry + time.Hour)
	active, err = s.ActiveSuggestions(ctx, "b1", afterExpiry)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Dismissal removes a suggestion immediately.
	require.NoError(t, s.UpdateSuggestionStatus(ctx, "s1", coach.StatusDismissed))
	active, err = s.ActiveSuggestions(ctx, "b1", storeAsOf)
	require.NoError(t, err)
	require.Len(t, active, 2)

	got, err := s.SuggestionByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, coach.StatusDismissed, got.Status)

	got, err = s.SuggestionByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.UpdateSuggestionStatus(ctx, "nope", coach.StatusResolved)
	require.Error(t, err)
}

func TestFeedbackAndInsights(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CountFeedbackByType(ctx, "velocity_drop")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertFeedback(ctx, learning.FeedbackRecord{
			ID:             string(rune('a' + i)),
			SuggestionType: "velocity_drop",
			WasHelpful:     i != 0,
			ActionTaken:    learning.ActionAccepted,
			RelevanceScore: 4,
			CreatedAt:      storeAsOf.Add(time.Duration(i) * time.Minute),
		}))
	}

	n, err = s.CountFeedbackByType(ctx, "velocity_drop")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := s.FeedbackByType(ctx, "velocity_drop")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].ID, "oldest first")
	assert.False(t, recs[0].WasHelpful)
	assert.Equal(t, learning.ActionAccepted, recs[0].ActionTaken)

	ins, err := s.InsightByType(ctx, "velocity_drop")
	require.NoError(t, err)
	assert.Nil(t, ins)

	require.NoError(t, s.UpsertInsight(ctx, learning.LearnedInsight{
		SuggestionType:        "velocity_drop",
		Verdict:               "positive",
		FeedbackCount:         10,
		HelpfulRate:           0.9,
		ActionRate:            0.8,
		AvgRelevance:          4.2,
		RecommendedConfidence: 0.88,
		Effectiveness:         85,
		Active:                true,
		UpdatedAt:             storeAsOf,
	}))

	ins, err = s.InsightByType(ctx, "velocity_drop")
	require.NoError(t, err)
	require.NotNil(t, ins)
	assert.Equal(t, "positive", ins.Verdict)
	assert.Equal(t, 0.88, ins.RecommendedConfidence)
	assert.True(t, ins.Active)

	// Upsert replaces in place.
	require.NoError(t, s.UpsertInsight(ctx, learning.LearnedInsight{
		SuggestionType: "velocity_drop",
		Verdict:        "negative",
		FeedbackCount:  20,
		UpdatedAt:      storeAsOf,
	}))
	ins, err = s.InsightByType(ctx, "velocity_drop")
	require.NoError(t, err)
	assert.Equal(t, "negative", ins.Verdict)
	assert.Equal(t, 20, ins.FeedbackCount)

	all, err := s.Insights(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSyncAlertsDedupCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	triggered := []forecast.Alert{
		{BoardID: "b1", Type: forecast.AlertTargetRisk, Severity: board.RiskHigh,
			Message: "target at risk", Triggered: true},
		{BoardID: "b1", Type: forecast.AlertVarianceHigh, Triggered: false},
		{BoardID: "b1", Type: forecast.AlertVelocityDrop, Triggered: false},
	}

	raised, resolved, err := s.SyncAlerts(ctx, "b1", triggered)
	require.NoError(t, err)
	assert.Equal(t, 1, raised)
	assert.Zero(t, resolved)

	active, err := s.ActiveAlerts(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	firstID := active[0].ID
	firstRaised := active[0].RaisedAt

	// The condition persisting refreshes the alert instead of stacking
	// a second one.
	triggered[0].Message = "target at risk, worse now"
	triggered[0].Severity = board.RiskCritical
	raised, resolved, err = s.SyncAlerts(ctx, "b1", triggered)
	require.NoError(t, err)
	assert.Zero(t, raised)
	assert.Zero(t, resolved)

	active, err = s.ActiveAlerts(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, firstID, active[0].ID)
	assert.True(t, active[0].RaisedAt.Equal(firstRaised))
	assert.Equal(t, "target at risk, worse now", active[0].Message)
	assert.Equal(t, board.RiskCritical, active[0].Severity)

	// The condition clearing resolves the alert.
	triggered[0].Triggered = false
	raised, resolved, err = s.SyncAlerts(ctx, "b1", triggered)
	require.NoError(t, err)
	assert.Zero(t, raised)
	assert.Equal(t, 1, resolved)

	active, err = s.ActiveAlerts(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, active)

	// A re-trigger raises a fresh alert with its own identity.
	triggered[0].Triggered = true
	raised, _, err = s.SyncAlerts(ctx, "b1", triggered)
	require.NoError(t, err)
	assert.Equal(t, 1, raised)

	active, err = s.ActiveAlerts(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.NotEqual(t, firstID, active[0].ID)
}

// TestLearnerOverStore drives the learning loop end to end against the
// real schema: ten feedback records materialize an insight that then
// gates generation.
func TestLearnerOverStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	learner := learning.NewLearner(s, nil)

	assert.True(t, learner.ShouldGenerate(ctx, "communication_gap"))

	for i := 0; i < 10; i++ {
		_, err := learner.RecordFeedback(ctx, learning.FeedbackRecord{
			SuggestionType: "communication_gap",
			WasHelpful:     false,
			ActionTaken:    learning.ActionIgnored,
			RelevanceScore: 1,
		})
		require.NoError(t, err)
	}

	ins, err := s.InsightByType(ctx, "communication_gap")
	require.NoError(t, err)
	require.NotNil(t, ins, "tenth record must materialize the negative insight")
	assert.Equal(t, "negative", ins.Verdict)
	assert.Equal(t, 10, ins.FeedbackCount)
	assert.Zero(t, ins.HelpfulRate)

	// Ten records is not enough sample to suppress outright.
	assert.True(t, learner.ShouldGenerate(ctx, "communication_gap"))

	// But confidence is already pulled down toward the learned value.
	adjusted := learner.AdjustConfidence(ctx, "communication_gap", 0.70)
	assert.Less(t, adjusted, 0.70)

	// Ten more rejections cross the suppression threshold.
	for i := 0; i < 10; i++ {
		_, err := learner.RecordFeedback(ctx, learning.FeedbackRecord{
			SuggestionType: "communication_gap",
			WasHelpful:     false,
			ActionTaken:    learning.ActionIgnored,
			RelevanceScore: 1,
		})
		require.NoError(t, err)
	}

	assert.False(t, learner.ShouldGenerate(ctx, "communication_gap"))
}
