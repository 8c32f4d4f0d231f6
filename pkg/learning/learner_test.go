package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	strideerrors "github.com/stride-dev/stride/pkg/errors"
)

type fakeStore struct {
	insights   map[string]*LearnedInsight
	feedback   map[string][]FeedbackRecord
	insightErr error
	upserts    []LearnedInsight
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		insights: map[string]*LearnedInsight{},
		feedback: map[string][]FeedbackRecord{},
	}
}

func (f *fakeStore) InsightByType(ctx context.Context, suggestionType string) (*LearnedInsight, error) {
	if f.insightErr != nil {
		return nil, f.insightErr
	}
	return f.insights[suggestionType], nil
}

func (f *fakeStore) UpsertInsight(ctx context.Context, insight LearnedInsight) error {
	f.upserts = append(f.upserts, insight)
	f.insights[insight.SuggestionType] = &insight
	return nil
}

func (f *fakeStore) InsertFeedback(ctx context.Context, rec FeedbackRecord) error {
	f.feedback[rec.SuggestionType] = append(f.feedback[rec.SuggestionType], rec)
	return nil
}

func (f *fakeStore) FeedbackByType(ctx context.Context, suggestionType string) ([]FeedbackRecord, error) {
	return f.feedback[suggestionType], nil
}

func (f *fakeStore) CountFeedbackByType(ctx context.Context, suggestionType string) (int, error) {
	return len(f.feedback[suggestionType]), nil
}

func TestShouldGenerate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		insight *LearnedInsight
		want    bool
	}{
		{
			name: "large rejected sample is suppressed",
			insight: &LearnedInsight{
				SuggestionType: "skill_opportunity",
				FeedbackCount:  25,
				HelpfulRate:    0.1,
				ActionRate:     0.05,
				Active:         true,
			},
			want: false,
		},
		{
			name: "small sample with identical rates is not suppressed",
			insight: &LearnedInsight{
				SuggestionType: "skill_opportunity",
				FeedbackCount:  5,
				HelpfulRate:    0.1,
				ActionRate:     0.05,
				Active:         true,
			},
			want: true,
		},
		{
			name:    "no insight",
			insight: nil,
			want:    true,
		},
		{
			name: "inactive insight",
			insight: &LearnedInsight{
				SuggestionType: "skill_opportunity",
				FeedbackCount:  25,
				HelpfulRate:    0.1,
				ActionRate:     0.05,
				Active:         false,
			},
			want: true,
		},
		{
			name: "helpful but unactioned stays on",
			insight: &LearnedInsight{
				SuggestionType: "skill_opportunity",
				FeedbackCount:  30,
				HelpfulRate:    0.6,
				ActionRate:     0.05,
				Active:         true,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			if tt.insight != nil {
				store.insights[tt.insight.SuggestionType] = tt.insight
			}
			l := NewLearner(store, nil)

			assert.Equal(t, tt.want, l.ShouldGenerate(ctx, "skill_opportunity"))
		})
	}
}

func TestShouldGenerateFailsOpen(t *testing.T) {
	store := newFakeStore()
	store.insightErr = strideerrors.New("store down")
	l := NewLearner(store, nil)

	assert.True(t, l.ShouldGenerate(context.Background(), "velocity_drop"),
		"a store failure must never block suggestion generation")
}

func TestAdjustConfidence(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		insight *LearnedInsight
		base    float64
		want    float64
	}{
		{
			name: "full weight blend",
			insight: &LearnedInsight{
				SuggestionType:        "quality_issue",
				FeedbackCount:         20,
				RecommendedConfidence: 0.3,
				Active:                true,
			},
			base: 0.8,
			// weight caps at 0.7: 0.8*0.3 + 0.3*0.7
			want: 0.45,
		},
		{
			name: "half weight blend",
			insight: &LearnedInsight{
				SuggestionType:        "quality_issue",
				FeedbackCount:         10,
				RecommendedConfidence: 0.3,
				Active:                true,
			},
			base: 0.8,
			want: 0.55,
		},
		{
			name:    "no insight passes base through",
			insight: nil,
			base:    0.8,
			want:    0.8,
		},
		{
			name:    "result floor",
			insight: nil,
			base:    0.02,
			want:    0.1,
		},
		{
			name: "positive insight can raise confidence",
			insight: &LearnedInsight{
				SuggestionType:        "quality_issue",
				FeedbackCount:         40,
				RecommendedConfidence: 0.95,
				Active:                true,
			},
			base: 0.65,
			// 0.65*0.3 + 0.95*0.7
			want: 0.86,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			if tt.insight != nil {
				store.insights[tt.insight.SuggestionType] = tt.insight
			}
			l := NewLearner(store, nil)

			got := l.AdjustConfidence(ctx, "quality_issue", tt.base)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRecordFeedbackValidation(t *testing.T) {
	l := NewLearner(newFakeStore(), nil)
	ctx := context.Background()

	_, err := l.RecordFeedback(ctx, FeedbackRecord{ActionTaken: ActionAccepted})
	require.Error(t, err, "missing suggestion type must be rejected")

	_, err = l.RecordFeedback(ctx, FeedbackRecord{SuggestionType: "velocity_drop", ActionTaken: "shrugged"})
	require.Error(t, err, "unknown action must be rejected")

	rec, err := l.RecordFeedback(ctx, FeedbackRecord{
		SuggestionType: "velocity_drop",
		ActionTaken:    ActionAccepted,
		RelevanceScore: 9,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID, "ID must be assigned")
	assert.False(t, rec.CreatedAt.IsZero(), "CreatedAt must be assigned")
	assert.Equal(t, 5, rec.RelevanceScore, "relevance must clamp to 1-5")
}

func TestRecordFeedbackRecomputesEveryTenth(t *testing.T) {
	store := newFakeStore()
	l := NewLearner(store, nil)
	ctx := context.Background()

	// Nine clearly negative records: no recompute yet.
	for i := 0; i < 9; i++ {
		_, err := l.RecordFeedback(ctx, FeedbackRecord{
			SuggestionType: "communication_gap",
			WasHelpful:     false,
			ActionTaken:    ActionIgnored,
			RelevanceScore: 1,
		})
		require.NoError(t, err)
	}
	assert.Empty(t, store.upserts, "insight must not refresh before the tenth record")

	_, err := l.RecordFeedback(ctx, FeedbackRecord{
		SuggestionType: "communication_gap",
		WasHelpful:     false,
		ActionTaken:    ActionIgnored,
		RelevanceScore: 1,
	})
	require.NoError(t, err)

	require.Len(t, store.upserts, 1, "tenth record must refresh the insight")
	insight := store.upserts[0]
	assert.Equal(t, "negative", insight.Verdict)
	assert.Equal(t, 10, insight.FeedbackCount)
	assert.Equal(t, 0.0, insight.HelpfulRate)
	assert.Equal(t, 0.0, insight.ActionRate)
	assert.True(t, insight.Active)
}

func TestRecomputeInsightModerateSkips(t *testing.T) {
	store := newFakeStore()
	l := NewLearner(store, nil)
	ctx := context.Background()

	// Half helpful, 40% actioned: neither clearly positive nor negative.
	for i := 0; i < 10; i++ {
		action := ActionIgnored
		if i < 4 {
			action = ActionAccepted
		}
		store.feedback["scope_creep"] = append(store.feedback["scope_creep"], FeedbackRecord{
			SuggestionType: "scope_creep",
			WasHelpful:     i < 5,
			ActionTaken:    action,
			RelevanceScore: 3,
		})
	}

	require.NoError(t, l.RecomputeInsight(ctx, "scope_creep"))
	assert.Empty(t, store.upserts, "moderate aggregate must not materialize an insight")
}

func TestRecomputeInsightPositive(t *testing.T) {
	store := newFakeStore()
	l := NewLearner(store, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		action := ActionAccepted
		if i == 9 {
			action = ActionIgnored
		}
		store.feedback["deadline_risk"] = append(store.feedback["deadline_risk"], FeedbackRecord{
			SuggestionType: "deadline_risk",
			WasHelpful:     i != 9,
			ActionTaken:    action,
			RelevanceScore: 4,
		})
	}

	require.NoError(t, l.RecomputeInsight(ctx, "deadline_risk"))
	require.Len(t, store.upserts, 1)

	insight := store.upserts[0]
	assert.Equal(t, "positive", insight.Verdict)
	assert.InDelta(t, 0.9, insight.HelpfulRate, 1e-9)
	assert.InDelta(t, 0.9, insight.ActionRate, 1e-9)
	// 0.4*90 + 0.4*90 + 0.2*80
	assert.InDelta(t, 88, insight.Effectiveness, 1e-9)
	assert.InDelta(t, 0.88, insight.RecommendedConfidence, 1e-9)
}

func TestEffectivenessScore(t *testing.T) {
	assert.InDelta(t, 72, EffectivenessScore(0.8, 0.6, 4), 1e-9)
	assert.InDelta(t, 100, EffectivenessScore(1, 1, 5), 1e-9)
	assert.InDelta(t, 4, EffectivenessScore(0, 0, 1), 1e-9)
}
