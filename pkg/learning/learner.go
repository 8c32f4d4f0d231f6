package learning

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	strideerrors "github.com/stride-dev/stride/pkg/errors"
)

// Learning thresholds. Suppression needs a real sample and sustained
// rejection; confidence blending saturates before feedback can fully
// override the rule's own signal.
const (
	// SuppressionMinSample is the smallest feedback sample that can
	// suppress a suggestion type.
	SuppressionMinSample = 20

	// SuppressionHelpfulBelow and SuppressionActionBelow are the rate
	// ceilings under which a sampled type is suppressed.
	SuppressionHelpfulBelow = 0.3
	SuppressionActionBelow  = 0.2

	// MaxBlendWeight caps how far feedback can pull confidence away
	// from the detector's base value.
	MaxBlendWeight = 0.7

	// RecomputeEvery is the per-type feedback cadence at which the
	// insight aggregate is refreshed.
	RecomputeEvery = 10

	// Aggregate boundaries for materializing an insight.
	positiveHelpfulAbove = 0.7
	positiveActionAbove  = 0.5
	negativeHelpfulBelow = 0.4
	negativeActionBelow  = 0.3
)

// Store is the persistence the learner needs. The reference
// implementation lives in pkg/store; hosts may bring their own.
type Store interface {
	// InsightByType returns the insight for a suggestion type, or nil
	// when none has been materialized.
	InsightByType(ctx context.Context, suggestionType string) (*LearnedInsight, error)

	// UpsertInsight creates or replaces the insight for its type.
	UpsertInsight(ctx context.Context, insight LearnedInsight) error

	// InsertFeedback appends one feedback record.
	InsertFeedback(ctx context.Context, rec FeedbackRecord) error

	// FeedbackByType returns all feedback for a suggestion type.
	FeedbackByType(ctx context.Context, suggestionType string) ([]FeedbackRecord, error)

	// CountFeedbackByType returns how many feedback records exist for
	// a suggestion type.
	CountFeedbackByType(ctx context.Context, suggestionType string) (int, error)
}

// Learner applies learned insights to suggestion generation and folds
// new feedback back into them.
type Learner struct {
	store  Store
	logger *slog.Logger
}

// NewLearner creates a Learner. The logger may be nil.
func NewLearner(store Store, logger *slog.Logger) *Learner {
	return &Learner{store: store, logger: logger}
}

// ShouldGenerate reports whether a suggestion type is currently worth
// emitting. It fails open: learning is an optimization, so a store
// error never blocks a suggestion.
func (l *Learner) ShouldGenerate(ctx context.Context, suggestionType string) bool {
	insight, err := l.store.InsightByType(ctx, suggestionType)
	if err != nil {
		l.logDebug("insight lookup failed, allowing suggestion", "type", suggestionType, "error", err)
		return true
	}
	if insight == nil {
		return true
	}
	if insight.SuppressionEligible() {
		l.logDebug("suggestion type suppressed by feedback",
			"type", suggestionType,
			"sample", insight.FeedbackCount,
			"helpful_rate", insight.HelpfulRate,
			"action_rate", insight.ActionRate)
		return false
	}
	return true
}

// AdjustConfidence blends a detector's base confidence toward the
// learned recommended confidence, weighted by sample size. The result
// is always clamped to [0.1, 1.0].
func (l *Learner) AdjustConfidence(ctx context.Context, suggestionType string, base float64) float64 {
	insight, err := l.store.InsightByType(ctx, suggestionType)
	if err != nil || insight == nil || !insight.Active {
		return clamp(base, 0.1, 1.0)
	}

	weight := float64(insight.FeedbackCount) / float64(SuppressionMinSample)
	if weight > MaxBlendWeight {
		weight = MaxBlendWeight
	}

	adjusted := base*(1-weight) + insight.RecommendedConfidence*weight
	return clamp(adjusted, 0.1, 1.0)
}

// RecordFeedback validates and appends one feedback record, then
// refreshes the type's insight at every RecomputeEvery-th record.
// A failed recompute is logged and swallowed; the feedback itself is
// already durable at that point.
func (l *Learner) RecordFeedback(ctx context.Context, rec FeedbackRecord) (FeedbackRecord, error) {
	if rec.SuggestionType == "" {
		return rec, strideerrors.New("feedback requires a suggestion type")
	}
	if !rec.ActionTaken.IsValid() {
		return rec, strideerrors.Newf("unknown action %q", rec.ActionTaken)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.RelevanceScore = clampRelevance(rec.RelevanceScore)

	if err := l.store.InsertFeedback(ctx, rec); err != nil {
		return rec, strideerrors.Wrap(err, "recording feedback")
	}

	count, err := l.store.CountFeedbackByType(ctx, rec.SuggestionType)
	if err != nil {
		l.logDebug("feedback count failed, skipping insight refresh", "type", rec.SuggestionType, "error", err)
		return rec, nil
	}

	if count > 0 && count%RecomputeEvery == 0 {
		if err := l.RecomputeInsight(ctx, rec.SuggestionType); err != nil {
			l.logDebug("insight recompute failed", "type", rec.SuggestionType, "error", err)
		}
	}

	return rec, nil
}

// RecomputeInsight rebuilds the aggregate for one suggestion type from
// its full feedback history. Moderate aggregates (neither clearly
// positive nor clearly negative) materialize nothing and leave any
// existing insight untouched.
func (l *Learner) RecomputeInsight(ctx context.Context, suggestionType string) error {
	records, err := l.store.FeedbackByType(ctx, suggestionType)
	if err != nil {
		return strideerrors.Wrap(err, "loading feedback history")
	}
	if len(records) == 0 {
		return nil
	}

	var helpful, acted int
	var relevanceSum float64
	for _, r := range records {
		if r.WasHelpful {
			helpful++
		}
		if r.ActionTaken.CountsAsAction() {
			acted++
		}
		relevanceSum += float64(clampRelevance(r.RelevanceScore))
	}

	n := float64(len(records))
	helpfulRate := float64(helpful) / n
	actionRate := float64(acted) / n
	avgRelevance := relevanceSum / n

	verdict := ""
	switch {
	case helpfulRate > positiveHelpfulAbove && actionRate > positiveActionAbove:
		verdict = "positive"
	case helpfulRate < negativeHelpfulBelow || actionRate < negativeActionBelow:
		verdict = "negative"
	default:
		l.logDebug("feedback aggregate is moderate, no insight materialized",
			"type", suggestionType, "helpful_rate", helpfulRate, "action_rate", actionRate)
		return nil
	}

	effectiveness := EffectivenessScore(helpfulRate, actionRate, avgRelevance)
	insight := LearnedInsight{
		SuggestionType:        suggestionType,
		Verdict:               verdict,
		FeedbackCount:         len(records),
		HelpfulRate:           helpfulRate,
		ActionRate:            actionRate,
		AvgRelevance:          avgRelevance,
		RecommendedConfidence: clamp(effectiveness/100, 0.1, 0.95),
		Effectiveness:         effectiveness,
		Active:                true,
		UpdatedAt:             time.Now().UTC(),
	}

	if err := l.store.UpsertInsight(ctx, insight); err != nil {
		return strideerrors.Wrap(err, "storing insight")
	}

	l.logDebug("insight refreshed",
		"type", suggestionType,
		"verdict", verdict,
		"sample", insight.FeedbackCount,
		"effectiveness", insight.Effectiveness)
	return nil
}

// EffectivenessScore combines feedback rates into a 0-100 score:
// 40% helpful rate, 40% action rate, 20% normalized relevance.
func EffectivenessScore(helpfulRate, actionRate, avgRelevance float64) float64 {
	return 0.4*(helpfulRate*100) + 0.4*(actionRate*100) + 0.2*(avgRelevance/5*100)
}

func clampRelevance(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// logDebug logs a debug message if a logger is configured.
func (l *Learner) logDebug(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}
