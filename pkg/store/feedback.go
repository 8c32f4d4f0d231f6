package store

import (
	"context"
	"database/sql"

	strideerrors "github.com/stride-dev/stride/pkg/errors"
	"github.com/stride-dev/stride/pkg/learning"
)

// InsertFeedback appends one feedback record.
func (s *Store) InsertFeedback(ctx context.Context, rec learning.FeedbackRecord) error {
	_, err := s.db.ExecContext(ctx, rebind(`
		INSERT INTO feedback (id, suggestion_id, suggestion_type, was_helpful,
			action_taken, relevance_score, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.SuggestionID, rec.SuggestionType, rec.WasHelpful,
		string(rec.ActionTaken), rec.RelevanceScore, rec.Comment, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("feedback.insert", rec.SuggestionType, err)
	}
	return nil
}

// FeedbackByType returns every feedback record for a suggestion type,
// oldest first.
func (s *Store) FeedbackByType(ctx context.Context, suggestionType string) ([]learning.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, rebind(`
		SELECT id, suggestion_id, suggestion_type, was_helpful,
			action_taken, relevance_score, comment, created_at
		FROM feedback
		WHERE suggestion_type = ?
		ORDER BY created_at, id`), suggestionType)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("feedback.list", suggestionType, err)
	}
	defer rows.Close()

	var out []learning.FeedbackRecord
	for rows.Next() {
		var rec learning.FeedbackRecord
		var action string
		if err := rows.Scan(&rec.ID, &rec.SuggestionID, &rec.SuggestionType, &rec.WasHelpful,
			&action, &rec.RelevanceScore, &rec.Comment, &rec.CreatedAt); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("feedback.list", "scanning record", err)
		}
		rec.ActionTaken = learning.ActionTaken(action)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountFeedbackByType returns how many feedback records exist for a
// suggestion type.
func (s *Store) CountFeedbackByType(ctx context.Context, suggestionType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, rebind(`
		SELECT COUNT(*) FROM feedback WHERE suggestion_type = ?`), suggestionType).Scan(&n)
	if err != nil {
		return 0, strideerrors.NewStoreErrorWithCause("feedback.count", suggestionType, err)
	}
	return n, nil
}

// InsightByType returns the materialized insight for a suggestion
// type, or nil when feedback has not produced one.
func (s *Store) InsightByType(ctx context.Context, suggestionType string) (*learning.LearnedInsight, error) {
	row := s.db.QueryRowContext(ctx, rebind(`
		SELECT suggestion_type, verdict, feedback_count, helpful_rate, action_rate,
			avg_relevance, recommended_confidence, effectiveness, active, updated_at
		FROM learned_insights WHERE suggestion_type = ?`), suggestionType)

	var ins learning.LearnedInsight
	err := row.Scan(&ins.SuggestionType, &ins.Verdict, &ins.FeedbackCount, &ins.HelpfulRate,
		&ins.ActionRate, &ins.AvgRelevance, &ins.RecommendedConfidence,
		&ins.Effectiveness, &ins.Active, &ins.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, strideerrors.NewStoreErrorWithCause("insights.get", suggestionType, err)
	}
	return &ins, nil
}

// UpsertInsight creates or replaces the insight for its type.
func (s *Store) UpsertInsight(ctx context.Context, ins learning.LearnedInsight) error {
	_, err := s.db.ExecContext(ctx, rebind(`
		INSERT INTO learned_insights (suggestion_type, verdict, feedback_count,
			helpful_rate, action_rate, avg_relevance, recommended_confidence,
			effectiveness, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (suggestion_type) DO UPDATE SET
			verdict = excluded.verdict,
			feedback_count = excluded.feedback_count,
			helpful_rate = excluded.helpful_rate,
			action_rate = excluded.action_rate,
			avg_relevance = excluded.avg_relevance,
			recommended_confidence = excluded.recommended_confidence,
			effectiveness = excluded.effectiveness,
			active = excluded.active,
			updated_at = excluded.updated_at`),
		ins.SuggestionType, ins.Verdict, ins.FeedbackCount, ins.HelpfulRate, ins.ActionRate,
		ins.AvgRelevance, ins.RecommendedConfidence, ins.Effectiveness, ins.Active, ins.UpdatedAt.UTC(),
	)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("insights.upsert", ins.SuggestionType, err)
	}
	return nil
}

// Insights returns every materialized insight, ordered by type.
func (s *Store) Insights(ctx context.Context) ([]learning.LearnedInsight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT suggestion_type, verdict, feedback_count, helpful_rate, action_rate,
			avg_relevance, recommended_confidence, effectiveness, active, updated_at
		FROM learned_insights ORDER BY suggestion_type`)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("insights.list", "querying insights", err)
	}
	defer rows.Close()

	var out []learning.LearnedInsight
	for rows.Next() {
		var ins learning.LearnedInsight
		if err := rows.Scan(&ins.SuggestionType, &ins.Verdict, &ins.FeedbackCount, &ins.HelpfulRate,
			&ins.ActionRate, &ins.AvgRelevance, &ins.RecommendedConfidence,
			&ins.Effectiveness, &ins.Active, &ins.UpdatedAt); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("insights.list", "scanning insight", err)
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}
