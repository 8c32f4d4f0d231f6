package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/coach"
	strideerrors "github.com/stride-dev/stride/pkg/errors"
	"github.com/stride-dev/stride/pkg/forecast"
)

// InsertProjection appends one projection to the board's history.
// Projections are never updated or deleted.
func (s *Store) InsertProjection(ctx context.Context, p forecast.Projection) error {
	_, err := s.db.ExecContext(ctx, rebind(`
		INSERT INTO projections (id, board_id, as_of, predicted_date, lower_bound,
			upper_bound, days_until, margin_days, confidence_score, confidence_level,
			risk_level, delay_probability, trend, target_date, will_meet_target,
			metric, average_velocity, std_dev, cv, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), p.BoardID, p.AsOf.UTC(), p.PredictedDate.UTC(), p.LowerBound.UTC(),
		p.UpperBound.UTC(), p.DaysUntil, p.MarginOfErrorDays, p.ConfidenceScore, int(p.ConfidenceLevel),
		string(p.RiskLevel), p.DelayProbability, string(p.Trend), nullTime(p.TargetDate), p.WillMeetTarget,
		string(p.Metric), p.AverageVelocity, p.StdDev, p.CV, p.SampleCount,
	)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("projections.insert", p.BoardID, err)
	}
	return nil
}

// LatestProjection returns the board's most recent projection, or nil
// when none has been recorded.
func (s *Store) LatestProjection(ctx context.Context, boardID string) (*forecast.Projection, error) {
	row := s.db.QueryRowContext(ctx, rebind(`
		SELECT board_id, as_of, predicted_date, lower_bound, upper_bound,
			days_until, margin_days, confidence_score, confidence_level,
			risk_level, delay_probability, trend, target_date, will_meet_target,
			metric, average_velocity, std_dev, cv, sample_count
		FROM projections
		WHERE board_id = ?
		ORDER BY as_of DESC
		LIMIT 1`), boardID)

	var p forecast.Projection
	var level int
	var riskLevel, trend, metric string
	var target sql.NullTime
	err := row.Scan(&p.BoardID, &p.AsOf, &p.PredictedDate, &p.LowerBound, &p.UpperBound,
		&p.DaysUntil, &p.MarginOfErrorDays, &p.ConfidenceScore, &level,
		&riskLevel, &p.DelayProbability, &trend, &target, &p.WillMeetTarget,
		&metric, &p.AverageVelocity, &p.StdDev, &p.CV, &p.SampleCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, strideerrors.NewStoreErrorWithCause("projections.latest", boardID, err)
	}
	p.ConfidenceLevel = forecast.ConfidenceLevel(level)
	p.RiskLevel = board.RiskLevel(riskLevel)
	p.Trend = forecast.Trend(trend)
	p.Metric = board.Metric(metric)
	if target.Valid {
		t := target.Time
		p.TargetDate = &t
	}
	return &p, nil
}

// InsertSuggestions stores one analysis pass's suggestions atomically.
func (s *Store) InsertSuggestions(ctx context.Context, suggestions []coach.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("suggestions.insert", "starting transaction", err)
	}
	defer tx.Rollback()

	for _, sg := range suggestions {
		actions, err := json.Marshal(sg.RecommendedActions)
		if err != nil {
			return strideerrors.NewStoreErrorWithCause("suggestions.insert", sg.ID, err)
		}
		evidence, err := json.Marshal(sg.Evidence)
		if err != nil {
			return strideerrors.NewStoreErrorWithCause("suggestions.insert", sg.ID, err)
		}
		_, err = tx.ExecContext(ctx, rebind(`
			INSERT INTO suggestions (id, board_id, type, severity, title, message,
				reasoning, recommended_actions, expected_impact, confidence_score,
				evidence, generation_method, status, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			sg.ID, sg.BoardID, string(sg.Type), string(sg.Severity), sg.Title, sg.Message,
			sg.Reasoning, string(actions), sg.ExpectedImpact, sg.ConfidenceScore,
			string(evidence), string(sg.GenerationMethod), string(sg.Status),
			sg.CreatedAt.UTC(), sg.ExpiresAt.UTC(),
		)
		if err != nil {
			return strideerrors.NewStoreErrorWithCause("suggestions.insert", sg.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return strideerrors.NewStoreErrorWithCause("suggestions.insert", "committing", err)
	}
	return nil
}

// ActiveSuggestions returns the board's unexpired active suggestions,
// most severe first.
func (s *Store) ActiveSuggestions(ctx context.Context, boardID string, asOf time.Time) ([]coach.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, rebind(`
		SELECT id, board_id, type, severity, title, message, reasoning,
			recommended_actions, expected_impact, confidence_score, evidence,
			generation_method, status, created_at, expires_at
		FROM suggestions
		WHERE board_id = ? AND status = 'active' AND expires_at > ?`),
		boardID, asOf.UTC())
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("suggestions.active", boardID, err)
	}
	defer rows.Close()

	out, err := scanSuggestions(rows)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity.Weight() > out[j].Severity.Weight()
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SuggestionByID returns one stored suggestion, or nil when unknown.
func (s *Store) SuggestionByID(ctx context.Context, id string) (*coach.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, rebind(`
		SELECT id, board_id, type, severity, title, message, reasoning,
			recommended_actions, expected_impact, confidence_score, evidence,
			generation_method, status, created_at, expires_at
		FROM suggestions WHERE id = ?`), id)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("suggestions.get", id, err)
	}
	defer rows.Close()

	out, err := scanSuggestions(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// UpdateSuggestionStatus moves a suggestion through its lifecycle.
func (s *Store) UpdateSuggestionStatus(ctx context.Context, id string, status coach.Status) error {
	res, err := s.db.ExecContext(ctx, rebind(`
		UPDATE suggestions SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("suggestions.status", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return strideerrors.NewStoreError("suggestions.status", "no suggestion with id "+id)
	}
	return nil
}

func scanSuggestions(rows *sql.Rows) ([]coach.Suggestion, error) {
	var out []coach.Suggestion
	for rows.Next() {
		var sg coach.Suggestion
		var sgType, severity, method, status, actions, evidence string
		if err := rows.Scan(&sg.ID, &sg.BoardID, &sgType, &severity, &sg.Title, &sg.Message,
			&sg.Reasoning, &actions, &sg.ExpectedImpact, &sg.ConfidenceScore, &evidence,
			&method, &status, &sg.CreatedAt, &sg.ExpiresAt); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("suggestions.scan", "scanning row", err)
		}
		sg.Type = coach.SuggestionType(sgType)
		sg.Severity = coach.Severity(severity)
		sg.GenerationMethod = coach.GenerationMethod(method)
		sg.Status = coach.Status(status)
		if err := json.Unmarshal([]byte(actions), &sg.RecommendedActions); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("suggestions.scan", sg.ID, err)
		}
		if err := json.Unmarshal([]byte(evidence), &sg.Evidence); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("suggestions.scan", sg.ID, err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// AlertRecord is a stored alert with its lifecycle fields.
type AlertRecord struct {
	ID         string
	BoardID    string
	Type       forecast.AlertType
	Severity   board.RiskLevel
	Message    string
	Status     string // active | resolved
	RaisedAt   time.Time
	ResolvedAt *time.Time
}

// SyncAlerts applies one evaluation's alert statuses for a board. A
// triggered condition refreshes the active alert or raises a new one;
// a clear condition resolves any active alert of that type. The whole
// sync runs in one transaction, and on postgres under a per-board
// advisory lock, so concurrent runners never double-raise. The unique
// index on active (board, type) pairs backs the rule at the schema
// level.
func (s *Store) SyncAlerts(ctx context.Context, boardID string, alerts []forecast.Alert) (raised, resolved int, err error) {
	if len(alerts) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, strideerrors.NewStoreErrorWithCause("alerts.sync", boardID, err)
	}
	defer tx.Rollback()

	if s.driver == DriverPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, boardID); err != nil {
			return 0, 0, strideerrors.NewStoreErrorWithCause("alerts.sync", "acquiring advisory lock", err)
		}
	}

	now := time.Now().UTC()
	for _, a := range alerts {
		if !a.Triggered {
			res, err := tx.ExecContext(ctx, rebind(`
				UPDATE alerts SET status = 'resolved', resolved_at = ?
				WHERE board_id = ? AND type = ? AND status = 'active'`),
				now, boardID, string(a.Type))
			if err != nil {
				return 0, 0, strideerrors.NewStoreErrorWithCause("alerts.sync", string(a.Type), err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				resolved += int(n)
			}
			continue
		}

		// Refresh in place so raised_at survives while the condition
		// persists.
		res, err := tx.ExecContext(ctx, rebind(`
			UPDATE alerts SET severity = ?, message = ?
			WHERE board_id = ? AND type = ? AND status = 'active'`),
			string(a.Severity), a.Message, boardID, string(a.Type))
		if err != nil {
			return 0, 0, strideerrors.NewStoreErrorWithCause("alerts.sync", string(a.Type), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			continue
		}

		_, err = tx.ExecContext(ctx, rebind(`
			INSERT INTO alerts (id, board_id, type, severity, message, status, raised_at)
			VALUES (?, ?, ?, ?, ?, 'active', ?)`),
			uuid.NewString(), boardID, string(a.Type), string(a.Severity), a.Message, now)
		if err != nil {
			return 0, 0, strideerrors.NewStoreErrorWithCause("alerts.sync", string(a.Type), err)
		}
		raised++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, strideerrors.NewStoreErrorWithCause("alerts.sync", "committing", err)
	}
	return raised, resolved, nil
}

// ActiveAlerts returns the board's currently active alerts, ordered by
// raise time then type.
func (s *Store) ActiveAlerts(ctx context.Context, boardID string) ([]AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, rebind(`
		SELECT id, board_id, type, severity, message, status, raised_at, resolved_at
		FROM alerts
		WHERE board_id = ? AND status = 'active'
		ORDER BY raised_at, type`), boardID)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("alerts.active", boardID, err)
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var a AlertRecord
		var alertType, severity string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.BoardID, &alertType, &severity, &a.Message,
			&a.Status, &a.RaisedAt, &resolvedAt); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("alerts.active", "scanning alert", err)
		}
		a.Type = forecast.AlertType(alertType)
		a.Severity = board.RiskLevel(severity)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
