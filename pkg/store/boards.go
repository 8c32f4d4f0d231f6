package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/stride-dev/stride/pkg/board"
	strideerrors "github.com/stride-dev/stride/pkg/errors"
	"github.com/stride-dev/stride/pkg/forecast"
)

// BoardInfo is the stored board registration. TargetDate is the
// deadline the forecaster scores against; nil means none is set.
type BoardInfo struct {
	ID         string
	Name       string
	TargetDate *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UpsertBoard registers a board or updates its name and target date.
func (s *Store) UpsertBoard(ctx context.Context, b BoardInfo) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, rebind(`
		INSERT INTO boards (id, name, target_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			target_date = excluded.target_date,
			updated_at = excluded.updated_at`),
		b.ID, b.Name, nullTime(b.TargetDate), now, now,
	)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("boards.upsert", b.ID, err)
	}
	return nil
}

// Board returns one board registration, or nil when unknown.
func (s *Store) Board(ctx context.Context, id string) (*BoardInfo, error) {
	row := s.db.QueryRowContext(ctx, rebind(`
		SELECT id, name, target_date, created_at, updated_at
		FROM boards WHERE id = ?`), id)

	var b BoardInfo
	var target sql.NullTime
	if err := row.Scan(&b.ID, &b.Name, &target, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, strideerrors.NewStoreErrorWithCause("boards.get", id, err)
	}
	if target.Valid {
		t := target.Time
		b.TargetDate = &t
	}
	return &b, nil
}

// Boards lists every registered board, ordered by id.
func (s *Store) Boards(ctx context.Context) ([]BoardInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target_date, created_at, updated_at
		FROM boards ORDER BY id`)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("boards.list", "querying boards", err)
	}
	defer rows.Close()

	var out []BoardInfo
	for rows.Next() {
		var b BoardInfo
		var target sql.NullTime
		if err := rows.Scan(&b.ID, &b.Name, &target, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("boards.list", "scanning board", err)
		}
		if target.Valid {
			t := target.Time
			b.TargetDate = &t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReplaceTasks swaps a board's task inventory for the given set. The
// seed loader and host sync jobs use this; within the transaction the
// board is never visible half-updated.
func (s *Store) ReplaceTasks(ctx context.Context, boardID string, tasks []board.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("tasks.replace", boardID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, rebind(`DELETE FROM tasks WHERE board_id = ?`), boardID); err != nil {
		return strideerrors.NewStoreErrorWithCause("tasks.replace", "clearing tasks", err)
	}
	for _, t := range tasks {
		_, err := tx.ExecContext(ctx, rebind(`
			INSERT INTO tasks (id, board_id, title, assignee, priority, risk,
				due_date, progress, story_points, comment_count, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			t.ID, boardID, t.Title, t.Assignee, string(t.Priority), string(t.Risk),
			nullTime(t.DueDate), t.Progress, t.StoryPoints, t.CommentCount, t.LastUpdated.UTC(),
		)
		if err != nil {
			return strideerrors.NewStoreErrorWithCause("tasks.replace", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return strideerrors.NewStoreErrorWithCause("tasks.replace", boardID, err)
	}
	return nil
}

// ReplaceMembers swaps a board's roster for the given set.
func (s *Store) ReplaceMembers(ctx context.Context, boardID string, members []board.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("members.replace", boardID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, rebind(`DELETE FROM members WHERE board_id = ?`), boardID); err != nil {
		return strideerrors.NewStoreErrorWithCause("members.replace", "clearing members", err)
	}
	for _, m := range members {
		skills, err := json.Marshal(m.DevelopingSkills)
		if err != nil {
			return strideerrors.NewStoreErrorWithCause("members.replace", m.ID, err)
		}
		_, err = tx.ExecContext(ctx, rebind(`
			INSERT INTO members (id, board_id, name, developing_skills)
			VALUES (?, ?, ?, ?)`),
			m.ID, boardID, m.Name, string(skills),
		)
		if err != nil {
			return strideerrors.NewStoreErrorWithCause("members.replace", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return strideerrors.NewStoreErrorWithCause("members.replace", boardID, err)
	}
	return nil
}

// UpsertSnapshot records one period's velocity. Re-recording the same
// period replaces the previous values.
func (s *Store) UpsertSnapshot(ctx context.Context, snap board.VelocitySnapshot) error {
	_, err := s.db.ExecContext(ctx, rebind(`
		INSERT INTO velocity_snapshots (board_id, period_start, period_end,
			tasks_completed, story_points_completed, active_team_members, quality_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (board_id, period_start) DO UPDATE SET
			period_end = excluded.period_end,
			tasks_completed = excluded.tasks_completed,
			story_points_completed = excluded.story_points_completed,
			active_team_members = excluded.active_team_members,
			quality_score = excluded.quality_score`),
		snap.BoardID, snap.PeriodStart.UTC(), snap.PeriodEnd.UTC(),
		snap.TasksCompleted, snap.StoryPointsCompleted, snap.ActiveTeamMembers, snap.QualityScore,
	)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("snapshots.upsert", snap.BoardID, err)
	}
	return nil
}

// SetScopeBaseline records the scope standing at period start, the
// reference point for scope-creep detection.
func (s *Store) SetScopeBaseline(ctx context.Context, boardID string, scope board.ScopeMetrics) error {
	_, err := s.db.ExecContext(ctx, rebind(`
		INSERT INTO scope_baselines (board_id, total_tasks, completed_tasks,
			remaining_tasks, total_story_points, completed_story_points, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (board_id) DO UPDATE SET
			total_tasks = excluded.total_tasks,
			completed_tasks = excluded.completed_tasks,
			remaining_tasks = excluded.remaining_tasks,
			total_story_points = excluded.total_story_points,
			completed_story_points = excluded.completed_story_points,
			recorded_at = excluded.recorded_at`),
		boardID, scope.TotalTasks, scope.CompletedTasks, scope.RemainingTasks,
		scope.TotalStoryPoints, scope.CompletedStoryPoints, time.Now().UTC(),
	)
	if err != nil {
		return strideerrors.NewStoreErrorWithCause("baseline.set", boardID, err)
	}
	return nil
}

// VelocitySnapshots returns up to window snapshots, oldest first.
func (s *Store) VelocitySnapshots(ctx context.Context, boardID string, window int) ([]board.VelocitySnapshot, error) {
	if window <= 0 {
		window = forecast.DefaultWindowPeriods
	}
	rows, err := s.db.QueryContext(ctx, rebind(`
		SELECT board_id, period_start, period_end, tasks_completed,
			story_points_completed, active_team_members, quality_score
		FROM velocity_snapshots
		WHERE board_id = ?
		ORDER BY period_start DESC
		LIMIT ?`), boardID, window)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("snapshots.list", boardID, err)
	}
	defer rows.Close()

	var out []board.VelocitySnapshot
	for rows.Next() {
		var snap board.VelocitySnapshot
		if err := rows.Scan(&snap.BoardID, &snap.PeriodStart, &snap.PeriodEnd,
			&snap.TasksCompleted, &snap.StoryPointsCompleted,
			&snap.ActiveTeamMembers, &snap.QualityScore); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("snapshots.list", "scanning snapshot", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("snapshots.list", boardID, err)
	}

	// Flip newest-first to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ActiveTasks returns the board's unfinished tasks, ordered by id.
func (s *Store) ActiveTasks(ctx context.Context, boardID string) ([]board.Task, error) {
	rows, err := s.db.QueryContext(ctx, rebind(`
		SELECT id, board_id, title, assignee, priority, risk,
			due_date, progress, story_points, comment_count, last_updated
		FROM tasks
		WHERE board_id = ? AND progress < 100
		ORDER BY id`), boardID)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("tasks.active", boardID, err)
	}
	defer rows.Close()

	var out []board.Task
	for rows.Next() {
		var t board.Task
		var priority, risk string
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.BoardID, &t.Title, &t.Assignee, &priority, &risk,
			&due, &t.Progress, &t.StoryPoints, &t.CommentCount, &t.LastUpdated); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("tasks.active", "scanning task", err)
		}
		t.Priority = board.Priority(priority)
		t.Risk = board.RiskLevel(risk)
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Members returns the board's roster, ordered by name.
func (s *Store) Members(ctx context.Context, boardID string) ([]board.Member, error) {
	rows, err := s.db.QueryContext(ctx, rebind(`
		SELECT id, name, developing_skills
		FROM members
		WHERE board_id = ?
		ORDER BY name`), boardID)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("members.list", boardID, err)
	}
	defer rows.Close()

	var out []board.Member
	for rows.Next() {
		var m board.Member
		var skills string
		if err := rows.Scan(&m.ID, &m.Name, &skills); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("members.list", "scanning member", err)
		}
		if skills != "" {
			if err := json.Unmarshal([]byte(skills), &m.DevelopingSkills); err != nil {
				return nil, strideerrors.NewStoreErrorWithCause("members.list", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Scope derives the board's current scope metrics from the task table.
// A task counts as completed at 100% progress.
func (s *Store) Scope(ctx context.Context, boardID string) (board.ScopeMetrics, error) {
	row := s.db.QueryRowContext(ctx, rebind(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN progress >= 100 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(story_points), 0),
			COALESCE(SUM(CASE WHEN progress >= 100 THEN story_points ELSE 0 END), 0)
		FROM tasks WHERE board_id = ?`), boardID)

	var m board.ScopeMetrics
	if err := row.Scan(&m.TotalTasks, &m.CompletedTasks, &m.TotalStoryPoints, &m.CompletedStoryPoints); err != nil {
		return m, strideerrors.NewStoreErrorWithCause("scope.get", boardID, err)
	}
	m.RemainingTasks = m.TotalTasks - m.CompletedTasks
	return m, nil
}

// ScopeBaseline returns the recorded baseline, or nil when none exists.
func (s *Store) ScopeBaseline(ctx context.Context, boardID string) (*board.ScopeMetrics, error) {
	row := s.db.QueryRowContext(ctx, rebind(`
		SELECT total_tasks, completed_tasks, remaining_tasks,
			total_story_points, completed_story_points
		FROM scope_baselines WHERE board_id = ?`), boardID)

	var m board.ScopeMetrics
	if err := row.Scan(&m.TotalTasks, &m.CompletedTasks, &m.RemainingTasks,
		&m.TotalStoryPoints, &m.CompletedStoryPoints); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, strideerrors.NewStoreErrorWithCause("baseline.get", boardID, err)
	}
	return &m, nil
}

// Sources bundles the store's provider implementations for Collect.
func (s *Store) Sources() board.Sources {
	return board.Sources{Snapshots: s, Tasks: s, Members: s, Scope: s}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
