// Package store is the bundled persistence layer: a single SQL schema
// holding boards, their task and velocity history, and every analysis
// result. It implements the board source interfaces and the learning
// store, so a host can run the whole pipeline against nothing but a
// database file. SQLite is the default engine; PostgreSQL is supported
// for shared deployments.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/stride-dev/stride/pkg/board"
	strideerrors "github.com/stride-dev/stride/pkg/errors"
	"github.com/stride-dev/stride/pkg/learning"
)

// Supported driver names, matching config.ValidDrivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store wraps a SQL database holding all stride state.
type Store struct {
	db     *sql.DB
	driver string
}

var _ learning.Store = (*Store)(nil)

var (
	_ board.SnapshotSource = (*Store)(nil)
	_ board.TaskSource     = (*Store)(nil)
	_ board.MemberSource   = (*Store)(nil)
	_ board.ScopeSource    = (*Store)(nil)
)

// Open connects to the database named by driver and dsn and ensures
// the schema exists. For sqlite the dsn is a file path whose parent
// directory is created as needed.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		return openPostgres(dsn)
	default:
		return nil, strideerrors.NewStoreError("open", fmt.Sprintf("unsupported driver %q", driver))
	}
}

func openSQLite(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, strideerrors.NewStoreErrorWithCause("open", "creating database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("open", "opening sqlite database", err)
	}

	// A single writer avoids SQLITE_BUSY under the watch loop.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, strideerrors.NewStoreErrorWithCause("open", pragma, err)
		}
	}

	s := &Store{db: db, driver: DriverSQLite}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, strideerrors.NewStoreErrorWithCause("open", "opening postgres database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, strideerrors.NewStoreErrorWithCause("open", "pinging postgres database", err)
	}

	s := &Store{db: db, driver: DriverPostgres}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// schema is shared between engines: TEXT/INTEGER/REAL/TIMESTAMP/BOOLEAN
// mean the same thing to sqlite's affinity rules and postgres, times
// are always bound as parameters, and ids are uuids rather than serial
// columns. The partial unique index on alerts is what makes the
// one-active-alert-per-board-and-type rule hold even across processes.
const schema = `
CREATE TABLE IF NOT EXISTS boards (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	target_date TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	board_id TEXT NOT NULL,
	title TEXT NOT NULL,
	assignee TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'medium',
	risk TEXT NOT NULL DEFAULT 'low',
	due_date TIMESTAMP,
	progress REAL NOT NULL DEFAULT 0,
	story_points REAL NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	last_updated TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_board ON tasks(board_id);

CREATE TABLE IF NOT EXISTS members (
	id TEXT PRIMARY KEY,
	board_id TEXT NOT NULL,
	name TEXT NOT NULL,
	developing_skills TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_members_board ON members(board_id);

CREATE TABLE IF NOT EXISTS velocity_snapshots (
	board_id TEXT NOT NULL,
	period_start TIMESTAMP NOT NULL,
	period_end TIMESTAMP NOT NULL,
	tasks_completed INTEGER NOT NULL DEFAULT 0,
	story_points_completed REAL NOT NULL DEFAULT 0,
	active_team_members INTEGER NOT NULL DEFAULT 0,
	quality_score REAL NOT NULL DEFAULT 100,
	PRIMARY KEY (board_id, period_start)
);

CREATE TABLE IF NOT EXISTS scope_baselines (
	board_id TEXT PRIMARY KEY,
	total_tasks INTEGER NOT NULL,
	completed_tasks INTEGER NOT NULL,
	remaining_tasks INTEGER NOT NULL,
	total_story_points REAL NOT NULL,
	completed_story_points REAL NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS projections (
	id TEXT PRIMARY KEY,
	board_id TEXT NOT NULL,
	as_of TIMESTAMP NOT NULL,
	predicted_date TIMESTAMP NOT NULL,
	lower_bound TIMESTAMP NOT NULL,
	upper_bound TIMESTAMP NOT NULL,
	days_until INTEGER NOT NULL,
	margin_days REAL NOT NULL,
	confidence_score REAL NOT NULL,
	confidence_level INTEGER NOT NULL,
	risk_level TEXT NOT NULL,
	delay_probability REAL NOT NULL,
	trend TEXT NOT NULL,
	target_date TIMESTAMP,
	will_meet_target BOOLEAN NOT NULL,
	metric TEXT NOT NULL,
	average_velocity REAL NOT NULL,
	std_dev REAL NOT NULL,
	cv REAL NOT NULL,
	sample_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projections_board ON projections(board_id, as_of);

CREATE TABLE IF NOT EXISTS suggestions (
	id TEXT PRIMARY KEY,
	board_id TEXT NOT NULL,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	reasoning TEXT NOT NULL DEFAULT '',
	recommended_actions TEXT NOT NULL DEFAULT '[]',
	expected_impact TEXT NOT NULL DEFAULT '',
	confidence_score REAL NOT NULL,
	evidence TEXT NOT NULL DEFAULT '{}',
	generation_method TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_suggestions_board ON suggestions(board_id, status);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	suggestion_id TEXT NOT NULL DEFAULT '',
	suggestion_type TEXT NOT NULL,
	was_helpful BOOLEAN NOT NULL,
	action_taken TEXT NOT NULL,
	relevance_score INTEGER NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_type ON feedback(suggestion_type);

CREATE TABLE IF NOT EXISTS learned_insights (
	suggestion_type TEXT PRIMARY KEY,
	verdict TEXT NOT NULL,
	feedback_count INTEGER NOT NULL,
	helpful_rate REAL NOT NULL,
	action_rate REAL NOT NULL,
	avg_relevance REAL NOT NULL,
	recommended_confidence REAL NOT NULL,
	effectiveness REAL NOT NULL,
	active BOOLEAN NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	board_id TEXT NOT NULL,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	raised_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_active
	ON alerts(board_id, type) WHERE status = 'active';
`

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return strideerrors.NewStoreErrorWithCause("schema", "creating tables", err)
	}
	return nil
}

// rebind converts ? placeholders to $1, $2, ... Both engines accept
// the numbered form, so every query below is written with ? and passed
// through here.
func rebind(query string) string {
	var out strings.Builder
	n := 1
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&out, "$%d", n)
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}
