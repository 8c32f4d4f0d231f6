// Package runner orchestrates one full analysis pass: collect board
// state, project completion, run the coaching detectors, persist all
// results, and reconcile alerts. The CLI and any embedding host drive
// analysis exclusively through this package.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/coach"
	strideerrors "github.com/stride-dev/stride/pkg/errors"
	"github.com/stride-dev/stride/pkg/forecast"
	"github.com/stride-dev/stride/pkg/store"
	"github.com/stride-dev/stride/pkg/telemetry"
)

// DefaultWatchInterval is how often watch mode re-analyzes when no
// interval is configured.
const DefaultWatchInterval = 15 * time.Minute

// Options tunes a Runner. The zero value is usable: tasks metric,
// default window, 95% confidence, wall-clock time, no metrics.
type Options struct {
	Metric        board.Metric
	WindowPeriods int
	Confidence    forecast.ConfidenceLevel
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
	Now           func() time.Time
}

// Runner executes analysis passes against one store.
type Runner struct {
	store      *store.Store
	forecaster *forecast.Forecaster
	engine     *coach.Engine
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	metric     board.Metric
	window     int
	confidence forecast.ConfidenceLevel
	now        func() time.Time
}

// New creates a Runner. The engine carries its own learner and
// enhancer; pass one built by coach.NewEngine.
func New(st *store.Store, engine *coach.Engine, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{
		store:      st,
		forecaster: forecast.New(opts.Logger),
		engine:     engine,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		metric:     opts.Metric,
		window:     opts.WindowPeriods,
		confidence: opts.Confidence,
		now:        opts.Now,
	}
}

// Result is everything one analysis pass produced. Projection and
// Suggestions are already persisted when Run returns; Recommendations
// are advisory display output and are not stored.
type Result struct {
	BoardID         string
	AsOf            time.Time
	Projection      forecast.Projection
	Recommendations []forecast.Recommendation
	Suggestions     []coach.Suggestion
	AlertsRaised    int
	AlertsResolved  int
	Duration        time.Duration
}

// Run executes one analysis pass for one board.
func (r *Runner) Run(ctx context.Context, boardID string) (res *Result, err error) {
	started := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordAnalysis(boardID, err, time.Since(started).Seconds())
		}
	}()

	info, err := r.store.Board(ctx, boardID)
	if err != nil {
		return nil, strideerrors.Wrap(err, "loading board")
	}
	if info == nil {
		return nil, strideerrors.NewDataError("board", boardID, "unknown board")
	}

	asOf := r.now()
	state, err := board.Collect(ctx, r.store.Sources(), boardID, r.window, asOf)
	if err != nil {
		return nil, err
	}

	proj, recs := r.forecaster.Forecast(boardID, state.Snapshots, state.Scope, forecast.Options{
		AsOf:            asOf,
		TargetDate:      info.TargetDate,
		ConfidenceLevel: r.confidence,
		WindowPeriods:   r.window,
		Metric:          r.metric,
	})
	if err := r.store.InsertProjection(ctx, proj); err != nil {
		return nil, strideerrors.Wrap(err, "persisting projection")
	}

	suggestions, err := r.engine.Analyze(ctx, state, &proj)
	if err != nil {
		return nil, strideerrors.Wrap(err, "running detectors")
	}
	if len(suggestions) > 0 {
		if err := r.store.InsertSuggestions(ctx, suggestions); err != nil {
			return nil, strideerrors.Wrap(err, "persisting suggestions")
		}
	}

	raised, resolved, err := r.store.SyncAlerts(ctx, boardID, forecast.EvaluateAlerts(proj))
	if err != nil {
		return nil, strideerrors.Wrap(err, "syncing alerts")
	}

	if r.metrics != nil {
		r.metrics.RecordForecast(boardID, proj.DelayProbability, proj.DaysUntil)
		for _, s := range suggestions {
			r.metrics.RecordSuggestion(string(s.Type), string(s.Severity), string(s.GenerationMethod))
		}
		r.metrics.RecordAlerts(boardID, raised, resolved)
	}

	res = &Result{
		BoardID:         boardID,
		AsOf:            asOf,
		Projection:      proj,
		Recommendations: recs,
		Suggestions:     suggestions,
		AlertsRaised:    raised,
		AlertsResolved:  resolved,
		Duration:        time.Since(started),
	}

	r.logInfo("analysis pass complete",
		"board", boardID,
		"days_until", proj.DaysUntil,
		"risk", proj.RiskLevel,
		"suggestions", len(suggestions),
		"alerts_raised", raised,
		"alerts_resolved", resolved,
		"duration", res.Duration)

	return res, nil
}

// RunAll analyzes the given boards, or every stored board when ids is
// empty. One board failing does not stop the rest; the error reports
// how many failed.
func (r *Runner) RunAll(ctx context.Context, ids []string) ([]*Result, error) {
	if len(ids) == 0 {
		boards, err := r.store.Boards(ctx)
		if err != nil {
			return nil, strideerrors.Wrap(err, "listing boards")
		}
		for _, b := range boards {
			ids = append(ids, b.ID)
		}
	}

	results := make([]*Result, 0, len(ids))
	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.Run(ctx, id)
		if err != nil {
			failed++
			r.logWarn("board analysis failed", "board", id, "error", err)
			continue
		}
		results = append(results, res)
	}

	if failed > 0 {
		return results, strideerrors.Newf("%d of %d boards failed analysis", failed, len(ids))
	}
	return results, nil
}

// Watch re-analyzes the given boards on a fixed interval until the
// context is cancelled. The first pass runs immediately.
func (r *Runner) Watch(ctx context.Context, interval time.Duration, ids []string) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	if _, err := r.RunAll(ctx, ids); err != nil {
		r.logWarn("watch pass incomplete", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunAll(ctx, ids); err != nil {
				r.logWarn("watch pass incomplete", "error", err)
			}
		}
	}
}

// logInfo logs an info message if a logger is configured.
func (r *Runner) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

// logWarn logs a warning if a logger is configured.
func (r *Runner) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
