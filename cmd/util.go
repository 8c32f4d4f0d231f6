package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"

	"github.com/stride-dev/stride/pkg/ai"
	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/coach"
	"github.com/stride-dev/stride/pkg/config"
	"github.com/stride-dev/stride/pkg/forecast"
	"github.com/stride-dev/stride/pkg/learning"
	"github.com/stride-dev/stride/pkg/runner"
	"github.com/stride-dev/stride/pkg/store"
)

// newLogger returns a debug logger in verbose mode, nil otherwise.
// Every package treats a nil logger as logging disabled.
func newLogger() *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (*store.Store, error) {
	switch cfg.Storage.Driver {
	case "", store.DriverSQLite:
		return store.Open(store.DriverSQLite, cfg.Storage.Path)
	case store.DriverPostgres:
		if cfg.Storage.DSN == "" {
			return nil, errors.New("storage.driver is postgres but storage.dsn is empty (set STRIDE_STORAGE_DSN)")
		}
		return store.Open(store.DriverPostgres, cfg.Storage.DSN)
	default:
		return nil, errors.Newf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// buildEngine wires the coaching engine: the learner always runs, the
// enhancer only when AI is enabled and a provider can be constructed.
// A provider wiring failure degrades to rule-only with a warning; it
// never blocks analysis.
func buildEngine(cfg *config.Config, st *store.Store) *coach.Engine {
	logger := newLogger()
	learner := learning.NewLearner(st, logger)

	var enhancer *coach.Enhancer
	if cfg.AI.Enabled {
		provider, err := ai.NewProvider(&cfg.AI, verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: AI enhancement unavailable, using rule-based suggestions: %v\n", err)
		} else {
			enhancer = coach.NewEnhancer(provider, logger)
		}
	}

	return coach.NewEngine(learner, enhancer, logger)
}

// newRunner assembles the full analysis pipeline from configuration.
func newRunner(cfg *config.Config, st *store.Store) *runner.Runner {
	return runner.New(st, buildEngine(cfg, st), runner.Options{
		Metric:        board.Metric(cfg.Forecast.Metric),
		WindowPeriods: cfg.Forecast.WindowPeriods,
		Confidence:    forecast.ConfidenceLevel(cfg.Forecast.ConfidenceLevel),
		Logger:        newLogger(),
	})
}

// resolveBoard picks the board to operate on: positional argument
// first, then board.id from configuration.
func resolveBoard(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Board.ID != "" {
		return cfg.Board.ID, nil
	}
	return "", errors.New("no board specified: pass a board id or set board.id in config (a repository .stride.toml usually pins it)")
}

// isTTY reports whether stdout is an interactive terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// severityTag renders a fixed-width severity label for list output.
func severityTag(s coach.Severity) string {
	return fmt.Sprintf("[%-8s]", string(s))
}

// printSuggestion renders one suggestion. Detailed output includes
// reasoning, evidence, and the recommended actions; compact output
// keeps the message on one line, fitted to the terminal when stdout
// is interactive.
func printSuggestion(s coach.Suggestion, detailed bool) {
	msg := s.Message
	if !detailed && isTTY() {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
			msg = truncateLine(msg, w-11)
		}
	}

	fmt.Printf("%s %s  %s\n", severityTag(s.Severity), s.Type, s.Title)
	fmt.Printf("           %s\n", msg)

	if !detailed {
		fmt.Printf("           id: %s  confidence: %.0f%%  method: %s\n", s.ID, s.ConfidenceScore*100, s.GenerationMethod)
		return
	}

	fmt.Printf("\n  Why: %s\n", s.Reasoning)
	if len(s.Evidence) > 0 {
		fmt.Println("  Evidence:")
		for _, k := range sortedKeys(s.Evidence) {
			fmt.Printf("    %s: %s\n", k, s.Evidence[k])
		}
	}
	if len(s.RecommendedActions) > 0 {
		fmt.Println("  Recommended actions:")
		for i, a := range s.RecommendedActions {
			fmt.Printf("    %d. %s\n", i+1, a)
		}
	}
	fmt.Printf("  Expected impact: %s\n", s.ExpectedImpact)
	fmt.Printf("  id: %s  confidence: %.0f%%  method: %s  expires: %s\n",
		s.ID, s.ConfidenceScore*100, s.GenerationMethod, s.ExpiresAt.Format("2006-01-02"))
}

// printProjection renders a completion projection.
func printProjection(p forecast.Projection) {
	fmt.Println("Completion Forecast")
	fmt.Println("===================")

	if !p.Predictable() {
		fmt.Println("Completion date: unpredictable (no recorded forward progress)")
	} else {
		fmt.Printf("Predicted completion: %s (in %d days)\n", p.PredictedDate.Format("2006-01-02"), p.DaysUntil)
		fmt.Printf("%d%% interval: %s to %s (±%.1f days)\n",
			int(p.ConfidenceLevel), p.LowerBound.Format("2006-01-02"), p.UpperBound.Format("2006-01-02"), p.MarginOfErrorDays)
	}

	fmt.Printf("Velocity: %.1f %s/week (±%.1f, CV %.0f%%, %d samples)\n",
		p.AverageVelocity, p.Metric, p.StdDev, p.CV, p.SampleCount)
	fmt.Printf("Trend: %s   Confidence: %.0f%%   Risk: %s\n", p.Trend, p.ConfidenceScore*100, p.RiskLevel)

	if p.TargetDate != nil {
		verdict := "on track ✓"
		if !p.WillMeetTarget {
			verdict = "at risk ✗"
		}
		fmt.Printf("Target %s: %s (%.0f%% delay probability)\n",
			p.TargetDate.Format("2006-01-02"), verdict, p.DelayProbability)
	}
}

// sortedKeys returns map keys in lexical order for stable output.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateLine shortens a string for single-line list display.
func truncateLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
