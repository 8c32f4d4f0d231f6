package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/forecast"
)

// forecastCmd represents the forecast command
var forecastCmd = &cobra.Command{
	Use:   "forecast [board]",
	Short: "Project a board's completion date",
	Long: `Compute a completion projection from the board's velocity history.

Unlike analyze, this is read-only: nothing is persisted, no detectors
run, and no alerts change. Use it to try different windows, metrics,
and targets.

Examples:
  stride forecast                          # Configured board, configured window
  stride forecast platform-q3 --window 12  # Wider velocity window
  stride forecast --metric points          # Project story points instead of task count
  stride forecast --target 2026-09-30      # Probability of meeting an ad-hoc date`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runForecastCommand(args)
	},
}

var (
	forecastWindow     int
	forecastConfidence int
	forecastMetric     string
	forecastTarget     string
)

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().IntVar(&forecastWindow, "window", 0, "Velocity window in periods (default from config)")
	forecastCmd.Flags().IntVar(&forecastConfidence, "confidence", 0, "Confidence level: 90, 95, or 99 (default from config)")
	forecastCmd.Flags().StringVar(&forecastMetric, "metric", "", "Velocity metric: tasks or points (default from config)")
	forecastCmd.Flags().StringVar(&forecastTarget, "target", "", "Target date to check (YYYY-MM-DD, default is the board's stored target)")
}

func runForecastCommand(args []string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	boardID, err := resolveBoard(cfg, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	ctx := context.Background()

	info, err := st.Board(ctx, boardID)
	if err != nil {
		return errors.Wrap(err, "failed to look up board")
	}
	if info == nil {
		return errors.Newf("unknown board %q (run 'stride boards' to list known boards)", boardID)
	}

	window := cfg.Forecast.WindowPeriods
	if forecastWindow > 0 {
		window = forecastWindow
	}

	confidence := forecast.ConfidenceLevel(cfg.Forecast.ConfidenceLevel)
	if forecastConfidence > 0 {
		confidence = forecast.ConfidenceLevel(forecastConfidence)
	}

	metric := board.Metric(cfg.Forecast.Metric)
	if forecastMetric != "" {
		metric = board.Metric(forecastMetric)
	}
	if metric != board.MetricTasks && metric != board.MetricPoints {
		return errors.Newf("invalid metric %q: must be tasks or points", metric)
	}

	target := info.TargetDate
	if forecastTarget != "" {
		parsed, err := time.Parse("2006-01-02", forecastTarget)
		if err != nil {
			return errors.Wrap(err, "invalid --target date")
		}
		target = &parsed
	}

	asOf := time.Now().UTC()
	state, err := board.Collect(ctx, st.Sources(), boardID, window, asOf)
	if err != nil {
		return errors.Wrap(err, "failed to collect board state")
	}

	proj, recs := forecast.New(newLogger()).Forecast(boardID, state.Snapshots, state.Scope, forecast.Options{
		AsOf:            asOf,
		TargetDate:      target,
		ConfidenceLevel: confidence,
		WindowPeriods:   window,
		Metric:          metric,
	})

	fmt.Printf("Board: %s (%s)\n\n", info.ID, info.Name)
	printProjection(proj)

	if len(recs) > 0 {
		fmt.Println("\nRecommendations")
		fmt.Println("===============")
		for _, rec := range recs {
			fmt.Printf("%d. %s (impact: %s, effort: %s)\n", rec.Priority, rec.Summary, rec.Impact, rec.Effort)
			fmt.Printf("   %s\n", rec.Detail)
		}
	}

	return nil
}
