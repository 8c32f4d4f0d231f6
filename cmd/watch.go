package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/forecast"
	"github.com/stride-dev/stride/pkg/runner"
	"github.com/stride-dev/stride/pkg/telemetry"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [board...]",
	Short: "Analyze boards continuously",
	Long: `Run the analysis pass on a schedule until interrupted. Each tick
re-forecasts, refreshes suggestions, and reconciles alerts for every
watched board.

Boards come from the arguments, then watch.boards in config, then the
default board. With telemetry.enabled, Prometheus metrics are served
on telemetry.addr under /metrics.

Examples:
  stride watch                        # Watch the configured boards hourly
  stride watch demo calm-api
  stride watch --interval 15m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatchCommand(args)
	},
}

var watchInterval time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Analysis cadence (e.g. 15m, 1h; default from config)")
}

func runWatchCommand(args []string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	boards := args
	if len(boards) == 0 {
		boards = cfg.Watch.Boards
	}
	if len(boards) == 0 && cfg.Board.ID != "" {
		boards = []string{cfg.Board.ID}
	}
	if len(boards) == 0 {
		return errors.New("no boards to watch: pass board ids, set watch.boards, or set board.id in config")
	}

	interval := watchInterval
	if interval <= 0 && cfg.Watch.Interval != "" {
		interval, err = time.ParseDuration(cfg.Watch.Interval)
		if err != nil {
			return errors.Wrap(err, "invalid watch.interval in config")
		}
	}
	if interval <= 0 {
		interval = runner.DefaultWatchInterval
	}

	st, err := openStore(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.NewMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Telemetry.Addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "Warning: metrics server failed: %v\n", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Printf("Serving metrics on http://%s/metrics\n", cfg.Telemetry.Addr)
	}

	r := runner.New(st, buildEngine(cfg, st), runner.Options{
		Metric:        board.Metric(cfg.Forecast.Metric),
		WindowPeriods: cfg.Forecast.WindowPeriods,
		Confidence:    forecast.ConfidenceLevel(cfg.Forecast.ConfidenceLevel),
		Metrics:       metrics,
		Logger:        newLogger(),
	})

	fmt.Printf("Watching %d boards every %s (Ctrl-C to stop)\n", len(boards), interval)

	err = r.Watch(ctx, interval, boards)
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nWatch stopped.")
		return nil
	}
	return err
}
