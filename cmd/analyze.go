package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [board]",
	Short: "Run a full analysis pass for a board",
	Long: `Run one full analysis pass: collect board state, forecast completion,
run the coaching detectors, persist the results, and refresh alerts.

Examples:
  stride analyze                  # Analyze the configured board
  stride analyze platform-q3      # Analyze a specific board
  stride analyze --detailed       # Include reasoning and actions per suggestion`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyzeCommand(args)
	},
}

var analyzeDetailed bool

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeDetailed, "detailed", false, "Show reasoning, evidence, and actions for each suggestion")
}

func runAnalyzeCommand(args []string) error {
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

	res, err := newRunner(cfg, st).Run(context.Background(), boardID)
	if err != nil {
		return errors.Wrapf(err, "failed to analyze board %s", boardID)
	}

	fmt.Printf("Board: %s (as of %s)\n\n", res.BoardID, res.AsOf.Format("2006-01-02 15:04"))

	printProjection(res.Projection)

	fmt.Printf("\nCoaching Suggestions (%d)\n", len(res.Suggestions))
	fmt.Println("=========================")
	if len(res.Suggestions) == 0 {
		fmt.Println("Nothing to flag. The board looks healthy.")
	}
	for i, s := range res.Suggestions {
		printSuggestion(s, analyzeDetailed)
		if i < len(res.Suggestions)-1 {
			fmt.Println()
		}
	}

	if len(res.Recommendations) > 0 {
		fmt.Println("\nForecast Recommendations")
		fmt.Println("========================")
		for _, rec := range res.Recommendations {
			fmt.Printf("%d. %s (impact: %s, effort: %s)\n", rec.Priority, rec.Summary, rec.Impact, rec.Effort)
			if analyzeDetailed && rec.Detail != "" {
				fmt.Printf("   %s\n", rec.Detail)
			}
		}
	}

	fmt.Printf("\nAlerts: %d raised, %d resolved\n", res.AlertsRaised, res.AlertsResolved)
	fmt.Printf("✓ Analysis completed in %s\n", res.Duration.Round(time.Millisecond))

	return nil
}
