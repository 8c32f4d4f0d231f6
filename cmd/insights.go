package cmd

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/pkg/learning"
)

// insightsCmd represents the insights command
var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show what the coach has learned from feedback",
	Long: `Show the learned insight for each suggestion type: how much feedback
it has, how helpful the team found it, and whether it is currently
suppressed.

Examples:
  stride insights
  stride insights recompute deadline_risk`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInsightsCommand()
	},
}

// insightsRecomputeCmd rebuilds one insight from raw feedback
var insightsRecomputeCmd = &cobra.Command{
	Use:   "recompute <suggestion-type>",
	Short: "Recompute an insight from its raw feedback",
	Long: `Recompute the learned insight for one suggestion type directly from
the stored feedback, instead of waiting for the periodic refresh.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInsightsRecomputeCommand(args[0])
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.AddCommand(insightsRecomputeCmd)
}

func runInsightsCommand() error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	st, err := openStore(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	insights, err := st.Insights(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to list insights")
	}

	if len(insights) == 0 {
		fmt.Println("No learned insights yet.")
		fmt.Println("Record feedback with 'stride feedback' and they will accumulate.")
		return nil
	}

	fmt.Println("Learned Insights")
	fmt.Println("================")

	for _, ins := range insights {
		verdictIcon := "✓"
		if ins.Verdict == "negative" {
			verdictIcon = "✗"
		}

		fmt.Printf("\n%s %s (%s)\n", verdictIcon, ins.SuggestionType, ins.Verdict)
		fmt.Printf("  Feedback: %d records, %.0f%% helpful, %.0f%% acted on, relevance %.1f/5\n",
			ins.FeedbackCount, ins.HelpfulRate*100, ins.ActionRate*100, ins.AvgRelevance)
		fmt.Printf("  Effectiveness: %.0f/100, recommended confidence %.0f%%\n",
			ins.Effectiveness, ins.RecommendedConfidence*100)

		if ins.SuppressionEligible() {
			fmt.Println("  Status: suppressed (consistently unhelpful, detector is skipped)")
		}
	}

	return nil
}

func runInsightsRecomputeCommand(suggestionType string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	st, err := openStore(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	ctx := context.Background()

	learner := learning.NewLearner(st, newLogger())
	if err := learner.RecomputeInsight(ctx, suggestionType); err != nil {
		return errors.Wrapf(err, "failed to recompute insight for %s", suggestionType)
	}

	ins, err := st.InsightByType(ctx, suggestionType)
	if err != nil {
		return errors.Wrap(err, "failed to read insight")
	}
	if ins == nil {
		fmt.Printf("No feedback recorded for %s yet, nothing to learn from.\n", suggestionType)
		return nil
	}

	fmt.Printf("✓ Recomputed insight for %s: %d records, verdict %s, effectiveness %.0f/100\n",
		ins.SuggestionType, ins.FeedbackCount, ins.Verdict, ins.Effectiveness)
	return nil
}
