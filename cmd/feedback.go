package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/pkg/learning"
)

// feedbackCmd represents the feedback command
var feedbackCmd = &cobra.Command{
	Use:   "feedback <suggestion-id>",
	Short: "Record feedback on a suggestion",
	Long: `Record whether a suggestion was useful and what you did with it.

Feedback is how the coach learns: suggestion types with consistently
poor feedback are suppressed, and confidence scores are re-weighted
toward what your team actually finds useful.

Examples:
  stride feedback 4f1c... --helpful --action accepted --relevance 5
  stride feedback 4f1c... --helpful=false --action ignored --relevance 1 --comment "we already track this"
  stride feedback 4f1c... --action partially --relevance 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeedbackCommand(args[0])
	},
}

var (
	feedbackHelpful   bool
	feedbackAction    string
	feedbackRelevance int
	feedbackComment   string
)

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().BoolVar(&feedbackHelpful, "helpful", false, "The suggestion was helpful")
	feedbackCmd.Flags().StringVar(&feedbackAction, "action", "", "What you did: accepted, partially, modified, ignored, or not_applicable")
	feedbackCmd.Flags().IntVar(&feedbackRelevance, "relevance", 3, "Relevance to your situation, 1 (noise) to 5 (spot on)")
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "Free-form note stored with the feedback")
	_ = feedbackCmd.MarkFlagRequired("action")
}

func runFeedbackCommand(suggestionID string) error {
	action := learning.ActionTaken(strings.ToLower(feedbackAction))
	if !action.IsValid() {
		return errors.Newf("invalid --action %q: must be accepted, partially, modified, ignored, or not_applicable", feedbackAction)
	}
	if feedbackRelevance < 1 || feedbackRelevance > 5 {
		return errors.Newf("invalid --relevance %d: must be between 1 and 5", feedbackRelevance)
	}

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

	suggestion, err := st.SuggestionByID(ctx, suggestionID)
	if err != nil {
		return errors.Wrap(err, "failed to look up suggestion")
	}
	if suggestion == nil {
		return errors.Newf("unknown suggestion %q (run 'stride suggestions' to list active ones)", suggestionID)
	}

	learner := learning.NewLearner(st, newLogger())
	rec, err := learner.RecordFeedback(ctx, learning.FeedbackRecord{
		SuggestionID:   suggestion.ID,
		SuggestionType: string(suggestion.Type),
		WasHelpful:     feedbackHelpful,
		ActionTaken:    action,
		RelevanceScore: feedbackRelevance,
		Comment:        feedbackComment,
	})
	if err != nil {
		return errors.Wrap(err, "failed to record feedback")
	}

	fmt.Printf("✓ Feedback recorded for %s suggestion (id %s)\n", suggestion.Type, rec.ID)

	insight, err := st.InsightByType(ctx, string(suggestion.Type))
	if err != nil {
		return errors.Wrap(err, "failed to read learned insight")
	}
	if insight != nil {
		fmt.Printf("  %s now has %d feedback records (%.0f%% helpful, verdict %s)\n",
			insight.SuggestionType, insight.FeedbackCount, insight.HelpfulRate*100, insight.Verdict)
	}

	return nil
}
