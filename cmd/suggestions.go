package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/pkg/coach"
)

// suggestionsCmd represents the suggestions command
var suggestionsCmd = &cobra.Command{
	Use:   "suggestions [board]",
	Short: "List and manage coaching suggestions",
	Long: `List the active coaching suggestions stored for a board, most severe
first, and move them through their lifecycle.

Examples:
  stride suggestions                    # Active suggestions for the configured board
  stride suggestions platform-q3
  stride suggestions --detailed         # Include reasoning, evidence, and actions
  stride suggestions ack <id>           # Mark a suggestion acknowledged
  stride suggestions resolve <id>       # Mark a suggestion resolved
  stride suggestions dismiss <id>       # Dismiss a suggestion`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuggestionsListCommand(args)
	},
}

// suggestionsAckCmd acknowledges a suggestion
var suggestionsAckCmd = &cobra.Command{
	Use:   "ack <suggestion-id>",
	Short: "Acknowledge a suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuggestionStatusCommand(args[0], coach.StatusAcknowledged)
	},
}

// suggestionsResolveCmd resolves a suggestion
var suggestionsResolveCmd = &cobra.Command{
	Use:   "resolve <suggestion-id>",
	Short: "Mark a suggestion resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuggestionStatusCommand(args[0], coach.StatusResolved)
	},
}

// suggestionsDismissCmd dismisses a suggestion
var suggestionsDismissCmd = &cobra.Command{
	Use:   "dismiss <suggestion-id>",
	Short: "Dismiss a suggestion without acting on it",
	Long: `Dismiss a suggestion without acting on it.

Dismissing only hides this occurrence. To teach the coach that a whole
category of suggestion is unhelpful, record feedback with
'stride feedback' instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuggestionStatusCommand(args[0], coach.StatusDismissed)
	},
}

var suggestionsDetailed bool

func init() {
	rootCmd.AddCommand(suggestionsCmd)
	suggestionsCmd.AddCommand(suggestionsAckCmd)
	suggestionsCmd.AddCommand(suggestionsResolveCmd)
	suggestionsCmd.AddCommand(suggestionsDismissCmd)

	suggestionsCmd.Flags().BoolVar(&suggestionsDetailed, "detailed", false, "Show reasoning, evidence, and actions for each suggestion")
}

func runSuggestionsListCommand(args []string) error {
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

	suggestions, err := st.ActiveSuggestions(context.Background(), boardID, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to list suggestions")
	}

	if len(suggestions) == 0 {
		fmt.Printf("No active suggestions for board %s.\n", boardID)
		fmt.Println("Run 'stride analyze' to refresh them.")
		return nil
	}

	fmt.Printf("Active suggestions for %s (%d):\n\n", boardID, len(suggestions))
	for i, s := range suggestions {
		printSuggestion(s, suggestionsDetailed)
		if i < len(suggestions)-1 {
			fmt.Println()
		}
	}

	return nil
}

func runSuggestionStatusCommand(id string, status coach.Status) error {
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

	if err := st.UpdateSuggestionStatus(context.Background(), id, status); err != nil {
		return errors.Wrapf(err, "failed to mark suggestion %s", status)
	}

	fmt.Printf("✓ Suggestion %s marked %s\n", id, status)
	return nil
}
