package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/pkg/ai"
	"github.com/stride-dev/stride/pkg/coach"
)

// explainCmd represents the explain command
var explainCmd = &cobra.Command{
	Use:   "explain [board]",
	Short: "Narrate the latest analysis in plain language",
	Long: `Ask the configured AI provider to narrate the board's most recent
projection and open suggestions as a short status update, streamed as
it is written.

Requires ai.enabled in config and a stored analysis; run
'stride analyze' first.

Examples:
  stride explain
  stride explain platform-q3`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExplainCommand(args)
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplainCommand(args []string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if !cfg.AI.Enabled {
		return errors.New("AI is not enabled: set ai.enabled = true and configure a provider (see 'stride config')")
	}

	boardID, err := resolveBoard(cfg, args)
	if err != nil {
		return err
	}

	provider, err := ai.NewProvider(&cfg.AI, verbose)
	if err != nil {
		return errors.Wrap(err, "failed to initialize AI provider")
	}
	if !provider.IsAvailable() {
		return errors.Newf("AI provider %s is not available (missing key or unreachable)", provider.Name())
	}

	st, err := openStore(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	ctx := context.Background()

	proj, err := st.LatestProjection(ctx, boardID)
	if err != nil {
		return errors.Wrap(err, "failed to load latest projection")
	}
	if proj == nil {
		return errors.Newf("no analysis stored for board %q: run 'stride analyze %s' first", boardID, boardID)
	}

	suggestions, err := st.ActiveSuggestions(ctx, boardID, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to load suggestions")
	}

	messages := []ai.Message{
		{Role: "system", Content: coach.SystemPromptNarrate},
		{Role: "user", Content: coach.BuildNarrationPrompt(proj, suggestions)},
	}

	chunks, err := provider.StreamChat(ctx, messages)
	if err != nil {
		return errors.Wrap(err, "failed to start narration")
	}

	fmt.Printf("Board %s as of %s:\n\n", boardID, proj.AsOf.Format("2006-01-02 15:04"))

	for chunk := range chunks {
		if chunk.Error != nil {
			return errors.Wrap(chunk.Error, "narration interrupted")
		}
		fmt.Print(chunk.Content)
		if chunk.Done {
			break
		}
	}
	fmt.Println()

	return nil
}
