package cmd

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// boardsCmd represents the boards command
var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List known boards",
	Long: `List every board in the store with its target date and the headline of
its most recent analysis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBoardsCommand()
	},
}

func init() {
	rootCmd.AddCommand(boardsCmd)
}

func runBoardsCommand() error {
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

	boards, err := st.Boards(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list boards")
	}

	if len(boards) == 0 {
		fmt.Println("No boards yet. Load one with 'stride seed' or register it via the library API.")
		return nil
	}

	fmt.Printf("Found %d boards:\n\n", len(boards))

	for i, b := range boards {
		marker := " "
		if b.ID == cfg.Board.ID {
			marker = "*"
		}

		fmt.Printf("%s %s (%s)\n", marker, b.ID, b.Name)
		if b.TargetDate != nil {
			fmt.Printf("    Target: %s\n", b.TargetDate.Format("2006-01-02"))
		}

		proj, err := st.LatestProjection(ctx, b.ID)
		if err != nil {
			return errors.Wrapf(err, "failed to read latest projection for %s", b.ID)
		}
		if proj == nil {
			fmt.Println("    Last analysis: never")
		} else if !proj.Predictable() {
			fmt.Printf("    Last analysis: %s, completion unpredictable\n", proj.AsOf.Format("2006-01-02"))
		} else {
			fmt.Printf("    Last analysis: %s, completion %s, risk %s\n",
				proj.AsOf.Format("2006-01-02"), proj.PredictedDate.Format("2006-01-02"), proj.RiskLevel)
		}

		if i < len(boards)-1 {
			fmt.Println()
		}
	}

	if cfg.Board.ID != "" {
		fmt.Println("\n* configured default board")
	}

	return nil
}
