package cmd

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/store"
)

//go:embed seed_demo.yaml
var demoFixture []byte

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load board data from a YAML fixture",
	Long: `Load boards, members, tasks, and velocity history from a YAML fixture
into the store. Without an argument a bundled demo board is loaded.

Fixture dates are relative to the time of seeding, so fixtures never go
stale: target_in_days and due_in_days count forward from now (negative
means overdue), updated_days_ago and weeks_ago count back.

Examples:
  stride seed                      # Load the bundled demo board
  stride seed team-fixtures.yaml   # Load your own fixture
  stride seed && stride analyze demo`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return runSeedCommand(path)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedFixture is the YAML fixture shape.
type seedFixture struct {
	Boards []seedBoard `yaml:"boards"`
}

type seedBoard struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	TargetInDays *int           `yaml:"target_in_days"`
	Members      []seedMember   `yaml:"members"`
	Tasks        []seedTask     `yaml:"tasks"`
	Snapshots    []seedSnapshot `yaml:"snapshots"`
	Baseline     bool           `yaml:"baseline"`
}

type seedMember struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Skills []string `yaml:"developing_skills"`
}

type seedTask struct {
	ID             string  `yaml:"id"`
	Title          string  `yaml:"title"`
	Assignee       string  `yaml:"assignee"`
	Priority       string  `yaml:"priority"`
	Risk           string  `yaml:"risk"`
	DueInDays      *int    `yaml:"due_in_days"`
	Progress       float64 `yaml:"progress"`
	StoryPoints    float64 `yaml:"story_points"`
	Comments       int     `yaml:"comments"`
	UpdatedDaysAgo int     `yaml:"updated_days_ago"`
}

type seedSnapshot struct {
	WeeksAgo       int     `yaml:"weeks_ago"`
	TasksCompleted int     `yaml:"tasks_completed"`
	StoryPoints    float64 `yaml:"story_points"`
	ActiveMembers  int     `yaml:"active_members"`
	Quality        float64 `yaml:"quality"`
}

func runSeedCommand(path string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	data := demoFixture
	source := "bundled demo fixture"
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "failed to read fixture")
		}
		source = path
	}

	fx, err := parseFixture(data)
	if err != nil {
		return errors.Wrapf(err, "failed to parse %s", source)
	}

	st, err := openStore(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	boards, tasks, snaps, err := applyFixture(context.Background(), st, fx, time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to apply %s", source)
	}

	fmt.Printf("✓ Seeded %d boards, %d tasks, %d velocity snapshots from %s\n", boards, tasks, snaps, source)
	for _, b := range fx.Boards {
		fmt.Printf("  %s: try 'stride analyze %s'\n", b.ID, b.ID)
	}
	return nil
}

// parseFixture decodes and validates a fixture document.
func parseFixture(data []byte) (*seedFixture, error) {
	var fx seedFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, errors.Wrap(err, "invalid YAML")
	}

	if len(fx.Boards) == 0 {
		return nil, errors.New("fixture contains no boards")
	}
	for _, b := range fx.Boards {
		if b.ID == "" {
			return nil, errors.New("fixture board is missing an id")
		}
		for _, t := range b.Tasks {
			if t.ID == "" {
				return nil, errors.Newf("board %s has a task without an id", b.ID)
			}
			if t.Priority != "" && !board.Priority(t.Priority).IsValid() {
				return nil, errors.Newf("task %s has invalid priority %q", t.ID, t.Priority)
			}
			if t.Risk != "" && !board.RiskLevel(t.Risk).IsValid() {
				return nil, errors.Newf("task %s has invalid risk %q", t.ID, t.Risk)
			}
		}
	}
	return &fx, nil
}

// applyFixture writes the fixture into the store, resolving relative
// dates against now.
func applyFixture(ctx context.Context, st *store.Store, fx *seedFixture, now time.Time) (boards, tasks, snaps int, err error) {
	for _, b := range fx.Boards {
		info := store.BoardInfo{ID: b.ID, Name: b.Name}
		if b.TargetInDays != nil {
			target := now.AddDate(0, 0, *b.TargetInDays)
			info.TargetDate = &target
		}
		if err := st.UpsertBoard(ctx, info); err != nil {
			return boards, tasks, snaps, err
		}
		boards++

		members := make([]board.Member, 0, len(b.Members))
		for _, m := range b.Members {
			members = append(members, board.Member{ID: m.ID, Name: m.Name, DevelopingSkills: m.Skills})
		}
		if err := st.ReplaceMembers(ctx, b.ID, members); err != nil {
			return boards, tasks, snaps, err
		}

		boardTasks := make([]board.Task, 0, len(b.Tasks))
		for _, t := range b.Tasks {
			task := board.Task{
				ID:           t.ID,
				BoardID:      b.ID,
				Title:        t.Title,
				Assignee:     t.Assignee,
				Priority:     board.Priority(t.Priority),
				Risk:         board.RiskLevel(t.Risk),
				Progress:     t.Progress,
				StoryPoints:  t.StoryPoints,
				CommentCount: t.Comments,
				LastUpdated:  now.AddDate(0, 0, -t.UpdatedDaysAgo),
			}
			if task.Priority == "" {
				task.Priority = board.PriorityMedium
			}
			if task.Risk == "" {
				task.Risk = board.RiskLow
			}
			if t.DueInDays != nil {
				due := now.AddDate(0, 0, *t.DueInDays)
				task.DueDate = &due
			}
			boardTasks = append(boardTasks, task)
		}
		if err := st.ReplaceTasks(ctx, b.ID, boardTasks); err != nil {
			return boards, tasks, snaps, err
		}
		tasks += len(boardTasks)

		for _, s := range b.Snapshots {
			end := now.AddDate(0, 0, -7*s.WeeksAgo)
			if err := st.UpsertSnapshot(ctx, board.VelocitySnapshot{
				BoardID:              b.ID,
				PeriodStart:          end.AddDate(0, 0, -7),
				PeriodEnd:            end,
				TasksCompleted:       s.TasksCompleted,
				StoryPointsCompleted: s.StoryPoints,
				ActiveTeamMembers:    s.ActiveMembers,
				QualityScore:         s.Quality,
			}); err != nil {
				return boards, tasks, snaps, err
			}
			snaps++
		}

		if b.Baseline {
			scope, err := st.Scope(ctx, b.ID)
			if err != nil {
				return boards, tasks, snaps, err
			}
			if err := st.SetScopeBaseline(ctx, b.ID, scope); err != nil {
				return boards, tasks, snaps, err
			}
		}
	}
	return boards, tasks, snaps, nil
}
