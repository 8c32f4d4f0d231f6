package board

import (
	"context"
	"sort"
	"time"

	strideerrors "github.com/stride-dev/stride/pkg/errors"
)

// SnapshotSource supplies historical velocity snapshots for a board,
// ordered oldest to newest, at most window entries.
type SnapshotSource interface {
	VelocitySnapshots(ctx context.Context, boardID string, window int) ([]VelocitySnapshot, error)
}

// TaskSource supplies the board's active (not done, not archived) tasks.
type TaskSource interface {
	ActiveTasks(ctx context.Context, boardID string) ([]Task, error)
}

// MemberSource supplies the board's team members.
type MemberSource interface {
	Members(ctx context.Context, boardID string) ([]Member, error)
}

// ScopeSource supplies the current scope metrics and, when the host
// tracks one, the scope baseline recorded at period start.
type ScopeSource interface {
	Scope(ctx context.Context, boardID string) (ScopeMetrics, error)
	ScopeBaseline(ctx context.Context, boardID string) (*ScopeMetrics, error)
}

// Sources bundles the providers one analysis pass reads from.
// Tasks and Members may be nil; detectors that need them simply
// see empty inputs.
type Sources struct {
	Snapshots SnapshotSource
	Tasks     TaskSource
	Members   MemberSource
	Scope     ScopeSource
}

// Collect assembles an immutable State for one analysis pass.
// Snapshot numerics are normalized (NaN/Inf to zero) and ordered by
// period start so downstream statistics see clean, sorted input.
func Collect(ctx context.Context, src Sources, boardID string, window int, asOf time.Time) (State, error) {
	state := State{BoardID: boardID, AsOf: asOf}

	if src.Snapshots == nil {
		return state, strideerrors.NewDataError("snapshots", boardID, "no snapshot source configured")
	}
	if src.Scope == nil {
		return state, strideerrors.NewDataError("scope", boardID, "no scope source configured")
	}

	snaps, err := src.Snapshots.VelocitySnapshots(ctx, boardID, window)
	if err != nil {
		return state, strideerrors.NewDataErrorWithCause("snapshots", boardID, "loading velocity snapshots", err)
	}
	state.Snapshots = NormalizeSnapshots(snaps)

	scope, err := src.Scope.Scope(ctx, boardID)
	if err != nil {
		return state, strideerrors.NewDataErrorWithCause("scope", boardID, "loading scope metrics", err)
	}
	state.Scope = scope

	baseline, err := src.Scope.ScopeBaseline(ctx, boardID)
	if err != nil {
		return state, strideerrors.NewDataErrorWithCause("scope", boardID, "loading scope baseline", err)
	}
	state.Baseline = baseline

	if src.Tasks != nil {
		tasks, err := src.Tasks.ActiveTasks(ctx, boardID)
		if err != nil {
			return state, strideerrors.NewDataErrorWithCause("tasks", boardID, "loading active tasks", err)
		}
		state.Tasks = tasks
	}

	if src.Members != nil {
		members, err := src.Members.Members(ctx, boardID)
		if err != nil {
			return state, strideerrors.NewDataErrorWithCause("members", boardID, "loading members", err)
		}
		state.Members = members
	}

	return state, nil
}

// NormalizeSnapshots sanitizes snapshot numerics and sorts by period
// start, oldest first. The input slice is not modified.
func NormalizeSnapshots(snaps []VelocitySnapshot) []VelocitySnapshot {
	if len(snaps) == 0 {
		return nil
	}
	out := make([]VelocitySnapshot, len(snaps))
	copy(out, snaps)
	for i := range out {
		out[i].StoryPointsCompleted = sanitize(out[i].StoryPointsCompleted)
		out[i].QualityScore = sanitize(out[i].QualityScore)
		if out[i].TasksCompleted < 0 {
			out[i].TasksCompleted = 0
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}
