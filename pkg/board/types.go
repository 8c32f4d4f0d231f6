// Package board defines the project-board data the analysis pipeline
// consumes: velocity snapshots, scope metrics, tasks, and team members,
// plus the provider interfaces a host system implements to supply them.
package board

import (
	"math"
	"time"
)

// Priority is the task priority ladder.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid returns true if the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Weight returns a numeric weight for ordering, higher is more urgent.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// IsElevated returns true for high or critical priority.
func (p Priority) IsElevated() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// RiskLevel classifies how likely a task is to slip.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IsValid returns true if the risk level is a known value.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// IsElevated returns true for high or critical risk.
func (r RiskLevel) IsElevated() bool {
	return r == RiskHigh || r == RiskCritical
}

// Task is one active work item on a board. Hosts map their own task
// records onto this shape; only fields the detectors read are included.
type Task struct {
	ID           string
	BoardID      string
	Title        string
	Assignee     string // empty when unassigned
	Priority     Priority
	Risk         RiskLevel
	DueDate      *time.Time // nil when no due date is set
	Progress     float64    // 0-100
	StoryPoints  float64
	CommentCount int
	LastUpdated  time.Time
}

// InFlight returns true when the task has been started but not finished.
func (t Task) InFlight() bool {
	return t.Progress > 0 && t.Progress < 100
}

// Member is a team member assigned to a board.
type Member struct {
	ID               string
	Name             string
	DevelopingSkills []string // skill tags the member is actively growing
}

// VelocitySnapshot is one period's delivery record for a board.
// Snapshots are keyed by period bounds; re-recording the same period
// replaces the previous values (an upsert in the reference store).
type VelocitySnapshot struct {
	BoardID              string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	TasksCompleted       int
	StoryPointsCompleted float64
	ActiveTeamMembers    int
	QualityScore         float64 // 0-100, inverse of the reopened-task rate
}

// Metric selects which completed-work series drives the forecast.
type Metric string

const (
	MetricTasks  Metric = "tasks"
	MetricPoints Metric = "points"
)

// Velocity returns the snapshot's completed work in the given metric.
func (s VelocitySnapshot) Velocity(m Metric) float64 {
	if m == MetricPoints {
		return sanitize(s.StoryPointsCompleted)
	}
	return sanitize(float64(s.TasksCompleted))
}

// ScopeMetrics is the current task inventory for a board.
type ScopeMetrics struct {
	TotalTasks           int
	CompletedTasks       int
	RemainingTasks       int
	TotalStoryPoints     float64
	CompletedStoryPoints float64
}

// Consistent returns true when completed plus remaining equals total.
func (s ScopeMetrics) Consistent() bool {
	return s.CompletedTasks+s.RemainingTasks == s.TotalTasks
}

// CompletionRate returns the percentage of tasks completed.
func (s ScopeMetrics) CompletionRate() float64 {
	if s.TotalTasks == 0 {
		return 0
	}
	return float64(s.CompletedTasks) / float64(s.TotalTasks) * 100
}

// Remaining returns the remaining work in the given metric.
func (s ScopeMetrics) Remaining(m Metric) float64 {
	if m == MetricPoints {
		return sanitize(s.TotalStoryPoints - s.CompletedStoryPoints)
	}
	return sanitize(float64(s.RemainingTasks))
}

// GrowthPercent returns the task-count growth of s over a baseline,
// as a percentage of the baseline. A zero baseline yields 0.
func (s ScopeMetrics) GrowthPercent(baseline ScopeMetrics) float64 {
	if baseline.TotalTasks <= 0 {
		return 0
	}
	return float64(s.TotalTasks-baseline.TotalTasks) / float64(baseline.TotalTasks) * 100
}

// State is an immutable snapshot of everything one analysis pass reads.
// Detectors and the forecaster never reach back to the providers; a pass
// over an unchanged State is fully reproducible.
type State struct {
	BoardID   string
	BoardName string
	AsOf      time.Time
	Snapshots []VelocitySnapshot // ordered oldest to newest
	Tasks     []Task             // active tasks only
	Members   []Member
	Scope     ScopeMetrics
	Baseline  *ScopeMetrics // scope at period start, nil when unknown
}

// sanitize maps NaN and infinities to zero so a missing or null numeric
// field never propagates through the statistics.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
