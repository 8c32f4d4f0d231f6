package coach

import (
	"fmt"
	"sort"
	"time"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/forecast"
)

// Detector thresholds. Tuning happens through the feedback learner's
// confidence adjustment, never by moving these trigger lines per
// board.
const (
	velocityDropMediumPct = 15.0
	velocityDropHighPct   = 30.0

	overloadTaskLimit     = 10
	overloadHighPriLimit  = 5
	overloadTaskSevere    = 15
	overloadHighPriSevere = 7

	riskClusterMin     = 3
	riskHorizonDays    = 14
	skillTaskCeiling   = 6
	scopeCreepPct      = 15.0
	scopeCreepHighPct  = 25.0
	deadlineDelayPct   = 30.0
	burnoutDropPct     = 15.0
	burnoutQualityMax  = 90.0
	qualityIssueMax    = 85.0
	qualityIssueSevere = 75.0
	blockerStaleDays   = 5
	blockerClusterMin  = 3
	quietTaskDays      = 7
	quietClusterMin    = 5
)

// Hand-tuned base confidence per detector.
const (
	confGatherMoreData    = 0.99
	confVelocityDrop      = 0.85
	confResourceOverload  = 0.90
	confRiskConvergence   = 0.95
	confSkillOpportunity  = 0.65
	confScopeCreep        = 0.80
	confDeadlineRisk      = 0.90
	confTeamBurnout       = 0.75
	confQualityIssue      = 0.85
	confDependencyBlocker = 0.80
	confCommunicationGap  = 0.70
)

// checkGatherMoreData fires when the board has too little velocity
// history for any velocity-based detector or forecast to be meaningful.
func (e *Engine) checkGatherMoreData(state board.State, _ *forecast.Projection) []Suggestion {
	if len(state.Snapshots) >= forecast.MinVelocitySamples {
		return nil
	}

	s := newSuggestion(state.BoardID, TypeGatherMoreData, SeverityInfo, confGatherMoreData, state.AsOf)
	s.Title = "Not enough velocity history yet"
	s.Message = fmt.Sprintf("Only %d velocity period(s) recorded; at least %d are needed before trends and forecasts become reliable.",
		len(state.Snapshots), forecast.MinVelocitySamples)
	s.Reasoning = "Velocity statistics on fewer than three periods swing wildly with every new data point, so the other detectors and the forecaster stay quiet until the history fills in."
	s.RecommendedActions = []string{
		"Record a velocity snapshot at the end of every period",
		"Backfill recent periods from the board history if the data exists",
	}
	s.ExpectedImpact = "Unlocks trend detection and completion forecasting"
	s.Evidence["snapshot_count"] = fmt.Sprintf("%d", len(state.Snapshots))
	return []Suggestion{s}
}

// checkVelocityDrop compares the latest period's completions against
// the mean of the prior two periods.
func (e *Engine) checkVelocityDrop(state board.State, _ *forecast.Projection) []Suggestion {
	snaps := state.Snapshots
	if len(snaps) < 3 {
		return nil
	}

	latest := snaps[len(snaps)-1].Velocity(board.MetricTasks)
	prior := (snaps[len(snaps)-2].Velocity(board.MetricTasks) + snaps[len(snaps)-3].Velocity(board.MetricTasks)) / 2
	if prior <= 0 {
		return nil
	}

	dropPct := (prior - latest) / prior * 100
	if dropPct <= velocityDropMediumPct {
		return nil
	}

	severity := SeverityMedium
	if dropPct > velocityDropHighPct {
		severity = SeverityHigh
	}

	s := newSuggestion(state.BoardID, TypeVelocityDrop, severity, confVelocityDrop, state.AsOf)
	s.Title = fmt.Sprintf("Velocity dropped %.0f%%", dropPct)
	s.Message = fmt.Sprintf("The team completed %.0f task(s) last period against a prior average of %.1f.", latest, prior)
	s.Reasoning = "A sustained completion-rate drop of this size usually points to unplanned work, blockers, or absences rather than normal variance."
	s.RecommendedActions = []string{
		"Ask the team what changed in the last period",
		"Check for unplanned work or interruptions pulled into the period",
		"Verify nobody is blocked waiting on an external dependency",
	}
	s.ExpectedImpact = "Restoring the prior completion rate protects the projected finish date"
	s.Evidence["latest_completed"] = fmt.Sprintf("%.0f", latest)
	s.Evidence["prior_average"] = fmt.Sprintf("%.1f", prior)
	s.Evidence["drop_percent"] = fmt.Sprintf("%.1f", dropPct)
	return []Suggestion{s}
}

// checkResourceOverload flags assignees carrying too many active tasks.
// One suggestion per overloaded person, in assignee order.
func (e *Engine) checkResourceOverload(state board.State, _ *forecast.Projection) []Suggestion {
	type load struct {
		total   int
		highPri int
	}
	loads := map[string]*load{}
	for _, t := range state.Tasks {
		if t.Assignee == "" {
			continue
		}
		l := loads[t.Assignee]
		if l == nil {
			l = &load{}
			loads[t.Assignee] = l
		}
		l.total++
		if t.Priority.IsElevated() {
			l.highPri++
		}
	}

	assignees := make([]string, 0, len(loads))
	for name := range loads {
		assignees = append(assignees, name)
	}
	sort.Strings(assignees)

	var out []Suggestion
	for _, name := range assignees {
		l := loads[name]
		if l.total <= overloadTaskLimit && l.highPri <= overloadHighPriLimit {
			continue
		}

		severity := SeverityMedium
		if l.total > overloadTaskSevere || l.highPri > overloadHighPriSevere {
			severity = SeverityHigh
		}

		s := newSuggestion(state.BoardID, TypeResourceOverload, severity, confResourceOverload, state.AsOf)
		s.Title = fmt.Sprintf("%s is overloaded", name)
		s.Message = fmt.Sprintf("%s has %d active task(s), %d of them high priority.", name, l.total, l.highPri)
		s.Reasoning = "Work parked on one person beyond their parallel capacity stalls in progress; throughput improves when the excess moves to teammates with slack."
		s.RecommendedActions = []string{
			fmt.Sprintf("Reassign some of %s's tasks to teammates with capacity", name),
			"Defer the lowest-priority items to the next period",
			"Check whether any of the assigned tasks are actually blocked, not in progress",
		}
		s.ExpectedImpact = "Balanced assignments shorten the longest individual queue"
		s.Evidence["assignee"] = name
		s.Evidence["active_tasks"] = fmt.Sprintf("%d", l.total)
		s.Evidence["high_priority_tasks"] = fmt.Sprintf("%d", l.highPri)
		out = append(out, s)
	}
	return out
}

// checkRiskConvergence looks for a pile-up of high and critical risk
// tasks all due in the same calendar week within the next two weeks.
// At most one suggestion is emitted, for the largest cluster.
func (e *Engine) checkRiskConvergence(state board.State, _ *forecast.Projection) []Suggestion {
	horizon := state.AsOf.AddDate(0, 0, riskHorizonDays)

	clusters := map[string][]board.Task{}
	for _, t := range state.Tasks {
		if !t.Risk.IsElevated() || t.DueDate == nil {
			continue
		}
		due := *t.DueDate
		if due.Before(state.AsOf) || due.After(horizon) {
			continue
		}
		year, week := due.ISOWeek()
		key := fmt.Sprintf("%04d-W%02d", year, week)
		clusters[key] = append(clusters[key], t)
	}

	// Deterministic pick: largest cluster, earliest week on ties.
	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var worstKey string
	for _, k := range keys {
		if len(clusters[k]) < riskClusterMin {
			continue
		}
		if worstKey == "" || len(clusters[k]) > len(clusters[worstKey]) {
			worstKey = k
		}
	}
	if worstKey == "" {
		return nil
	}

	cluster := clusters[worstKey]
	s := newSuggestion(state.BoardID, TypeRiskConvergence, SeverityCritical, confRiskConvergence, state.AsOf)
	s.Title = fmt.Sprintf("%d high-risk tasks converge on week %s", len(cluster), worstKey)
	s.Message = fmt.Sprintf("%d task(s) rated high or critical risk are all due in calendar week %s.", len(cluster), worstKey)
	s.Reasoning = "Risky tasks landing in the same week leave no slack to absorb a single slip; one miss cascades into the rest."
	s.RecommendedActions = []string{
		"Stagger the due dates so the risky tasks do not land together",
		"Pull the most uncertain task forward to surface problems early",
		"Line up a contingency owner for each task in the cluster",
	}
	s.ExpectedImpact = "Spreading the risk window prevents a single slip from cascading"
	s.Evidence["cluster_week"] = worstKey
	s.Evidence["cluster_size"] = fmt.Sprintf("%d", len(cluster))
	for i, t := range cluster {
		if i == 3 {
			break
		}
		s.Evidence[fmt.Sprintf("task_%d", i+1)] = t.Title
	}
	return []Suggestion{s}
}

// checkSkillOpportunity finds members with declared developing skills
// and spare capacity. One suggestion per member, in roster order.
func (e *Engine) checkSkillOpportunity(state board.State, _ *forecast.Projection) []Suggestion {
	counts := map[string]int{}
	for _, t := range state.Tasks {
		if t.Assignee != "" {
			counts[t.Assignee]++
		}
	}

	var out []Suggestion
	for _, m := range state.Members {
		if len(m.DevelopingSkills) == 0 || counts[m.Name] >= skillTaskCeiling {
			continue
		}

		s := newSuggestion(state.BoardID, TypeSkillOpportunity, SeverityLow, confSkillOpportunity, state.AsOf)
		s.Title = fmt.Sprintf("Growth opportunity for %s", m.Name)
		s.Message = fmt.Sprintf("%s is developing %s and currently has %d active task(s).",
			m.Name, joinSkills(m.DevelopingSkills), counts[m.Name])
		s.Reasoning = "Spare capacity on a member with declared growth areas is the cheapest moment to assign stretch work; it costs nothing now and compounds later."
		s.RecommendedActions = []string{
			fmt.Sprintf("Assign %s a task that exercises %s", m.Name, joinSkills(m.DevelopingSkills)),
			"Pair them with the current owner of that area for the first task",
		}
		s.ExpectedImpact = "Broader skill coverage reduces single-person bottlenecks"
		s.Evidence["member"] = m.Name
		s.Evidence["developing_skills"] = joinSkills(m.DevelopingSkills)
		s.Evidence["active_tasks"] = fmt.Sprintf("%d", counts[m.Name])
		out = append(out, s)
	}
	return out
}

// checkScopeCreep compares current scope against the recorded baseline.
func (e *Engine) checkScopeCreep(state board.State, _ *forecast.Projection) []Suggestion {
	if state.Baseline == nil || state.Baseline.TotalTasks <= 0 {
		return nil
	}

	growth := state.Scope.GrowthPercent(*state.Baseline)
	if growth <= scopeCreepPct {
		return nil
	}

	severity := SeverityMedium
	if growth > scopeCreepHighPct {
		severity = SeverityHigh
	}

	s := newSuggestion(state.BoardID, TypeScopeCreep, severity, confScopeCreep, state.AsOf)
	s.Title = fmt.Sprintf("Scope grew %.0f%% over baseline", growth)
	s.Message = fmt.Sprintf("The board now holds %d task(s) against a baseline of %d.",
		state.Scope.TotalTasks, state.Baseline.TotalTasks)
	s.Reasoning = "Unreviewed scope growth silently pushes out the completion date; each added task costs a slot the original plan never budgeted."
	s.RecommendedActions = []string{
		"Review the tasks added since the baseline and confirm each is in scope",
		"Move nice-to-have additions to a follow-up milestone",
		"Re-baseline deliberately if the growth is accepted",
	}
	s.ExpectedImpact = "Holding the line on scope keeps the original completion date reachable"
	s.Evidence["baseline_tasks"] = fmt.Sprintf("%d", state.Baseline.TotalTasks)
	s.Evidence["current_tasks"] = fmt.Sprintf("%d", state.Scope.TotalTasks)
	s.Evidence["growth_percent"] = fmt.Sprintf("%.1f", growth)
	return []Suggestion{s}
}

// checkDeadlineRisk reads the latest projection's verdict on the
// target date.
func (e *Engine) checkDeadlineRisk(state board.State, proj *forecast.Projection) []Suggestion {
	if proj == nil || proj.TargetDate == nil {
		return nil
	}
	if proj.WillMeetTarget || proj.DelayProbability <= deadlineDelayPct {
		return nil
	}

	s := newSuggestion(state.BoardID, TypeDeadlineRisk, SeverityCritical, confDeadlineRisk, state.AsOf)
	s.Title = "Target date at risk"
	s.Message = fmt.Sprintf("The forecast predicts completion on %s, past the %s target, with a %.0f%% delay probability.",
		proj.PredictedDate.Format("2006-01-02"), proj.TargetDate.Format("2006-01-02"), proj.DelayProbability)
	s.Reasoning = "At the current completion rate the remaining work does not fit before the target; without a scope or capacity change the date will slip."
	s.RecommendedActions = []string{
		"Cut or defer the lowest-value remaining tasks",
		"Confirm the target date still matters to its stakeholders",
		"Add capacity to the critical path if the date is immovable",
	}
	s.ExpectedImpact = "Acting now preserves the option to hit the target; waiting removes it"
	s.Evidence["predicted_date"] = proj.PredictedDate.Format("2006-01-02")
	s.Evidence["target_date"] = proj.TargetDate.Format("2006-01-02")
	s.Evidence["delay_probability"] = fmt.Sprintf("%.0f", proj.DelayProbability)
	return []Suggestion{s}
}

// checkTeamBurnout pairs a velocity decline with a quality slide, the
// classic signature of a team running too hot.
func (e *Engine) checkTeamBurnout(state board.State, _ *forecast.Projection) []Suggestion {
	snaps := state.Snapshots
	if len(snaps) < 3 {
		return nil
	}

	latest := snaps[len(snaps)-1]
	prior := (snaps[len(snaps)-2].Velocity(board.MetricTasks) + snaps[len(snaps)-3].Velocity(board.MetricTasks)) / 2
	if prior <= 0 {
		return nil
	}

	dropPct := (prior - latest.Velocity(board.MetricTasks)) / prior * 100
	if dropPct < burnoutDropPct || latest.QualityScore >= burnoutQualityMax {
		return nil
	}

	s := newSuggestion(state.BoardID, TypeTeamBurnout, SeverityHigh, confTeamBurnout, state.AsOf)
	s.Title = "Possible team burnout"
	s.Message = fmt.Sprintf("Velocity fell %.0f%% while quality dropped to %.0f.", dropPct, latest.QualityScore)
	s.Reasoning = "Output and quality falling together is the pattern of a tired team, not a planning problem; pushing harder makes both worse."
	s.RecommendedActions = []string{
		"Reduce the next period's committed load",
		"Check in individually on workload and stress",
		"Clear recurring interruptions off the team's calendar",
	}
	s.ExpectedImpact = "A lighter period now avoids a longer productivity trough later"
	s.Evidence["velocity_drop_percent"] = fmt.Sprintf("%.1f", dropPct)
	s.Evidence["quality_score"] = fmt.Sprintf("%.0f", latest.QualityScore)
	return []Suggestion{s}
}

// checkQualityIssue reads the latest period's quality score.
func (e *Engine) checkQualityIssue(state board.State, _ *forecast.Projection) []Suggestion {
	if len(state.Snapshots) == 0 {
		return nil
	}

	quality := state.Snapshots[len(state.Snapshots)-1].QualityScore
	if quality >= qualityIssueMax {
		return nil
	}

	severity := SeverityMedium
	if quality < qualityIssueSevere {
		severity = SeverityHigh
	}

	s := newSuggestion(state.BoardID, TypeQualityIssue, severity, confQualityIssue, state.AsOf)
	s.Title = fmt.Sprintf("Quality score fell to %.0f", quality)
	s.Message = fmt.Sprintf("The latest period's quality score is %.0f, driven by reopened tasks.", quality)
	s.Reasoning = "Reopened work is paid for twice; a falling quality score means completion numbers are overstating real progress."
	s.RecommendedActions = []string{
		"Review the recently reopened tasks for a common cause",
		"Tighten the definition of done before tasks are marked complete",
		"Add a review step for the task categories that keep reopening",
	}
	s.ExpectedImpact = "Fewer reopens converts recorded velocity into real progress"
	s.Evidence["quality_score"] = fmt.Sprintf("%.0f", quality)
	return []Suggestion{s}
}

// checkDependencyBlocker counts started tasks that have not moved in
// five or more days.
func (e *Engine) checkDependencyBlocker(state board.State, _ *forecast.Projection) []Suggestion {
	stale := staleSince(state.Tasks, state.AsOf, blockerStaleDays*24*time.Hour, func(t board.Task) bool {
		return t.InFlight()
	})
	if len(stale) < blockerClusterMin {
		return nil
	}

	s := newSuggestion(state.BoardID, TypeDependencyBlocker, SeverityMedium, confDependencyBlocker, state.AsOf)
	s.Title = fmt.Sprintf("%d started tasks have stalled", len(stale))
	s.Message = fmt.Sprintf("%d task(s) are partially complete but have not been updated in %d or more days.",
		len(stale), blockerStaleDays)
	s.Reasoning = "Several started-but-frozen tasks usually share a hidden dependency; finding it unblocks them all at once."
	s.RecommendedActions = []string{
		"Ask each stalled task's owner what they are waiting on",
		"Escalate any shared external dependency",
		"Move genuinely blocked tasks to a blocked column so the board reflects reality",
	}
	s.ExpectedImpact = "Unblocking stalled work recovers progress already paid for"
	s.Evidence["stalled_count"] = fmt.Sprintf("%d", len(stale))
	for i, t := range stale {
		if i == 3 {
			break
		}
		s.Evidence[fmt.Sprintf("task_%d", i+1)] = t.Title
	}
	return []Suggestion{s}
}

// checkCommunicationGap counts active tasks with no discussion and no
// recent update.
func (e *Engine) checkCommunicationGap(state board.State, _ *forecast.Projection) []Suggestion {
	quiet := staleSince(state.Tasks, state.AsOf, quietTaskDays*24*time.Hour, func(t board.Task) bool {
		return t.CommentCount == 0
	})
	if len(quiet) < quietClusterMin {
		return nil
	}

	s := newSuggestion(state.BoardID, TypeCommunicationGap, SeverityMedium, confCommunicationGap, state.AsOf)
	s.Title = fmt.Sprintf("%d tasks are silent", len(quiet))
	s.Message = fmt.Sprintf("%d active task(s) have no comments and no update in the last %d days.",
		len(quiet), quietTaskDays)
	s.Reasoning = "Tasks nobody writes about are tasks nobody can pick up; silent work concentrates knowledge in one head."
	s.RecommendedActions = []string{
		"Ask owners to post a one-line status on each silent task",
		"Raise the quiet tasks in the next standup",
	}
	s.ExpectedImpact = "Visible status keeps work transferable and surfaces problems earlier"
	s.Evidence["silent_count"] = fmt.Sprintf("%d", len(quiet))
	return []Suggestion{s}
}

// staleSince returns the tasks passing the filter whose last update is
// at least age before asOf, preserving input order.
func staleSince(tasks []board.Task, asOf time.Time, age time.Duration, filter func(board.Task) bool) []board.Task {
	var out []board.Task
	cutoff := asOf.Add(-age)
	for _, t := range tasks {
		if !filter(t) {
			continue
		}
		if t.LastUpdated.IsZero() || t.LastUpdated.After(cutoff) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func joinSkills(skills []string) string {
	switch len(skills) {
	case 0:
		return ""
	case 1:
		return skills[0]
	case 2:
		return skills[0] + " and " + skills[1]
	default:
		joined := ""
		for i, s := range skills[:len(skills)-1] {
			if i > 0 {
				joined += ", "
			}
			joined += s
		}
		return joined + ", and " + skills[len(skills)-1]
	}
}
