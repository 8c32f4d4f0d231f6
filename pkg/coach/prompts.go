package coach

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stride-dev/stride/pkg/forecast"
)

// SystemPromptEnhance is the system prompt for enriching a rule-based
// suggestion with provider-written detail.
const SystemPromptEnhance = `You are an experienced delivery coach advising a software team about their kanban board.

You will receive one automatically detected finding: its type, severity, the message shown to the team, and the metric evidence that triggered it.

Your role is to rewrite the finding's guidance so it is specific to the evidence:
1. Explain in plain language why these numbers matter for this team
2. Recommend 2-4 concrete actions the team can take in the next period
3. Describe the impact the team should expect if they act

Guidelines:
- Ground every statement in the provided evidence; never invent numbers
- Actions must be doable by the team itself within one period
- Keep each field to 1-3 sentences
- Do not repeat the finding's message back verbatim

You MUST respond with a JSON object containing:
- reasoning: why this finding matters, grounded in the evidence
- actions: array of action objects, each with:
    - action: the step to take
    - rationale: why this step addresses the finding
    - expected_outcome: what should improve
    - implementation_hint: a practical first move (optional)
- impact: the overall improvement to expect if the actions are taken
- confidence: your confidence in this advice as a number between 0 and 1

Respond with the JSON object only, no surrounding prose.`

// BuildEnhancementPrompt renders one suggestion as the user message.
// Evidence keys are sorted so identical suggestions always produce the
// identical prompt.
func BuildEnhancementPrompt(s *Suggestion) string {
	var sb strings.Builder

	sb.WriteString("Enhance the following coaching finding:\n\n")

	sb.WriteString("## Finding\n")
	sb.WriteString(fmt.Sprintf("**Type:** %s\n", s.Type))
	sb.WriteString(fmt.Sprintf("**Severity:** %s\n", s.Severity))
	sb.WriteString(fmt.Sprintf("**Title:** %s\n", s.Title))
	sb.WriteString(fmt.Sprintf("**Message:** %s\n", truncate(s.Message, 500)))
	sb.WriteString("\n")

	if s.Reasoning != "" {
		sb.WriteString("## Current Reasoning\n")
		sb.WriteString(truncate(s.Reasoning, 500))
		sb.WriteString("\n\n")
	}

	if len(s.Evidence) > 0 {
		sb.WriteString("## Evidence\n")
		keys := make([]string, 0, len(s.Evidence))
		for k := range s.Evidence {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, s.Evidence[k]))
		}
		sb.WriteString("\n")
	}

	if len(s.RecommendedActions) > 0 {
		sb.WriteString("## Current Recommended Actions\n")
		for _, a := range s.RecommendedActions {
			sb.WriteString(fmt.Sprintf("- %s\n", a))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Rewrite the reasoning, actions, and impact for this specific team and evidence.")

	return sb.String()
}

// SystemPromptNarrate is the system prompt for turning a stored
// projection and its open findings into a short spoken-register status
// update. Used by the streaming explain path.
const SystemPromptNarrate = `You are an experienced delivery coach summarizing a kanban board's outlook for the team.

You will receive the board's current completion forecast and the open coaching findings, with the metrics behind them.

Write a short status update in plain prose:
1. Open with the completion outlook and how much trust the numbers deserve
2. Walk through the findings in order of severity, connecting each to its evidence
3. Close with the single most useful thing the team can do this period

Guidelines:
- Ground every statement in the provided numbers; never invent data
- Three to five short paragraphs, no headings, no bullet lists
- Address the team directly and keep the tone matter-of-fact`

// BuildNarrationPrompt renders a projection and its active suggestions
// as the user message for narration.
func BuildNarrationPrompt(p *forecast.Projection, suggestions []Suggestion) string {
	var sb strings.Builder

	sb.WriteString("Summarize the delivery outlook for this board:\n\n")

	sb.WriteString("## Forecast\n")
	if p.Predictable() {
		sb.WriteString(fmt.Sprintf("**Predicted completion:** %s (%d days out)\n", p.PredictedDate.Format("2006-01-02"), p.DaysUntil))
		sb.WriteString(fmt.Sprintf("**%d%% interval:** %s to %s\n",
			int(p.ConfidenceLevel), p.LowerBound.Format("2006-01-02"), p.UpperBound.Format("2006-01-02")))
	} else {
		sb.WriteString("**Predicted completion:** unpredictable, no forward progress in the window\n")
	}
	sb.WriteString(fmt.Sprintf("**Velocity:** %.1f %s/week, stddev %.1f, CV %.0f%%, %d samples\n",
		p.AverageVelocity, p.Metric, p.StdDev, p.CV, p.SampleCount))
	sb.WriteString(fmt.Sprintf("**Trend:** %s\n", p.Trend))
	sb.WriteString(fmt.Sprintf("**Risk:** %s\n", p.RiskLevel))
	if p.TargetDate != nil {
		sb.WriteString(fmt.Sprintf("**Target:** %s, delay probability %.0f%%\n",
			p.TargetDate.Format("2006-01-02"), p.DelayProbability))
	}
	sb.WriteString("\n")

	if len(suggestions) == 0 {
		sb.WriteString("## Findings\nNone open.\n")
	} else {
		sb.WriteString("## Findings\n")
		for _, s := range suggestions {
			sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", s.Severity, s.Title, truncate(s.Message, 300)))
		}
	}

	return sb.String()
}

// truncate shortens s to maxLen characters, adding ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
