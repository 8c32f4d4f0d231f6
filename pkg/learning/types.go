// Package learning closes the coaching feedback loop: it aggregates
// user reactions to suggestions into per-type insights, suppresses
// suggestion types a team has consistently rejected, and re-weights
// suggestion confidence toward observed usefulness.
package learning

import (
	"time"
)

// ActionTaken records what the user did with a suggestion.
type ActionTaken string

const (
	ActionAccepted      ActionTaken = "accepted"
	ActionPartially     ActionTaken = "partially"
	ActionModified      ActionTaken = "modified"
	ActionIgnored       ActionTaken = "ignored"
	ActionNotApplicable ActionTaken = "not_applicable"
)

// IsValid returns true if the action is a known value.
func (a ActionTaken) IsValid() bool {
	switch a {
	case ActionAccepted, ActionPartially, ActionModified, ActionIgnored, ActionNotApplicable:
		return true
	}
	return false
}

// CountsAsAction returns true when the user acted on the suggestion in
// some form. Ignored and not-applicable do not count toward the action
// rate.
func (a ActionTaken) CountsAsAction() bool {
	switch a {
	case ActionAccepted, ActionPartially, ActionModified:
		return true
	}
	return false
}

// FeedbackRecord is one user's reaction to one suggestion. Records are
// append-only; aggregates are always recomputed from the full set.
type FeedbackRecord struct {
	ID             string
	SuggestionID   string
	SuggestionType string
	WasHelpful     bool
	ActionTaken    ActionTaken
	RelevanceScore int // 1-5
	Comment        string
	CreatedAt      time.Time
}

// LearnedInsight is the aggregated verdict on one suggestion type.
// Insights are only materialized for clearly positive or clearly
// negative aggregates; a type with moderate feedback has no insight row.
type LearnedInsight struct {
	SuggestionType        string
	Verdict               string // "positive" or "negative"
	FeedbackCount         int
	HelpfulRate           float64 // 0-1
	ActionRate            float64 // 0-1
	AvgRelevance          float64 // 1-5
	RecommendedConfidence float64 // 0.1-0.95
	Effectiveness         float64 // 0-100
	Active                bool
	UpdatedAt             time.Time
}

// SuppressionEligible returns true when the insight meets every
// suppression criterion: a large enough sample with both low helpful
// and low action rates.
func (i LearnedInsight) SuppressionEligible() bool {
	return i.Active &&
		i.FeedbackCount >= SuppressionMinSample &&
		i.HelpfulRate < SuppressionHelpfulBelow &&
		i.ActionRate < SuppressionActionBelow
}
