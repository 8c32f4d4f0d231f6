// Package coach runs a fixed battery of rule detectors over a board
// state and emits coaching suggestions, optionally enriched by an AI
// provider. Detectors are independent, use fixed thresholds, and emit
// in battery order; the consumer sorts by severity for display.
package coach

import (
	"time"

	"github.com/google/uuid"
)

// SuggestionType is the closed enumeration of detector outputs.
type SuggestionType string

const (
	TypeGatherMoreData    SuggestionType = "gather_more_data"
	TypeVelocityDrop      SuggestionType = "velocity_drop"
	TypeResourceOverload  SuggestionType = "resource_overload"
	TypeRiskConvergence   SuggestionType = "risk_convergence"
	TypeSkillOpportunity  SuggestionType = "skill_opportunity"
	TypeScopeCreep        SuggestionType = "scope_creep"
	TypeDeadlineRisk      SuggestionType = "deadline_risk"
	TypeTeamBurnout       SuggestionType = "team_burnout"
	TypeQualityIssue      SuggestionType = "quality_issue"
	TypeDependencyBlocker SuggestionType = "dependency_blocker"
	TypeCommunicationGap  SuggestionType = "communication_gap"
)

// SuggestionTypes lists every type in battery order.
var SuggestionTypes = []SuggestionType{
	TypeGatherMoreData,
	TypeVelocityDrop,
	TypeResourceOverload,
	TypeRiskConvergence,
	TypeSkillOpportunity,
	TypeScopeCreep,
	TypeDeadlineRisk,
	TypeTeamBurnout,
	TypeQualityIssue,
	TypeDependencyBlocker,
	TypeCommunicationGap,
}

// IsValid returns true if the type is a known value.
func (t SuggestionType) IsValid() bool {
	for _, known := range SuggestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity grades how urgently a suggestion needs attention.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns a numeric weight for ordering, higher is more urgent.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Status tracks a suggestion's lifecycle. The engine only ever emits
// active suggestions; later transitions belong to the hosting system.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusDismissed    Status = "dismissed"
)

// GenerationMethod records whether a suggestion is pure rule output or
// was enriched by an AI provider.
type GenerationMethod string

const (
	MethodRule   GenerationMethod = "rule"
	MethodHybrid GenerationMethod = "hybrid"
)

// DefaultExpiry is how long an emitted suggestion stays actionable.
const DefaultExpiry = 7 * 24 * time.Hour

// Suggestion is one coaching engine output. The engine never mutates a
// suggestion after emission; Reasoning, RecommendedActions, and
// ExpectedImpact are guaranteed non-empty on every emitted suggestion,
// whether or not AI enhancement ran or succeeded.
type Suggestion struct {
	ID                 string            `json:"id"`
	BoardID            string            `json:"board_id"`
	Type               SuggestionType    `json:"type"`
	Severity           Severity          `json:"severity"`
	Title              string            `json:"title"`
	Message            string            `json:"message"`
	Reasoning          string            `json:"reasoning"`
	RecommendedActions []string          `json:"recommended_actions"`
	ExpectedImpact     string            `json:"expected_impact"`
	ConfidenceScore    float64           `json:"confidence_score"` // 0-1
	Evidence           map[string]string `json:"evidence,omitempty"`
	GenerationMethod   GenerationMethod  `json:"generation_method"`
	Status             Status            `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
	ExpiresAt          time.Time         `json:"expires_at"`
}

// Expired reports whether the suggestion has aged out at the given time.
func (s Suggestion) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// newSuggestion builds the common scaffolding for a detector emission.
// Timestamps derive from the analysis time so a re-run over the same
// state produces the same suggestion content.
func newSuggestion(boardID string, t SuggestionType, sev Severity, confidence float64, asOf time.Time) Suggestion {
	return Suggestion{
		ID:               uuid.NewString(),
		BoardID:          boardID,
		Type:             t,
		Severity:         sev,
		ConfidenceScore:  confidence,
		Evidence:         map[string]string{},
		GenerationMethod: MethodRule,
		Status:           StatusActive,
		CreatedAt:        asOf,
		ExpiresAt:        asOf.Add(DefaultExpiry),
	}
}
