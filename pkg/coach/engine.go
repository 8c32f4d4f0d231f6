package coach

import (
	"context"
	"log/slog"

	"github.com/stride-dev/stride/pkg/board"
	"github.com/stride-dev/stride/pkg/forecast"
)

// Learner is the feedback loop the engine consults around each
// detector: a gate before it runs and a confidence blend on whatever
// it emits. *learning.Learner satisfies it.
type Learner interface {
	ShouldGenerate(ctx context.Context, suggestionType string) bool
	AdjustConfidence(ctx context.Context, suggestionType string, base float64) float64
}

// Engine runs the detector battery over one board state.
type Engine struct {
	learner  Learner
	enhancer *Enhancer
	logger   *slog.Logger
}

// NewEngine creates an Engine. All three collaborators may be nil: a
// nil learner disables feedback gating, a nil enhancer yields
// rule-only suggestions.
func NewEngine(learner Learner, enhancer *Enhancer, logger *slog.Logger) *Engine {
	return &Engine{learner: learner, enhancer: enhancer, logger: logger}
}

type detector struct {
	Type  SuggestionType
	check func(board.State, *forecast.Projection) []Suggestion
}

// battery returns the detectors in their fixed evaluation order.
func (e *Engine) battery() []detector {
	return []detector{
		{TypeGatherMoreData, e.checkGatherMoreData},
		{TypeVelocityDrop, e.checkVelocityDrop},
		{TypeResourceOverload, e.checkResourceOverload},
		{TypeRiskConvergence, e.checkRiskConvergence},
		{TypeSkillOpportunity, e.checkSkillOpportunity},
		{TypeScopeCreep, e.checkScopeCreep},
		{TypeDeadlineRisk, e.checkDeadlineRisk},
		{TypeTeamBurnout, e.checkTeamBurnout},
		{TypeQualityIssue, e.checkQualityIssue},
		{TypeDependencyBlocker, e.checkDependencyBlocker},
		{TypeCommunicationGap, e.checkCommunicationGap},
	}
}

// Analyze runs every detector over the state and the latest projection
// (nil when no forecast exists) and returns the surviving suggestions
// in battery order. Each detector is independent: the learner gates
// whole types, adjusts confidence per suggestion, and the enhancer
// decorates each suggestion in isolation. The only error is context
// cancellation; partial results are returned alongside it.
func (e *Engine) Analyze(ctx context.Context, state board.State, proj *forecast.Projection) ([]Suggestion, error) {
	suggestions := make([]Suggestion, 0, 8)
	for _, d := range e.battery() {
		if err := ctx.Err(); err != nil {
			return suggestions, err
		}
		if e.learner != nil && !e.learner.ShouldGenerate(ctx, string(d.Type)) {
			e.logDebug("suggestion type suppressed by feedback", "type", d.Type)
			continue
		}
		for _, s := range d.check(state, proj) {
			if e.learner != nil {
				s.ConfidenceScore = e.learner.AdjustConfidence(ctx, string(d.Type), s.ConfidenceScore)
			}
			if e.enhancer != nil {
				e.enhancer.Enhance(ctx, &s)
			}
			ensureComplete(&s)
			suggestions = append(suggestions, s)
		}
	}
	e.logDebug("analysis pass complete", "board", state.BoardID, "suggestions", len(suggestions))
	return suggestions, nil
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
