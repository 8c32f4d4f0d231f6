package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stride-dev/stride/pkg/ai"
	strideerrors "github.com/stride-dev/stride/pkg/errors"
)

// Enhancement is best-effort embellishment, so its retry budget is far
// tighter than the general AI defaults.
var enhanceRetry = strideerrors.RetryConfig{
	MaxRetries: 2,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   5 * time.Second,
	Jitter:     strideerrors.DefaultJitter,
}

// Enhancer rewrites rule-generated suggestions with provider-written
// reasoning and actions. It never fails a suggestion: any provider or
// parse error leaves the rule content in place.
type Enhancer struct {
	provider ai.Provider
	logger   *slog.Logger
}

// NewEnhancer wraps a provider. A nil provider yields a nil Enhancer,
// which NewEngine accepts as "no enhancement".
func NewEnhancer(provider ai.Provider, logger *slog.Logger) *Enhancer {
	if provider == nil {
		return nil
	}
	return &Enhancer{provider: provider, logger: logger}
}

// Enhancement is the structured payload requested from the provider.
type Enhancement struct {
	Reasoning  string         `json:"reasoning"`
	Actions    []ActionDetail `json:"actions"`
	Impact     string         `json:"impact"`
	Confidence float64        `json:"confidence"`
}

// ActionDetail is one recommended action with its supporting detail.
type ActionDetail struct {
	Action             string `json:"action"`
	Rationale          string `json:"rationale"`
	ExpectedOutcome    string `json:"expected_outcome"`
	ImplementationHint string `json:"implementation_hint"`
}

// render flattens the detail into one recommended-action line.
func (a ActionDetail) render() string {
	action := strings.TrimSpace(a.Action)
	outcome := strings.TrimSpace(a.ExpectedOutcome)
	if action == "" {
		return ""
	}
	if outcome == "" {
		return action
	}
	return fmt.Sprintf("%s (expected: %s)", action, outcome)
}

// Enhance rewrites s in place. Failures are logged and swallowed; the
// caller always gets a usable suggestion back.
func (en *Enhancer) Enhance(ctx context.Context, s *Suggestion) {
	if en == nil || en.provider == nil || !en.provider.IsAvailable() {
		return
	}

	enh, err := en.request(ctx, s)
	if err != nil {
		en.logDebug("enhancement failed, keeping rule content",
			"type", s.Type, "provider", en.provider.Name(), "error", err)
		return
	}
	applyEnhancement(s, enh)
}

func (en *Enhancer) request(ctx context.Context, s *Suggestion) (Enhancement, error) {
	messages := []ai.Message{
		{Role: "system", Content: SystemPromptEnhance},
		{Role: "user", Content: BuildEnhancementPrompt(s)},
	}

	resp, err := strideerrors.RetryWithResult(ctx, enhanceRetry, func() (*ai.Response, error) {
		return en.provider.Chat(ctx, messages)
	})
	if err != nil {
		return Enhancement{}, err
	}
	return parseEnhancement(resp.Content)
}

// parseEnhancement decodes a provider reply. It tries the extracted
// JSON object as-is, then a repaired copy, and finally treats the raw
// text as reasoning. Only an empty reply is an error.
func parseEnhancement(raw string) (Enhancement, error) {
	candidate := extractJSONObject(raw)

	var enh Enhancement
	if json.Unmarshal([]byte(candidate), &enh) == nil {
		return enh, nil
	}
	if json.Unmarshal([]byte(repairJSON(candidate)), &enh) == nil {
		return enh, nil
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return Enhancement{}, strideerrors.NewAIError("", "enhance", "provider returned an empty response")
	}
	return Enhancement{Reasoning: text}, nil
}

// applyEnhancement merges a parsed enhancement into the suggestion.
// Empty payload fields never erase rule content, and the provider can
// only raise confidence, never lower it below the detector's value.
func applyEnhancement(s *Suggestion, enh Enhancement) {
	if r := strings.TrimSpace(enh.Reasoning); r != "" {
		s.Reasoning = r
	}

	var actions []string
	for _, a := range enh.Actions {
		if line := a.render(); line != "" {
			actions = append(actions, line)
		}
	}
	if len(actions) > 0 {
		s.RecommendedActions = actions
	}

	if impact := strings.TrimSpace(enh.Impact); impact != "" {
		s.ExpectedImpact = impact
	}

	conf := enh.Confidence
	// Some models answer in percent despite the prompt.
	if conf > 1 && conf <= 100 {
		conf /= 100
	}
	if conf > s.ConfidenceScore && conf <= 1 {
		s.ConfidenceScore = conf
	}

	s.GenerationMethod = MethodHybrid
	ensureComplete(s)
}

// genericActions is the last-resort action list. ensureComplete copies
// it so callers can never mutate the shared slice.
var genericActions = []string{
	"Review the flagged metrics with the team",
	"Agree on one corrective step for the next period",
	"Re-run the analysis after the next velocity snapshot",
}

// ensureComplete guarantees the display contract: every suggestion
// leaving the engine has reasoning, at least one recommended action,
// and an expected impact, whatever the enhancement path did.
func ensureComplete(s *Suggestion) {
	if strings.TrimSpace(s.Reasoning) == "" {
		s.Reasoning = s.Message
	}
	if len(s.RecommendedActions) == 0 {
		s.RecommendedActions = append([]string(nil), genericActions...)
	}
	if strings.TrimSpace(s.ExpectedImpact) == "" {
		s.ExpectedImpact = "Improved delivery predictability and reduced schedule risk"
	}
}

func (en *Enhancer) logDebug(msg string, args ...any) {
	if en.logger != nil {
		en.logger.Debug(msg, args...)
	}
}
