package coach

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"prose around object", `Sure! {"a": 1} Done.`, `{"a": 1}`},
		{"markdown fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"truncated keeps tail", `Sure! {"a": "unfinish`, `{"a": "unfinish`},
		{"no braces at all", "just words", "just words"},
		{"nested objects", `x {"a": {"b": 2}} y`, `{"a": {"b": 2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSONObject(tt.in); got != tt.want {
				t.Errorf("extractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"truncated mid string", `{"reasoning": "the team lost`},
		{"truncated after comma", `{"reasoning": "x",`},
		{"truncated after key colon", `{"reasoning": "x", "impact":`},
		{"unclosed nested array", `{"actions": [{"action": "a"}, {"action": "b"`},
		{"braces inside strings", `{"reasoning": "use {curly} and [square] freely", "impact": "ok"`},
		{"escaped quotes in open string", `{"reasoning": "say \"hi\" to`},
		{"dangling escape", `{"reasoning": "tricky\`},
		{"already valid", `{"reasoning": "fine"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := repairJSON(tt.in)
			var out map[string]any
			if err := json.Unmarshal([]byte(repaired), &out); err != nil {
				t.Errorf("repairJSON(%q) = %q, still invalid: %v", tt.in, repaired, err)
			}
		})
	}
}

func TestRepairJSONPreservesContent(t *testing.T) {
	repaired := repairJSON(`{"reasoning": "velocity fell", "actions": [{"action": "rebalance`)

	var out struct {
		Reasoning string `json:"reasoning"`
		Actions   []struct {
			Action string `json:"action"`
		} `json:"actions"`
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		t.Fatalf("repaired JSON invalid: %v\n%s", err, repaired)
	}
	if out.Reasoning != "velocity fell" {
		t.Errorf("reasoning = %q, want the intact field", out.Reasoning)
	}
	if len(out.Actions) != 1 || out.Actions[0].Action != "rebalance" {
		t.Errorf("actions = %+v, want the truncated action recovered", out.Actions)
	}
}

func TestRepairJSONDanglingKeyGetsEmptyValue(t *testing.T) {
	repaired := repairJSON(`{"reasoning": "x", "impact":`)

	var out map[string]any
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		t.Fatalf("repaired JSON invalid: %v\n%s", err, repaired)
	}
	if out["impact"] != "" {
		t.Errorf("impact = %v, want empty string placeholder", out["impact"])
	}
}
