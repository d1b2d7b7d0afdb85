// internal/agent/determinism_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varga-labs/sherpa-cli/api/schemas"
)

func step(action string, params map[string]any) schemas.Step {
	return schemas.Step{ID: "s1", Action: action, Params: params}
}

func TestIsDeterministic(t *testing.T) {
	cases := []struct {
		name string
		step schemas.Step
		want bool
	}{
		{"api call", step("api_call", map[string]any{"service": "slack", "method": "send_message"}), true},
		{"navigate with url", step("navigate", map[string]any{"url": "https://example.com"}), true},
		{"navigate without url", step("navigate", nil), false},
		{"any action with selector", step("click_at", map[string]any{"selector": "#submit"}), true},
		{"explicit coords", step("click_at", map[string]any{"x": 120, "y": 400}), true},
		{"coords missing y", step("click_at", map[string]any{"x": 120}), false},
		{"wait", step("wait", map[string]any{"seconds": 2}), true},
		{"press_key with key", step("press_key", map[string]any{"key": "enter"}), true},
		{"press_key without key", step("press_key", nil), false},
		{"scroll with direction", step("scroll", map[string]any{"direction": "down"}), true},
		{"scroll without direction", step("scroll", nil), false},
		{"select_option complete", step("select_option", map[string]any{"selector": "#s", "value": "v"}), true},
		{"select_option value only", step("select_option", map[string]any{"value": "v"}), false},
		{"hover with coords", step("hover", map[string]any{"x": 1, "y": 2}), true},
		{"hover bare", step("hover", nil), false},
		{"wait_for_element with selector", step("wait_for_element", map[string]any{"selector": ".done"}), true},
		{"wait_for_element with description", step("wait_for_element", map[string]any{"description": "the modal"}), false},
		{"ambiguous click", step("click_at", map[string]any{"description": "the blue button"}), false},
		{"type without target", step("type_text_at", map[string]any{"text": "hi"}), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDeterministic(tc.step))
		})
	}
}

func TestIsDeterministic_UnderscoreInsensitive(t *testing.T) {
	assert.True(t, IsDeterministic(step("pressKey", map[string]any{"key": "tab"})))
	assert.True(t, IsDeterministic(step("waitForElement", map[string]any{"selector": "#x"})))
}
