package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type grounding struct {
	CenterX    int    `json:"center_x"`
	CenterY    int    `json:"center_y"`
	Confidence string `json:"confidence"`
}

func TestParseJSONResponse_BareObject(t *testing.T) {
	got, err := ParseJSONResponse[grounding](`{"center_x": 120, "center_y": 640, "confidence": "high"}`)
	require.NoError(t, err)
	assert.Equal(t, 120, got.CenterX)
	assert.Equal(t, "high", got.Confidence)
}

func TestParseJSONResponse_MarkdownFence(t *testing.T) {
	response := "```json\n{\"center_x\": 5, \"center_y\": 10, \"confidence\": \"low\"}\n```"
	got, err := ParseJSONResponse[grounding](response)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CenterX)
	assert.Equal(t, "low", got.Confidence)
}

func TestParseJSONResponse_ConversationalWrapper(t *testing.T) {
	response := `Sure, here is the element location: {"center_x": 42, "center_y": 99, "confidence": "medium"} Let me know if you need anything else.`
	got, err := ParseJSONResponse[grounding](response)
	require.NoError(t, err)
	assert.Equal(t, 42, got.CenterX)
	assert.Equal(t, 99, got.CenterY)
}

func TestParseJSONResponse_Array(t *testing.T) {
	got, err := ParseJSONResponse[[]int]("```\n[1, 2, 3]\n```")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, *got)
}

func TestParseJSONResponse_Invalid(t *testing.T) {
	_, err := ParseJSONResponse[grounding]("the button is near the top right")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal LLM JSON response")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("anything", 0))
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
}
