// internal/agent/history_test.go
package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistory_SummaryExcludesObservationWindow(t *testing.T) {
	h := NewHistory(2)
	h.Append(HistoryEntry{Thought: "open the site", Action: `navigate("https://example.com")`, Screenshot: []byte("a")})
	h.Append(HistoryEntry{Thought: "press login", Action: "click(500, 300)", Screenshot: []byte("b")})

	assert.Equal(t, "", h.Summary(), "entries inside the window carry screenshots, not summary lines")

	h.Append(HistoryEntry{Thought: "type the name", Action: `type("alice")`, Screenshot: []byte("c")})

	summary := h.Summary()
	assert.Contains(t, summary, "Step 1:")
	assert.Contains(t, summary, "open the site")
	assert.NotContains(t, summary, "press login")
	assert.NotContains(t, summary, "type the name")
}

func TestHistory_ScreenshotsKeepMostRecent(t *testing.T) {
	h := NewHistory(2)
	h.Append(HistoryEntry{Action: "a", Screenshot: []byte("shot-1")})
	h.Append(HistoryEntry{Action: "b", Screenshot: []byte("shot-2")})
	h.Append(HistoryEntry{Action: "c", Screenshot: []byte("shot-3")})

	shots := h.Screenshots()
	assert.Equal(t, [][]byte{[]byte("shot-2"), []byte("shot-3")}, shots)
}

func TestHistory_SummaryTruncatesLongThoughts(t *testing.T) {
	h := NewHistory(1)
	h.Append(HistoryEntry{Thought: strings.Repeat("x", 500), Action: "click(1, 1)"})
	h.Append(HistoryEntry{Thought: "recent", Action: "click(2, 2)"})

	summary := h.Summary()
	assert.Less(t, len(summary), 400)
	assert.Contains(t, summary, "...")
}

func TestHistorySummaryText(t *testing.T) {
	assert.Equal(t, "", HistorySummaryText(""))
	assert.Equal(t, "## Prior Steps (summary)\nStep 1: did a thing", HistorySummaryText("Step 1: did a thing"))
}

func TestCleanUserReason(t *testing.T) {
	assert.Equal(t, "need a captcha solved", CleanUserReason("Thought: need a captcha solved"))
	assert.Equal(t, "stuck on login", CleanUserReason("  stuck on login  "))
	assert.Equal(t, "blocked", CleanUserReason("reflection: blocked"))
}
