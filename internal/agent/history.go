// internal/agent/history.go
package agent

import (
	"fmt"
	"strings"

	"github.com/varga-labs/sherpa-cli/internal/llmutil"
)

// HistoryEntry records one successfully completed step for the agent's
// observation window. Screenshot holds the compressed after-state.
type HistoryEntry struct {
	Thought    string
	Action     string
	Screenshot []byte
}

// History is the rolling record of completed steps. The most recent entries
// contribute screenshots; older entries collapse to a text summary.
type History struct {
	entries []HistoryEntry
	window  int
}

// NewHistory builds a history whose observation window keeps the given
// number of screenshots.
func NewHistory(window int) *History {
	if window < 1 {
		window = 1
	}
	return &History{window: window}
}

// Append records a completed step.
func (h *History) Append(entry HistoryEntry) {
	h.entries = append(h.entries, entry)
}

// Len returns the number of recorded steps.
func (h *History) Len() int { return len(h.entries) }

// Screenshots returns the after-state screenshots of the most recent steps,
// oldest first.
func (h *History) Screenshots() [][]byte {
	start := len(h.entries) - h.window
	if start < 0 {
		start = 0
	}
	var out [][]byte
	for _, e := range h.entries[start:] {
		if len(e.Screenshot) > 0 {
			out = append(out, e.Screenshot)
		}
	}
	return out
}

// Summary renders the steps older than the observation window as one line
// each, truncated so the context stays cheap.
func (h *History) Summary() string {
	if len(h.entries) <= h.window {
		return ""
	}
	older := h.entries[:len(h.entries)-h.window]
	lines := make([]string, 0, len(older))
	for i, e := range older {
		if e.Thought == "" && e.Action == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Step %d: Thought: %s Action: %s",
			i+1, llmutil.Truncate(e.Thought, 200), llmutil.Truncate(e.Action, 80)))
	}
	return strings.Join(lines, "\n")
}
