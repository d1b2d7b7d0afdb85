// api/schemas/schemas.go
package schemas

import "time"

// Step is one workflow instruction as authored by the synthesis pipeline or
// manual editing. Immutable once created.
type Step struct {
	ID              string         `json:"id,omitempty"`
	Action          string         `json:"action"`
	Params          map[string]any `json:"params"`
	Context         string         `json:"context"`
	ExpectedOutcome string         `json:"expected_outcome"`
}

// Param returns the named param as a string, or "" when absent.
func (s Step) Param(key string) string {
	if s.Params == nil {
		return ""
	}
	v, ok := s.Params[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return ""
}

// HasParam reports whether the named param is present (any type, non-nil).
func (s Step) HasParam(key string) bool {
	if s.Params == nil {
		return false
	}
	v, ok := s.Params[key]
	return ok && v != nil
}

// WorkflowType selects the action space presented to the model.
type WorkflowType string

const (
	WorkflowBrowser WorkflowType = "browser"
	WorkflowDesktop WorkflowType = "desktop"
)

// RunStatus is the persisted lifecycle state of a workflow run.
type RunStatus string

const (
	RunPending      RunStatus = "pending"
	RunRunning      RunStatus = "running"
	RunCompleted    RunStatus = "completed"
	RunFailed       RunStatus = "failed"
	RunCancelled    RunStatus = "cancelled"
	RunAwaitingUser RunStatus = "awaiting_user"
)

// RunLogEntry is one append-only trace log record for a run.
type RunLogEntry struct {
	RunID     string         `json:"run_id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunSignals carries externally injected mid-run control signals, polled by
// the driver between steps.
type RunSignals struct {
	CancelRequested     bool
	RedirectInstruction string
}
