package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWorkflow(t *testing.T) {
	path := writeWorkflow(t, `{
		"name": "invite teammate",
		"user_id": "user-7",
		"workflow_type": "browser",
		"steps": [
			{"action": "navigate", "params": {"url": "https://example.com/admin"}},
			{"action": "click_at", "context": "press the invite button", "params": {"description": "Invite button"}}
		]
	}`)

	wf, err := loadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "invite teammate", wf.Name)
	assert.Equal(t, "user-7", wf.UserID)
	assert.Equal(t, "browser", wf.WorkflowType)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "navigate", wf.Steps[0].Action)
	assert.Equal(t, "https://example.com/admin", wf.Steps[0].Param("url"))
}

func TestLoadWorkflow_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := loadWorkflow(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorContains(t, err, "failed to read workflow file")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := loadWorkflow(writeWorkflow(t, `{"steps": [`))
		assert.ErrorContains(t, err, "failed to parse workflow file")
	})

	t.Run("no steps", func(t *testing.T) {
		_, err := loadWorkflow(writeWorkflow(t, `{"name": "empty", "steps": []}`))
		assert.ErrorContains(t, err, "contains no steps")
	})

	t.Run("step without action", func(t *testing.T) {
		_, err := loadWorkflow(writeWorkflow(t, `{"steps": [{"params": {}}]}`))
		assert.ErrorContains(t, err, "step 1 has no action")
	})
}
