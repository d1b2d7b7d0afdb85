// internal/agent/driver.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/llmutil"
	"github.com/varga-labs/sherpa-cli/internal/store"
)

// DirectRunner executes a deterministic browser step.
type DirectRunner interface {
	Execute(ctx context.Context, step schemas.Step) error
}

// APIRunner executes a deterministic api_call step.
type APIRunner interface {
	ExecuteStep(ctx context.Context, userID string, step schemas.Step) (map[string]any, error)
}

// StepRunner runs one ambiguous step through the full agent loop.
type StepRunner interface {
	RunStep(ctx context.Context, step schemas.Step, stepIndex, total int, prefetchedCaption *string) StepResult
}

// ScenePerceiver is the slice of the perception pipeline the driver needs
// for speculative captioning.
type ScenePerceiver interface {
	PerceiveScene(ctx context.Context, screenshot []byte) string
}

// PromptCacher uploads a system prompt to the model provider's context
// cache, returning an opaque handle.
type PromptCacher interface {
	CacheSystemPrompt(ctx context.Context, model, systemPrompt string) (string, error)
}

// ErrAwaitingUser reports that the run paused for human help rather than
// finishing.
var ErrAwaitingUser = errors.New("run is awaiting user intervention")

// Driver sequences a workflow: deterministic steps run directly with
// bounded retries, everything else goes through the step controller.
// Between steps it polls for cancel and redirect signals.
type Driver struct {
	runs   store.RunStore
	direct DirectRunner
	api    APIRunner
	screen Screen
	scenes ScenePerceiver
	cacher PromptCacher
	logger *zap.Logger

	history      *History
	workflowType schemas.WorkflowType
	runID        string
	userID       string

	directRetries   int
	workflowTimeout time.Duration

	// newController binds the resolved model and prompt-cache handle for
	// this run into a fresh step controller.
	newController func(model, cachedPrompt string) StepRunner

	sleep func(ctx context.Context, d time.Duration)
}

// DriverParams wires a Driver.
type DriverParams struct {
	Runs   store.RunStore
	Direct DirectRunner
	API    APIRunner
	Screen Screen
	Scenes ScenePerceiver
	Cacher PromptCacher
	Logger *zap.Logger

	History      *History
	WorkflowType schemas.WorkflowType
	RunID        string
	UserID       string

	DirectRetries   int
	WorkflowTimeout time.Duration

	NewController func(model, cachedPrompt string) StepRunner
}

func NewDriver(p DriverParams) *Driver {
	if p.DirectRetries <= 0 {
		p.DirectRetries = 3
	}
	if p.WorkflowTimeout <= 0 {
		p.WorkflowTimeout = 5 * time.Minute
	}
	if p.History == nil {
		p.History = NewHistory(2)
	}
	if p.WorkflowType == "" {
		p.WorkflowType = schemas.WorkflowBrowser
	}
	return &Driver{
		runs:            p.Runs,
		direct:          p.Direct,
		api:             p.API,
		screen:          p.Screen,
		scenes:          p.Scenes,
		cacher:          p.Cacher,
		logger:          p.Logger.Named("driver"),
		history:         p.History,
		workflowType:    p.WorkflowType,
		runID:           p.RunID,
		userID:          p.UserID,
		directRetries:   p.DirectRetries,
		workflowTimeout: p.WorkflowTimeout,
		newController:   p.NewController,
		sleep: func(ctx context.Context, d time.Duration) {
			if d <= 0 {
				return
			}
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// Run executes the workflow to completion. The returned status matches what
// was persisted; the error is non-nil only for failed runs (ErrAwaitingUser
// marks a paused run).
func (d *Driver) Run(ctx context.Context, steps []schemas.Step) (schemas.RunStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, d.workflowTimeout)
	defer cancel()

	d.setStatus(ctx, schemas.RunRunning)

	// The tuned action model and the system-prompt cache are resolved once
	// per run; every step shares them.
	model := ""
	if d.runs != nil {
		if m, err := d.runs.FineTunedModel(ctx, d.userID, string(schemas.TierPowerful)); err == nil {
			model = m
		} else {
			d.logger.Warn("Tuned model lookup failed, using default", zap.Error(err))
		}
	}

	cachedPrompt := ""
	if d.cacher != nil && len(steps) > 0 {
		sys := SystemPrompt(StepInstruction(steps[0], 1, len(steps)), d.workflowType)
		if name, err := d.cacher.CacheSystemPrompt(ctx, model, sys); err == nil && name != "" {
			cachedPrompt = name
			d.logger.Info("System prompt context cache active", zap.String("cache", name))
		} else if err != nil {
			d.logger.Debug("Context cache unavailable, sending system prompt inline", zap.Error(err))
		}
	}

	controller := d.newController(model, cachedPrompt)
	total := len(steps)

	// Speculative scene prefetch for the next ambiguous step. The channel
	// is buffered so an unconsumed caption never strands its goroutine.
	prefetchCtx, cancelPrefetch := context.WithCancel(ctx)
	defer cancelPrefetch()
	var prefetchCh chan string

	startPrefetch := func(next int) {
		prefetchCh = nil
		if d.scenes == nil || d.screen == nil || next >= total || IsDeterministic(steps[next]) {
			return
		}
		shot, err := d.screen.Screenshot(ctx)
		if err != nil {
			return
		}
		ch := make(chan string, 1)
		go func() {
			ch <- d.scenes.PerceiveScene(prefetchCtx, shot)
		}()
		prefetchCh = ch
	}

	for i, step := range steps {
		index := i + 1

		if index > 1 {
			status, done := d.pollSignals(ctx, &step)
			if done {
				return status, nil
			}
		}
		if ctx.Err() != nil {
			return d.fail(ctx, fmt.Errorf("workflow timed out after %s", d.workflowTimeout))
		}

		d.log(ctx, "info", fmt.Sprintf("Step %d/%d: %s — %s", index, total, step.Action, llmutil.Truncate(step.Context, 60)), nil)

		var prefetched *string
		if prefetchCh != nil {
			select {
			case caption := <-prefetchCh:
				if caption != "" {
					prefetched = &caption
				}
			case <-ctx.Done():
			}
			prefetchCh = nil
		}

		if IsDeterministic(step) {
			if err := d.runDirect(ctx, index, step); err == nil {
				d.log(ctx, "info", fmt.Sprintf("Step %d complete (direct)", index), nil)
				d.recordDirectSuccess(ctx)
				startPrefetch(i + 1)
				continue
			} else {
				d.log(ctx, "warn", fmt.Sprintf("Direct execution failed after %d retries for step %d, falling back to agent: %v",
					d.directRetries, index, err), nil)
			}
		}

		result := controller.RunStep(ctx, step, index, total, prefetched)
		status, done, err := d.handleResult(ctx, index, result)
		if done {
			return status, err
		}
		startPrefetch(i + 1)
	}

	d.setStatus(ctx, schemas.RunCompleted)
	d.log(ctx, "info", "Workflow completed successfully", nil)
	return schemas.RunCompleted, nil
}

// runDirect executes one deterministic step with exponential backoff.
func (d *Driver) runDirect(ctx context.Context, index int, step schemas.Step) error {
	var lastErr error
	for attempt := 0; attempt < d.directRetries; attempt++ {
		if step.Action == "api_call" {
			if d.api == nil {
				return fmt.Errorf("no API executor configured")
			}
			_, lastErr = d.api.ExecuteStep(ctx, d.userID, step)
		} else {
			if d.direct == nil {
				return fmt.Errorf("no direct executor configured")
			}
			lastErr = d.direct.Execute(ctx, step)
		}
		if lastErr == nil {
			return nil
		}
		if attempt < d.directRetries-1 {
			wait := time.Duration(1<<attempt) * time.Second
			d.log(ctx, "warn", fmt.Sprintf("Direct retry %d/%d for step %d (%s): %v",
				attempt+1, d.directRetries, index, step.Action, lastErr), nil)
			d.sleep(ctx, wait)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// recordDirectSuccess stores the post-step screenshot so later ambiguous
// steps see it in their observation window.
func (d *Driver) recordDirectSuccess(ctx context.Context) {
	if d.screen == nil {
		return
	}
	shot, err := d.screen.Screenshot(ctx)
	if err != nil {
		return
	}
	d.history.Append(HistoryEntry{Screenshot: shot})
}

// pollSignals checks for user cancel or redirect between steps. A redirect
// prepends its instruction to the step context.
func (d *Driver) pollSignals(ctx context.Context, step *schemas.Step) (schemas.RunStatus, bool) {
	if d.runs == nil {
		return "", false
	}
	sig, err := d.runs.PollSignals(ctx, d.runID)
	if err != nil {
		d.logger.Warn("Signal poll failed", zap.Error(err))
		return "", false
	}
	if sig.CancelRequested {
		d.log(ctx, "info", "Run cancelled by user request", nil)
		d.setStatus(ctx, schemas.RunCancelled)
		return schemas.RunCancelled, true
	}
	if sig.RedirectInstruction != "" {
		d.log(ctx, "info", "Redirect received: "+sig.RedirectInstruction, nil)
		step.Context = "[User redirect]: " + sig.RedirectInstruction + "\n" + step.Context
	}
	return "", false
}

// handleResult maps a step result onto run state. done=true ends the run.
func (d *Driver) handleResult(ctx context.Context, index int, result StepResult) (schemas.RunStatus, bool, error) {
	meta := map[string]any{
		"step_index": index,
		"thought":    result.Thought,
		"action":     result.ActionStr,
		"trace":      true,
	}

	switch result.Outcome {
	case StepFinished:
		d.log(ctx, "info", fmt.Sprintf("Agent signaled Finished at step %d. Thought: %s", index, result.Thought), meta)
		d.setStatus(ctx, schemas.RunCompleted)
		d.log(ctx, "info", "Workflow completed successfully (agent Finished signal)", nil)
		return schemas.RunCompleted, true, nil

	case StepCallUser:
		reason := result.Err
		if reason == "" {
			reason = "Agent requested user intervention"
		}
		meta["call_user_reason"] = reason
		d.log(ctx, "warn", fmt.Sprintf("Agent needs user help at step %d: %s", index, reason), meta)
		d.setStatus(ctx, schemas.RunAwaitingUser)
		return schemas.RunAwaitingUser, true, ErrAwaitingUser

	case StepFailed:
		meta["error"] = result.Err
		d.log(ctx, "error", fmt.Sprintf("Step %d failed: %s", index, result.Err), meta)
		status, err := d.fail(ctx, fmt.Errorf("step %d failed: %s", index, result.Err))
		return status, true, err

	default: // StepSucceeded
		d.log(ctx, "info", fmt.Sprintf("Step %d complete (agent). Thought: %s", index, llmutil.Truncate(result.Thought, 100)), meta)
		return "", false, nil
	}
}

func (d *Driver) fail(ctx context.Context, err error) (schemas.RunStatus, error) {
	d.setStatus(ctx, schemas.RunFailed)
	return schemas.RunFailed, err
}

func (d *Driver) setStatus(ctx context.Context, status schemas.RunStatus) {
	if d.runs == nil {
		return
	}
	// Terminal status writes must land even after the workflow deadline.
	if err := d.runs.SetStatus(context.WithoutCancel(ctx), d.runID, status); err != nil {
		d.logger.Warn("Status update failed", zap.String("status", string(status)), zap.Error(err))
	}
}

func (d *Driver) log(ctx context.Context, level, message string, metadata map[string]any) {
	d.logger.Info(message, zap.String("run_id", d.runID))
	if d.runs == nil {
		return
	}
	entry := schemas.RunLogEntry{
		RunID:     d.runID,
		Level:     level,
		Message:   message,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	if err := d.runs.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Warn("Run log append failed", zap.Error(err))
	}
}
