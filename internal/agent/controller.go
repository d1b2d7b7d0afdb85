// internal/agent/controller.go

// Package agent implements the perception-action-verification control loop
// that executes workflow steps against a live UI, plus the driver that
// sequences whole workflows.
package agent

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/agent/action"
	"github.com/varga-labs/sherpa-cli/internal/agent/operator"
	"github.com/varga-labs/sherpa-cli/internal/agent/perception"
	"github.com/varga-labs/sherpa-cli/internal/llmutil"
)

// StepOutcome is the terminal state of one step execution.
type StepOutcome int

const (
	StepFailed StepOutcome = iota
	StepSucceeded
	StepFinished
	StepCallUser
)

// StepResult reports one step run for trace logging and driver control.
// Err carries the failure detail, or the escalation reason for StepCallUser.
type StepResult struct {
	Outcome   StepOutcome
	Thought   string
	ActionStr string
	Err       string
}

// Screen supplies fresh screenshots of the controlled surface.
type Screen interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Per-action settle time before the after-screenshot. Click and navigate
// can trigger navigation or large DOM mutation; hover barely needs any.
var settleTimes = map[action.Kind]time.Duration{
	action.KindClick:          1500 * time.Millisecond,
	action.KindRightClick:     400 * time.Millisecond,
	action.KindDoubleClick:    1000 * time.Millisecond,
	action.KindHover:          200 * time.Millisecond,
	action.KindType:           100 * time.Millisecond,
	action.KindHotkey:         300 * time.Millisecond,
	action.KindScroll:         300 * time.Millisecond,
	action.KindDrag:           400 * time.Millisecond,
	action.KindNavigate:       2000 * time.Millisecond,
	action.KindPressKey:       1000 * time.Millisecond,
	action.KindSelectOption:   500 * time.Millisecond,
	action.KindWaitForElement: 0,
	action.KindWait:           0,
}

const defaultSettle = 500 * time.Millisecond

// Scene captioning adds nothing for actions that do not depend on layout.
var skipSceneActions = map[string]bool{
	"navigate": true,
	"wait":     true,
	"presskey": true,
	"hotkey":   true,
	"scroll":   true,
}

// StepController runs one ambiguous step through the full
// perceive-act-verify loop with retries.
type StepController struct {
	llm        schemas.LLMClient
	perception *perception.Pipeline
	op         operator.Operator
	screen     Screen
	history    *History
	logger     *zap.Logger

	workflowType schemas.WorkflowType
	maxRetries   int
	// model overrides the powerful tier's default, for fine-tuned models.
	model string
	// cachedPrompt is the context-cache handle for the system prompt.
	cachedPrompt string

	// sleep is injectable so tests run without real waits.
	sleep func(ctx context.Context, d time.Duration)
}

// ControllerParams wires a StepController.
type ControllerParams struct {
	LLM          schemas.LLMClient
	Perception   *perception.Pipeline
	Operator     operator.Operator
	Screen       Screen
	History      *History
	Logger       *zap.Logger
	WorkflowType schemas.WorkflowType
	MaxRetries   int
	Model        string
	CachedPrompt string
}

func NewStepController(p ControllerParams) *StepController {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.History == nil {
		p.History = NewHistory(2)
	}
	if p.WorkflowType == "" {
		p.WorkflowType = schemas.WorkflowBrowser
	}
	return &StepController{
		llm:          p.LLM,
		perception:   p.Perception,
		op:           p.Operator,
		screen:       p.Screen,
		history:      p.History,
		logger:       p.Logger.Named("controller"),
		workflowType: p.WorkflowType,
		maxRetries:   p.MaxRetries,
		model:        p.Model,
		cachedPrompt: p.CachedPrompt,
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

// RunStep executes one step, retrying with fresh perception after each
// failure. Exhausting all attempts escalates to the user rather than
// failing silently.
func (c *StepController) RunStep(ctx context.Context, step schemas.Step, stepIndex, total int, prefetchedCaption *string) StepResult {
	instruction := StepInstruction(step, stepIndex, total)
	systemPrompt := SystemPrompt(instruction, c.workflowType)
	stepKind := strings.ReplaceAll(strings.ToLower(step.Action), "_", "")

	var lastError, thought, actionStr string

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return StepResult{Outcome: StepFailed, Thought: thought, ActionStr: actionStr, Err: ctx.Err().Error()}
		}

		// Fresh screenshot every attempt; the page may have moved under us.
		screenshot, err := c.screen.Screenshot(ctx)
		if err != nil {
			lastError = fmt.Sprintf("screenshot failed: %v", err)
			c.logger.Warn("Screenshot failed", zap.Int("attempt", attempt+1), zap.Error(err))
			c.sleep(ctx, time.Duration(attempt+1)*time.Second)
			continue
		}

		// Tier 1 runs once per step and only for layout-dependent actions.
		sceneCaption := ""
		if attempt == 0 {
			switch {
			case prefetchedCaption != nil:
				sceneCaption = *prefetchedCaption
			case !skipSceneActions[stepKind]:
				sceneCaption = c.perception.PerceiveScene(ctx, screenshot)
			}
		}

		effectiveInstruction := instruction
		if sceneCaption != "" {
			effectiveInstruction = "[Scene Overview]\n" + sceneCaption + "\n\n" + instruction
		}

		raw, err := c.callModel(ctx, effectiveInstruction, screenshot, systemPrompt, lastError)
		if err != nil {
			lastError = err.Error()
			c.logger.Warn("Action model call failed", zap.Int("attempt", attempt+1), zap.Error(err))
			c.sleep(ctx, time.Duration(attempt+1)*time.Second)
			continue
		}

		thought = action.ExtractThought(raw)
		parsed := action.Parse(raw)
		if parsed == nil {
			lastError = "Could not parse action from model output: " + llmutil.Truncate(raw, 200)
			c.logger.Warn("Unparseable model output", zap.Int("attempt", attempt+1), zap.String("raw", llmutil.Truncate(raw, 200)))
			c.sleep(ctx, 500*time.Millisecond)
			continue
		}

		// Tier 2 grounding for pointer-target actions. High or medium
		// confidence overrides the model's own coordinates.
		var location *schemas.ElementLocation
		if parsed.IsPointerTarget() {
			location = c.groundTarget(ctx, screenshot, step, parsed, stepIndex)
			if location != nil &&
				(location.Confidence == schemas.ConfidenceHigh || location.Confidence == schemas.ConfidenceMedium) {
				c.logger.Info("Grounding override",
					zap.Int("step", stepIndex),
					zap.String("confidence", string(location.Confidence)),
					zap.Int("x", location.CenterX), zap.Int("y", location.CenterY))
				parsed.SetGroundedCoords(location.CenterX, location.CenterY)
			}
		}

		actionStr = parsed.Render()
		before := screenshot
		beforeHash := screenshotHash(before)

		result := c.op.Execute(ctx, parsed)
		switch result.Outcome {
		case operator.OutcomeFinished:
			return StepResult{Outcome: StepFinished, Thought: thought, ActionStr: actionStr}
		case operator.OutcomeCallUser:
			reason := CleanUserReason(result.Detail)
			if reason == "" && thought != "" {
				reason = CleanUserReason(thought)
			}
			if reason == "" {
				reason = "Agent requested user intervention"
			}
			return StepResult{Outcome: StepCallUser, Thought: thought, ActionStr: actionStr, Err: reason}
		case operator.OutcomeFailure:
			lastError = "Operator failed for action " + actionStr
			if result.Detail != "" {
				lastError += ": " + result.Detail
			}
			c.logger.Warn("Operator failed", zap.Int("attempt", attempt+1), zap.String("action", actionStr), zap.String("detail", result.Detail))
			continue
		}

		// Settle, then compare pixels. An identical after-screenshot means
		// the action had no visible effect; give slow pages extra cycles
		// before counting it as a failure.
		if settle, ok := settleTimes[parsed.Kind]; ok {
			c.sleep(ctx, settle)
		} else {
			c.sleep(ctx, defaultSettle)
		}

		after, err := c.screen.Screenshot(ctx)
		if err != nil {
			lastError = fmt.Sprintf("after-screenshot failed: %v", err)
			continue
		}

		if screenshotHash(after) == beforeHash {
			changed := false
			if attempt < c.maxRetries {
				c.sleep(ctx, time.Duration(float64(attempt+1)*1.5*float64(time.Second)))
				recheck, recheckErr := c.screen.Screenshot(ctx)
				if recheckErr == nil && screenshotHash(recheck) != beforeHash {
					after = recheck
					changed = true
					c.logger.Info("Pixel change detected after extra wait",
						zap.Int("step", stepIndex), zap.Int("attempt", attempt+1))
				}
			}
			if !changed {
				lastError = "Screenshots identical after action — no visible change detected"
				c.logger.Warn("Pixel hash unchanged", zap.Int("step", stepIndex), zap.Int("attempt", attempt+1))
				continue
			}
		}

		// High-confidence grounding plus a pixel change is strong enough
		// evidence to skip the verification call.
		if location != nil && location.Confidence == schemas.ConfidenceHigh {
			c.logger.Info("Skipping verification, grounding confidence high and pixels changed",
				zap.Int("step", stepIndex))
			c.recordSuccess(thought, actionStr, after)
			return StepResult{Outcome: StepSucceeded, Thought: thought, ActionStr: actionStr}
		}

		// Tier 3: state-transition verification.
		transition, succeeded := c.perception.VerifyTransition(ctx, before, after, actionStr, step.ExpectedOutcome)
		c.logger.Info("State transition", zap.Int("step", stepIndex), zap.String("description", llmutil.Truncate(transition, 120)))

		if succeeded {
			c.recordSuccess(thought, actionStr, after)
			return StepResult{Outcome: StepSucceeded, Thought: thought, ActionStr: actionStr}
		}
		lastError = "Action appeared to have no effect: " + llmutil.Truncate(transition, 200)
		c.logger.Warn("Verification verdict failed", zap.Int("attempt", attempt+1), zap.Int("step", stepIndex))
	}

	if lastError == "" {
		lastError = "no clear reason"
	}
	return StepResult{
		Outcome:   StepCallUser,
		Thought:   thought,
		ActionStr: actionStr,
		Err:       fmt.Sprintf("Stuck after %d attempts — %s", c.maxRetries+1, lastError),
	}
}

// callModel issues the main action-selection call: history summary, then
// instruction and screenshot, then the previous failure as extra context.
func (c *StepController) callModel(ctx context.Context, instruction string, screenshot []byte, systemPrompt, lastError string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var parts []schemas.Part
	if summary := HistorySummaryText(c.history.Summary()); summary != "" {
		parts = append(parts, schemas.TextPart(summary))
	}
	parts = append(parts,
		schemas.TextPart(instruction),
		schemas.ImagePart(perception.Compress(screenshot, perception.DefaultMaxDim)),
	)
	if lastError != "" {
		parts = append(parts, schemas.TextPart("Previous attempt failed: "+lastError))
	}

	raw, err := c.llm.Generate(ctx, schemas.GenerationRequest{
		Tier:         schemas.TierPowerful,
		Model:        c.model,
		SystemPrompt: systemPrompt,
		Parts:        parts,
		Options: schemas.GenerationOptions{
			Temperature:     0.0,
			MaxOutputTokens: 256,
			MediaDetail:     schemas.MediaDetailHigh,
			CachedContent:   c.cachedPrompt,
		},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("empty model response")
	}
	return raw, nil
}

// groundTarget runs Tier 2 grounding, zooming in for a second pass when the
// first result is only medium confidence.
func (c *StepController) groundTarget(ctx context.Context, screenshot []byte, step schemas.Step, parsed *action.Action, stepIndex int) *schemas.ElementLocation {
	targetDesc := step.Param("description")
	if targetDesc == "" {
		targetDesc = strings.TrimSpace(step.Context)
	}
	if targetDesc == "" {
		targetDesc = string(parsed.Kind)
	}

	location := c.perception.GroundElement(ctx, perception.Compress(screenshot, perception.DefaultMaxDim), targetDesc)
	if location != nil && location.Confidence == schemas.ConfidenceMedium && len(location.Box2D) == 4 {
		if refined := c.perception.ZoomAndReground(ctx, screenshot, location.Box2D, targetDesc); refined != nil {
			location = refined
			c.logger.Info("Zoom reground",
				zap.Int("step", stepIndex),
				zap.String("confidence", string(location.Confidence)),
				zap.Int("x", location.CenterX), zap.Int("y", location.CenterY))
		}
	}
	return location
}

func (c *StepController) recordSuccess(thought, actionStr string, after []byte) {
	c.history.Append(HistoryEntry{
		Thought:    thought,
		Action:     actionStr,
		Screenshot: perception.Compress(after, perception.DefaultMaxDim),
	})
}

func screenshotHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
