// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	"github.com/varga-labs/sherpa-cli/api/schemas"
)

const desktopActionSpace = `
## Action Space — Desktop (output exactly one per turn)

- Click(x, y) - Left-click at normalized coordinates (0-1000). (0,0)=top-left, (1000,1000)=bottom-right.
- RightClick(x, y) - Right-click at (x, y) to open context menus
- DoubleClick(x, y) - Double-click at (x, y) to open files or apps
- Drag(x1, y1, x2, y2) - Click and drag from (x1,y1) to (x2,y2)
- Scroll(x, y, direction, distance=300) - Scroll at (x, y); direction: up|down|left|right; distance in pixels
- Type(content) - Type the specified text
- Hotkey(key1, key2, ...) - Press a key combination e.g. Hotkey("cmd", "c")
- Wait(seconds) - Pause for N seconds (max 30)
- PressKey(key) - Press a single key e.g. PressKey("enter")
- OpenApp(appName) - Launch an application by name e.g. OpenApp("Safari")
- FocusApp(appName) - Bring an app to the foreground e.g. FocusApp("Finder")
- Finished() - Mark task as complete
- CallUser(reason) - Request human intervention. Use ONLY when:
    (a) you have tried 2+ different approaches and ALL have failed,
    (b) the task requires credentials, a CAPTCHA, or an irreversible human decision,
    (c) a required UI element is completely absent after scrolling and waiting,
    (d) you are in a loop repeating the same failing action with no alternative.
  DO NOT call after a single failure — try at least one alternative approach first.
  reason: one sentence explaining what you tried and exactly what is blocking you.

CRITICAL: Output ONLY the Thought line and Action line. No markdown, no headers, no extra text before or after.

Output format (strict):
Thought: <your reasoning about what to do next>
Action: <action>(<params>)

Examples:
Thought: The search box is in the top navigation bar. I will click its center to focus it.
Action: Click(250, 45)

Thought: I need to open the file manager. I'll double-click the Finder icon on the Dock.
Action: DoubleClick(62, 982)

Thought: My last click had no effect — the button appears to be lower on the page than I estimated. I'll scroll down to reveal it.
Action: Scroll(500, 500, "down", 400)
`

const browserActionSpace = `
## Action Space — Browser (output exactly one per turn)

- Click(x, y) - Click at normalized coordinates (0-1000). (0,0)=top-left, (1000,1000)=bottom-right.
- Scroll(x, y, direction, distance=300) - Scroll at (x, y); direction: up|down|left|right
- Type(content) - Type the specified text
- Wait(seconds) - Pause for N seconds (max 30)
- PressKey(key) - Press a single key e.g. PressKey("enter") or PressKey("tab")
- Navigate(url) - Go to a URL
- SelectOption(x, y, value) - Select a dropdown option at (x, y)
- Hover(x, y) - Hover over an element to reveal tooltips or dropdowns
- Finished() - Mark task as complete
- CallUser(reason) - Request human intervention. Use ONLY when:
    (a) you have tried 2+ different approaches and ALL have failed,
    (b) the task requires credentials, a CAPTCHA, or an irreversible human decision,
    (c) a required UI element is completely absent after scrolling and waiting,
    (d) you are in a loop repeating the same failing action with no alternative.
  DO NOT call after a single failure — try at least one alternative approach first.
  reason: one sentence explaining what you tried and exactly what is blocking you.

CRITICAL: Output ONLY the Thought line and Action line. No markdown, no headers, no extra text before or after.

Output format (strict):
Thought: <your reasoning about what to do next>
Action: <action>(<params>)

Examples:
Thought: The Submit button is visible at the bottom center of the form. I will click it.
Action: Click(500, 820)

Thought: I need to navigate to the login page to begin authentication.
Action: Navigate("https://app.example.com/login")

Thought: My previous click did not submit the form. I notice the cursor is still in the field — pressing Enter should trigger form submission instead.
Action: PressKey("enter")
`

// SystemPrompt builds the observe-think-act system prompt for one step. The
// history summary is injected as a user part, not here, so the prompt stays
// cacheable across steps.
func SystemPrompt(instruction string, workflowType schemas.WorkflowType) string {
	actionSpace := browserActionSpace
	envContext := "You are controlling a web browser. Use browser-aware actions " +
		"(Navigate, SelectOption, Hover, PressKey) as needed."
	if workflowType == schemas.WorkflowDesktop {
		actionSpace = desktopActionSpace
		envContext = "You are controlling a native desktop application. Use OS-level actions " +
			"(Hotkey, OpenApp, FocusApp, RightClick, DoubleClick) as needed."
	}

	var b strings.Builder
	b.WriteString("You are Sherpa, a UI automation agent. You observe screenshots, reason about the interface, and output executable actions.\n\n")
	b.WriteString(envContext)
	b.WriteString(`

You follow these reasoning patterns:
- Task Decomposition: Break complex tasks into subtasks; track the overall goal
- Long-term Consistency: Reference the original task goal; avoid drifting to unrelated actions
- Milestone Recognition: Explicitly note when an intermediate step completes before moving on
- Trial and Error: Hypothesize an action, reason about its likely outcome, then execute
- Reflection: After an error, identify what went wrong and state a corrected strategy
- Recovery: When a previous attempt failed, RE-EXAMINE the current screenshot — the element may have moved, require scrolling, or be behind a modal. Do NOT repeat the identical action — adapt your approach.
- Stuck: If you have tried 2+ genuinely different approaches and all have failed, use CallUser(reason). Never call after just one failure — always attempt at least one alternative strategy first.

Coordinates are normalized 0-1000. (0,0) = top-left corner, (1000,1000) = bottom-right corner.
`)
	b.WriteString(actionSpace)
	b.WriteString("\n\n## Current Instruction\n")
	b.WriteString(instruction)
	return b.String()
}

// StepInstruction converts one workflow step into instruction text.
func StepInstruction(step schemas.Step, stepIndex, total int) string {
	parts := []string{fmt.Sprintf("Step %d/%d:", stepIndex, total)}
	if ctx := strings.TrimSpace(step.Context); ctx != "" {
		parts = append(parts, "Context: "+ctx)
	}
	if out := strings.TrimSpace(step.ExpectedOutcome); out != "" {
		parts = append(parts, "Expected outcome: "+out)
	}

	desc := func(def string) string {
		if d := step.Param("description"); d != "" {
			return d
		}
		if c := strings.TrimSpace(step.Context); c != "" {
			return c
		}
		return def
	}
	coordHint := func(prefix string) {
		if step.HasParam("x") && step.HasParam("y") {
			parts = append(parts, fmt.Sprintf("%s (%v, %v) — verify visually.", prefix, step.Params["x"], step.Params["y"]))
		}
	}

	switch step.Action {
	case "navigate":
		url := step.Param("url")
		if url == "" {
			url = "https://www.google.com"
		}
		parts = append(parts, "Go to "+url)
	case "click_at":
		parts = append(parts, fmt.Sprintf("Click %s. Locate it visually in the screenshot and provide Click(x, y) with normalized coords.", desc("the element")))
		coordHint("Synthesized coordinates hint: approximately")
	case "type_text_at":
		parts = append(parts, fmt.Sprintf("Type '%s' into %s.", step.Param("text"), desc("the input field")))
	case "scroll":
		direction := step.Param("direction")
		if direction == "" {
			direction = "down"
		}
		distance := step.Params["distance"]
		if distance == nil {
			distance = step.Params["amount"]
		}
		if distance == nil {
			distance = 300
		}
		parts = append(parts, fmt.Sprintf("Scroll %s by %vpx", direction, distance))
	case "wait":
		secs := step.Params["seconds"]
		if secs == nil {
			secs = 2
		}
		parts = append(parts, fmt.Sprintf("Wait %v seconds", secs))
	case "wait_for_element":
		parts = append(parts, fmt.Sprintf("Wait for %s to appear on screen", desc("the expected element")))
	case "select_option":
		parts = append(parts, fmt.Sprintf("Select option '%s' in %s", step.Param("value"), desc("the dropdown")))
	case "press_key":
		key := step.Param("key")
		if key == "" {
			key = "Enter"
		}
		parts = append(parts, fmt.Sprintf("Press the %s key", key))
	case "hover":
		parts = append(parts, fmt.Sprintf("Hover over %s.", desc("the element")))
		coordHint("Approximate location:")
	case "hotkey":
		combo := "unknown"
		if keys, ok := step.Params["keys"].([]any); ok && len(keys) > 0 {
			names := make([]string, 0, len(keys))
			for _, k := range keys {
				names = append(names, fmt.Sprint(k))
			}
			combo = strings.Join(names, "+")
		}
		line := "Press keyboard shortcut " + combo
		if d := step.Param("description"); d != "" {
			line += " — " + d
		}
		parts = append(parts, line)
	case "open_app":
		parts = append(parts, fmt.Sprintf("Launch the application '%s'", step.Param("appName")))
	case "focus_app":
		parts = append(parts, fmt.Sprintf("Bring '%s' to the foreground", step.Param("appName")))
	case "double_click":
		parts = append(parts, fmt.Sprintf("Double-click %s.", desc("the element")))
		coordHint("Approximate location:")
	case "right_click":
		parts = append(parts, fmt.Sprintf("Right-click %s to open context menu.", desc("the element")))
		coordHint("Approximate location:")
	case "drag":
		parts = append(parts, fmt.Sprintf("Drag %s.", desc("from source to destination")))
		if step.HasParam("x") && step.HasParam("y") && step.HasParam("x2") && step.HasParam("y2") {
			parts = append(parts, fmt.Sprintf("From approximately (%v, %v) to (%v, %v) — verify visually.",
				step.Params["x"], step.Params["y"], step.Params["x2"], step.Params["y2"]))
		}
	default:
		parts = append(parts, fmt.Sprintf("%s: %v", step.Action, step.Params))
	}

	return strings.Join(parts, " ")
}

// HistorySummaryText frames prior-step history for injection as a user part.
func HistorySummaryText(historyText string) string {
	if historyText == "" {
		return ""
	}
	return "## Prior Steps (summary)\n" + historyText
}

// CleanUserReason normalizes an agent escalation reason for display,
// stripping leftover reasoning prefixes.
func CleanUserReason(reason string) string {
	clean := strings.TrimSpace(reason)
	lower := strings.ToLower(clean)
	for _, prefix := range []string{"thought:", "reflection:"} {
		if strings.HasPrefix(lower, prefix) {
			clean = strings.TrimSpace(clean[len(prefix):])
			break
		}
	}
	return clean
}
