// internal/agent/operator/browser.go
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/internal/agent/action"
)

const (
	inputTimeout   = 10 * time.Second
	settleTimeout  = 5 * time.Second
	elementTimeout = 10 * time.Second
)

// pageSession is the slice of browser.Session the operator dispatches
// through.
type pageSession interface {
	Run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error
	Navigate(ctx context.Context, url string) error
	Viewport() (width, height int)
}

// BrowserOperator executes actions against a live Chrome tab via CDP input
// dispatch. Normalized 0-1000 coordinates are scaled to the session
// viewport before dispatch.
type BrowserOperator struct {
	session pageSession
	logger  *zap.Logger
}

var _ Operator = (*BrowserOperator)(nil)

func NewBrowserOperator(session pageSession, logger *zap.Logger) *BrowserOperator {
	return &BrowserOperator{session: session, logger: logger}
}

// Execute dispatches one action. A panic inside an input sequence is
// recovered and reported as a plain failure so the attempt loop survives.
func (o *BrowserOperator) Execute(ctx context.Context, act *action.Action) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Action execution panicked", zap.Any("panic", r), zap.String("action", act.Render()))
			res = failure(fmt.Sprintf("panic: %v", r))
		}
	}()

	switch act.Kind {
	case action.KindFinished:
		return terminal(OutcomeFinished, act.Reason)
	case action.KindCallUser:
		return terminal(OutcomeCallUser, act.Reason)

	case action.KindClick:
		return o.click(ctx, act, input.Left, 1)
	case action.KindRightClick:
		return o.click(ctx, act, input.Right, 1)
	case action.KindDoubleClick:
		return o.click(ctx, act, input.Left, 2)
	case action.KindHover:
		x, y := o.toPixels(act.X, act.Y)
		return o.run(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))

	case action.KindDrag:
		return o.drag(ctx, act)
	case action.KindScroll:
		return o.scroll(ctx, act)

	case action.KindType:
		if act.Content == "" {
			return failure("empty text content")
		}
		return o.run(ctx, chromedp.KeyEvent(act.Content))

	case action.KindPressKey:
		key, ok := namedKey(act.Key)
		if !ok {
			return failure(fmt.Sprintf("unsupported key %q", act.Key))
		}
		return o.run(ctx, keyDown(key, 0), keyUp(key, 0))

	case action.KindHotkey:
		return o.hotkey(ctx, act.Keys)

	case action.KindWait:
		select {
		case <-time.After(time.Duration(act.Seconds) * time.Second):
			return success()
		case <-ctx.Done():
			return failure(ctx.Err().Error())
		}

	case action.KindNavigate:
		if err := o.session.Navigate(ctx, act.URL); err != nil {
			o.logger.Warn("Navigation failed", zap.String("url", act.URL), zap.Error(err))
			return failure(err.Error())
		}
		return success()

	case action.KindSelectOption:
		return o.selectOption(ctx, act)

	case action.KindWaitForElement:
		// Block until the document is interactive, then pause briefly so
		// late-rendering content has a chance to paint before the next
		// screenshot.
		if err := o.session.Run(ctx, elementTimeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			return failure(err.Error())
		}
		select {
		case <-time.After(500 * time.Millisecond):
			return success()
		case <-ctx.Done():
			return failure(ctx.Err().Error())
		}

	case action.KindOpenApp, action.KindFocusApp:
		return failure("app management is not available in a browser workflow")

	default:
		return failure(fmt.Sprintf("unsupported action %q", act.Name))
	}
}

func (o *BrowserOperator) toPixels(nx, ny int) (float64, float64) {
	w, h := o.session.Viewport()
	return float64(nx) * float64(w) / 1000.0, float64(ny) * float64(h) / 1000.0
}

func (o *BrowserOperator) run(ctx context.Context, actions ...chromedp.Action) Result {
	if err := o.session.Run(ctx, inputTimeout, actions...); err != nil {
		o.logger.Warn("Input dispatch failed", zap.Error(err))
		return failure(err.Error())
	}
	o.settle(ctx)
	return success()
}

// settle waits for the document to reach a ready state after an input, so
// a dispatched click that triggers navigation or re-render is reflected in
// the next screenshot. Pages that never settle fall through at the timeout.
func (o *BrowserOperator) settle(ctx context.Context) {
	if err := o.session.Run(ctx, settleTimeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		o.logger.Debug("Page did not settle after input", zap.Error(err))
	}
}

func (o *BrowserOperator) click(ctx context.Context, act *action.Action, button input.MouseButton, count int64) Result {
	x, y := o.toPixels(act.X, act.Y)
	actions := []chromedp.Action{
		input.DispatchMouseEvent(input.MouseMoved, x, y),
	}
	for i := int64(1); i <= count; i++ {
		actions = append(actions,
			input.DispatchMouseEvent(input.MousePressed, x, y).
				WithButton(button).WithClickCount(i),
			input.DispatchMouseEvent(input.MouseReleased, x, y).
				WithButton(button).WithClickCount(i),
		)
	}
	return o.run(ctx, actions...)
}

func (o *BrowserOperator) drag(ctx context.Context, act *action.Action) Result {
	x1, y1 := o.toPixels(act.X, act.Y)
	x2, y2 := o.toPixels(act.X2, act.Y2)
	midX, midY := (x1+x2)/2, (y1+y2)/2
	return o.run(ctx,
		input.DispatchMouseEvent(input.MouseMoved, x1, y1),
		input.DispatchMouseEvent(input.MousePressed, x1, y1).
			WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseMoved, midX, midY).
			WithButton(input.Left).WithButtons(1),
		input.DispatchMouseEvent(input.MouseMoved, x2, y2).
			WithButton(input.Left).WithButtons(1),
		input.DispatchMouseEvent(input.MouseReleased, x2, y2).
			WithButton(input.Left).WithClickCount(1),
	)
}

func (o *BrowserOperator) scroll(ctx context.Context, act *action.Action) Result {
	x, y := o.toPixels(act.X, act.Y)
	var dx, dy float64
	d := float64(act.Distance)
	switch act.Direction {
	case "up":
		dy = -d
	case "down":
		dy = d
	case "left":
		dx = -d
	case "right":
		dx = d
	}
	return o.run(ctx,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(dx).WithDeltaY(dy),
	)
}

func (o *BrowserOperator) hotkey(ctx context.Context, keys []string) Result {
	var mods input.Modifier
	main := ""
	for _, k := range keys {
		switch k {
		case "ctrl", "control":
			mods |= input.ModifierCtrl
		case "alt", "option":
			mods |= input.ModifierAlt
		case "shift":
			mods |= input.ModifierShift
		case "meta", "cmd", "command", "win":
			mods |= input.ModifierMeta
		default:
			main = k
		}
	}
	if main == "" {
		return failure("hotkey has no non-modifier key")
	}
	key, ok := namedKey(main)
	if !ok {
		if len(main) == 1 {
			key = main
		} else {
			return failure(fmt.Sprintf("unsupported key %q", main))
		}
	}
	return o.run(ctx, keyDown(key, mods), keyUp(key, mods))
}

func (o *BrowserOperator) selectOption(ctx context.Context, act *action.Action) Result {
	if act.Selector != "" {
		script := fmt.Sprintf(`(function(sel, val) {
			const node = document.querySelector(sel);
			if (!node) return false;
			node.value = val;
			node.dispatchEvent(new Event('input', { bubbles: true }));
			node.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		})(%s, %s)`, jsonString(act.Selector), jsonString(act.Value))
		var ok bool
		if res := o.run(ctx, chromedp.Evaluate(script, &ok)); res.Outcome != OutcomeSuccess {
			return res
		}
		if !ok {
			return failure(fmt.Sprintf("no element matches %q", act.Selector))
		}
		return success()
	}

	// Coordinate form: click to focus the control, then set the value on
	// the focused element.
	if res := o.click(ctx, act, input.Left, 1); res.Outcome != OutcomeSuccess {
		return res
	}
	script := fmt.Sprintf(`(function(val) {
		const node = document.activeElement;
		if (!node || node.tagName !== 'SELECT') return false;
		node.value = val;
		node.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})(%s)`, jsonString(act.Value))
	var ok bool
	if res := o.run(ctx, chromedp.Evaluate(script, &ok)); res.Outcome != OutcomeSuccess {
		return res
	}
	if !ok {
		return failure("focused element is not a select control")
	}
	return success()
}

func keyDown(key string, mods input.Modifier) *input.DispatchKeyEventParams {
	return input.DispatchKeyEvent(input.KeyDown).WithModifiers(mods).WithKey(key)
}

func keyUp(key string, mods input.Modifier) *input.DispatchKeyEventParams {
	return input.DispatchKeyEvent(input.KeyUp).WithModifiers(mods).WithKey(key)
}

// namedKey maps a lowercase key name to the CDP key identifier.
func namedKey(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "enter", "return":
		return "Enter", true
	case "tab":
		return "Tab", true
	case "esc", "escape":
		return "Escape", true
	case "backspace":
		return "Backspace", true
	case "delete", "del":
		return "Delete", true
	case "space", " ":
		return " ", true
	case "up", "arrowup":
		return "ArrowUp", true
	case "down", "arrowdown":
		return "ArrowDown", true
	case "left", "arrowleft":
		return "ArrowLeft", true
	case "right", "arrowright":
		return "ArrowRight", true
	case "home":
		return "Home", true
	case "end":
		return "End", true
	case "pageup", "page_up":
		return "PageUp", true
	case "pagedown", "page_down":
		return "PageDown", true
	default:
		if len(name) == 1 {
			return name, true
		}
		return "", false
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
