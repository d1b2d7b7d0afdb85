// internal/agent/operator/direct.go
package operator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/browser"
)

const (
	selectorTimeout = 20 * time.Second
	waitElemTimeout = 15 * time.Second
)

// DirectExecutor runs deterministic steps straight against the DOM, no
// model in the loop. Selector params resolve via CSS queries; coordinate
// params are raw viewport pixels as authored.
type DirectExecutor struct {
	session *browser.Session
	logger  *zap.Logger
}

func NewDirectExecutor(session *browser.Session, logger *zap.Logger) *DirectExecutor {
	return &DirectExecutor{session: session, logger: logger}
}

// Execute runs one deterministic step. An error means the driver should
// retry or hand the step to the full agent loop.
func (d *DirectExecutor) Execute(ctx context.Context, step schemas.Step) error {
	kind := strings.ReplaceAll(strings.ToLower(step.Action), "_", "")
	selector := step.Param("selector")

	var err error
	switch kind {
	case "navigate":
		url := step.Param("url")
		if url == "" {
			return fmt.Errorf("navigate step %s has no url", step.ID)
		}
		err = d.session.Navigate(ctx, url)

	case "clickat", "click":
		if selector != "" {
			err = d.session.Run(ctx, selectorTimeout,
				chromedp.WaitVisible(selector, chromedp.ByQuery),
				chromedp.Click(selector, chromedp.ByQuery),
			)
		} else {
			x, y, ok := stepCoords(step)
			if !ok {
				return fmt.Errorf("click step %s has neither selector nor coords", step.ID)
			}
			err = d.clickXY(ctx, x, y)
		}

	case "typetextat", "type":
		text := step.Param("text")
		if selector != "" {
			err = d.session.Run(ctx, selectorTimeout,
				chromedp.WaitVisible(selector, chromedp.ByQuery),
				chromedp.Clear(selector, chromedp.ByQuery),
				chromedp.SendKeys(selector, text, chromedp.ByQuery),
			)
		} else {
			x, y, ok := stepCoords(step)
			if !ok {
				return fmt.Errorf("type step %s has neither selector nor coords", step.ID)
			}
			if err = d.clickXY(ctx, x, y); err == nil {
				err = d.session.Run(ctx, selectorTimeout, chromedp.KeyEvent(text))
			}
		}

	case "hover":
		if selector != "" {
			script := fmt.Sprintf(`(function(sel) {
				const node = document.querySelector(sel);
				if (!node) return false;
				node.scrollIntoView({ block: 'center' });
				node.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
				node.dispatchEvent(new MouseEvent('mousemove', { bubbles: true }));
				return true;
			})(%s)`, jsonString(selector))
			var found bool
			err = d.session.Run(ctx, selectorTimeout, chromedp.Evaluate(script, &found))
			if err == nil && !found {
				err = fmt.Errorf("no element matches %q", selector)
			}
		} else {
			x, y, ok := stepCoords(step)
			if !ok {
				return fmt.Errorf("hover step %s has neither selector nor coords", step.ID)
			}
			err = d.session.Run(ctx, selectorTimeout,
				input.DispatchMouseEvent(input.MouseMoved, x, y))
		}

	case "waitforelement":
		waitErr := d.session.Run(ctx, waitElemTimeout,
			chromedp.WaitVisible(selector, chromedp.ByQuery))
		if waitErr != nil {
			// Non-fatal: the next observation verifies page state anyway.
			d.logger.Warn("wait_for_element timed out",
				zap.String("selector", selector), zap.Error(waitErr))
		}
		return nil

	case "wait":
		seconds := intParam(step, "seconds", 2)
		if seconds > 60 {
			seconds = 60
		}
		select {
		case <-time.After(time.Duration(seconds) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil

	case "scroll":
		direction := strings.ToLower(step.Param("direction"))
		if direction == "" {
			direction = "down"
		}
		amount := float64(intParam(step, "amount", 500))
		var dx, dy float64
		switch direction {
		case "up":
			dy = -amount
		case "down":
			dy = amount
		case "left":
			dx = -amount
		case "right":
			dx = amount
		}
		w, h := d.session.Viewport()
		cx, cy := float64(w)/2, float64(h)/2
		err = d.session.Run(ctx, selectorTimeout,
			input.DispatchMouseEvent(input.MouseMoved, cx, cy),
			input.DispatchMouseEvent(input.MouseWheel, cx, cy).
				WithDeltaX(dx).WithDeltaY(dy),
		)

	case "presskey":
		name := step.Param("key")
		if name == "" {
			name = "enter"
		}
		key, ok := namedKey(name)
		if !ok {
			return fmt.Errorf("unsupported key %q", name)
		}
		err = d.session.Run(ctx, selectorTimeout, keyDown(key, 0), keyUp(key, 0))

	case "selectoption":
		if selector == "" {
			return fmt.Errorf("select_option step %s has no selector", step.ID)
		}
		script := fmt.Sprintf(`(function(sel, val) {
			const node = document.querySelector(sel);
			if (!node) return false;
			node.value = val;
			node.dispatchEvent(new Event('input', { bubbles: true }));
			node.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		})(%s, %s)`, jsonString(selector), jsonString(step.Param("value")))
		var found bool
		err = d.session.Run(ctx, selectorTimeout, chromedp.Evaluate(script, &found))
		if err == nil && !found {
			err = fmt.Errorf("no element matches %q", selector)
		}

	default:
		return fmt.Errorf("action %q is not directly executable", step.Action)
	}

	if err != nil {
		return err
	}
	// Let in-flight navigations settle before the next step observes.
	if settleErr := d.session.Run(ctx, 5*time.Second,
		chromedp.WaitReady("body", chromedp.ByQuery)); settleErr != nil {
		d.logger.Debug("Post-step settle skipped", zap.Error(settleErr))
	}
	return nil
}

func (d *DirectExecutor) clickXY(ctx context.Context, x, y float64) error {
	return d.session.Run(ctx, selectorTimeout,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).WithClickCount(1),
	)
}

// stepCoords reads explicit pixel coordinates from step params.
func stepCoords(step schemas.Step) (float64, float64, bool) {
	if !step.HasParam("x") || !step.HasParam("y") {
		return 0, 0, false
	}
	return floatParam(step, "x"), floatParam(step, "y"), true
}

func floatParam(step schemas.Step, key string) float64 {
	switch v := step.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func intParam(step schemas.Step, key string, def int) int {
	switch v := step.Params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
