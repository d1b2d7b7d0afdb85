// internal/agent/action/action.go
package action

import (
	"fmt"
	"strings"
)

// Kind is the closed set of action kinds the agent can execute. Unknown
// model output maps to KindUnknown rather than being silently executed.
type Kind string

const (
	KindClick          Kind = "click"
	KindRightClick     Kind = "right_click"
	KindDoubleClick    Kind = "double_click"
	KindDrag           Kind = "drag"
	KindScroll         Kind = "scroll"
	KindType           Kind = "type"
	KindHotkey         Kind = "hotkey"
	KindWait           Kind = "wait"
	KindPressKey       Kind = "press_key"
	KindNavigate       Kind = "navigate"
	KindSelectOption   Kind = "select_option"
	KindHover          Kind = "hover"
	KindWaitForElement Kind = "wait_for_element"
	KindOpenApp        Kind = "open_app"
	KindFocusApp       Kind = "focus_app"
	KindFinished       Kind = "finished"
	KindCallUser       Kind = "call_user"
	KindUnknown        Kind = "unknown"
)

// kindByName maps a lowercased, underscore-stripped action name to its kind.
var kindByName = map[string]Kind{
	"click":          KindClick,
	"rightclick":     KindRightClick,
	"doubleclick":    KindDoubleClick,
	"drag":           KindDrag,
	"scroll":         KindScroll,
	"type":           KindType,
	"hotkey":         KindHotkey,
	"wait":           KindWait,
	"presskey":       KindPressKey,
	"navigate":       KindNavigate,
	"selectoption":   KindSelectOption,
	"hover":          KindHover,
	"waitforelement": KindWaitForElement,
	"openapp":        KindOpenApp,
	"focusapp":       KindFocusApp,
	"finished":       KindFinished,
	"calluser":       KindCallUser,
}

// KindFromName normalizes a raw action name ("RightClick", "press_key") to
// its Kind. Unrecognized names return KindUnknown.
func KindFromName(name string) Kind {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
	if k, ok := kindByName[normalized]; ok {
		return k
	}
	return KindUnknown
}

// Action is a normalized action record produced fresh per attempt by the
// parser and consumed once by the operator. Which fields are meaningful
// depends on Kind. Coordinates are in the normalized 0-1000 space.
type Action struct {
	Kind Kind
	// Name preserves the raw action name for KindUnknown records.
	Name string

	X, Y      int
	X2, Y2    int
	HasCoords bool

	Direction string
	Distance  int

	Content     string
	Keys        []string
	Seconds     int
	Key         string
	URL         string
	Selector    string
	Value       string
	Description string
	AppName     string
	Reason      string
}

// IsPointerTarget reports whether this action targets a screen location and
// so benefits from element grounding.
func (a *Action) IsPointerTarget() bool {
	switch a.Kind {
	case KindClick, KindRightClick, KindDoubleClick, KindHover, KindDrag:
		return true
	}
	return false
}

// SetGroundedCoords overrides the action's target with a grounded location.
// Drag actions ground their start point.
func (a *Action) SetGroundedCoords(x, y int) {
	a.X = clampCoord(x)
	a.Y = clampCoord(y)
	a.HasCoords = true
}

// Render produces the canonical trace string, e.g. "click(500, 300)". The
// rendering round-trips through Parse when prefixed with "Action: ".
func (a *Action) Render() string {
	name := string(a.Kind)
	if a.Kind == KindUnknown {
		name = a.Name
	}
	var args []string
	switch a.Kind {
	case KindClick, KindRightClick, KindDoubleClick, KindHover:
		args = []string{fmt.Sprint(a.X), fmt.Sprint(a.Y)}
	case KindDrag:
		args = []string{fmt.Sprint(a.X), fmt.Sprint(a.Y), fmt.Sprint(a.X2), fmt.Sprint(a.Y2)}
	case KindScroll:
		args = []string{fmt.Sprint(a.X), fmt.Sprint(a.Y), a.Direction}
		if a.Distance > 0 {
			args = append(args, fmt.Sprint(a.Distance))
		}
	case KindType:
		args = []string{quote(a.Content)}
	case KindHotkey:
		for _, k := range a.Keys {
			args = append(args, quote(k))
		}
	case KindWait:
		args = []string{fmt.Sprint(a.Seconds)}
	case KindPressKey:
		args = []string{quote(a.Key)}
	case KindNavigate:
		args = []string{quote(a.URL)}
	case KindSelectOption:
		if a.HasCoords {
			args = []string{fmt.Sprint(a.X), fmt.Sprint(a.Y), quote(a.Value)}
		} else {
			args = []string{quote(a.Selector), quote(a.Value)}
		}
	case KindWaitForElement:
		args = []string{quote(a.Description)}
	case KindOpenApp, KindFocusApp:
		args = []string{quote(a.AppName)}
	case KindFinished, KindCallUser:
		if a.Reason != "" {
			args = []string{quote(a.Reason)}
		}
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func clampCoord(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}
