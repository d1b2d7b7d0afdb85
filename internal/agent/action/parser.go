// internal/agent/action/parser.go
package action

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	actionLineRe = regexp.MustCompile(`(?i)^\s*action\s*:`)
	callRe       = regexp.MustCompile(`(\w+)\s*\((.*)\)`)
	numberRe     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	thoughtRe    = regexp.MustCompile(`(?is)(?:thought|reflection|action_summary):\s*(.+?)(?:\naction:|$)`)
)

// Reasoning prefixes the model emits before its action line.
var thoughtPrefixes = []string{"thought:", "reflection:", "action_summary:"}

// ExtractThought returns the model's reasoning text: the remainder of the
// first line carrying a reasoning prefix, falling back to a full-text scan.
func ExtractThought(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)
		for _, prefix := range thoughtPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return strings.TrimSpace(stripped[len(prefix):])
			}
		}
	}
	if m := thoughtRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Parse extracts the first action declaration from raw model output. It
// returns nil when no parseable action is present; callers treat nil as a
// failed attempt, not a fatal error.
func Parse(raw string) *Action {
	var decl string
	for _, line := range strings.Split(raw, "\n") {
		if actionLineRe.MatchString(line) {
			decl = actionLineRe.ReplaceAllString(line, "")
			break
		}
	}
	if decl == "" {
		return nil
	}
	m := callRe.FindStringSubmatch(decl)
	if m == nil {
		return nil
	}
	name, rawArgs := m[1], m[2]
	kind := KindFromName(name)
	args := splitArgs(rawArgs)

	switch kind {
	case KindClick, KindRightClick, KindDoubleClick, KindHover:
		c, ok := parseCoords(rawArgs, 2)
		if !ok {
			return nil
		}
		return &Action{Kind: kind, X: c[0], Y: c[1], HasCoords: true}

	case KindDrag:
		c, ok := parseCoords(rawArgs, 4)
		if !ok {
			return nil
		}
		return &Action{
			Kind: KindDrag,
			X:    c[0], Y: c[1],
			X2: c[2], Y2: c[3],
			HasCoords: true,
		}

	case KindScroll:
		return parseScroll(args)

	case KindType:
		if len(args) == 0 {
			return nil
		}
		return &Action{Kind: KindType, Content: args[0].value}

	case KindHotkey:
		if len(args) == 0 {
			return nil
		}
		keys := make([]string, 0, len(args))
		for _, a := range args {
			if k := strings.ToLower(strings.TrimSpace(a.value)); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return nil
		}
		return &Action{Kind: KindHotkey, Keys: keys}

	case KindWait:
		seconds := 1
		if len(args) > 0 {
			if f, err := strconv.ParseFloat(strings.TrimSpace(args[0].value), 64); err == nil {
				seconds = int(f)
			}
		}
		if seconds < 1 {
			seconds = 1
		}
		if seconds > 30 {
			seconds = 30
		}
		return &Action{Kind: KindWait, Seconds: seconds}

	case KindPressKey:
		if len(args) == 0 || args[0].value == "" {
			return nil
		}
		return &Action{Kind: KindPressKey, Key: strings.ToLower(args[0].value)}

	case KindNavigate:
		if len(args) == 0 || strings.TrimSpace(args[0].value) == "" {
			return nil
		}
		return &Action{Kind: KindNavigate, URL: strings.TrimSpace(args[0].value)}

	case KindSelectOption:
		return parseSelectOption(args)

	case KindWaitForElement:
		if len(args) == 0 {
			return nil
		}
		return &Action{Kind: KindWaitForElement, Description: args[0].value}

	case KindOpenApp, KindFocusApp:
		if len(args) == 0 || args[0].value == "" {
			return nil
		}
		return &Action{Kind: kind, AppName: args[0].value}

	case KindFinished, KindCallUser:
		act := &Action{Kind: kind}
		if len(args) > 0 {
			act.Reason = args[0].value
		}
		return act

	default:
		return &Action{Kind: KindUnknown, Name: name}
	}
}

func parseScroll(args []arg) *Action {
	act := &Action{Kind: KindScroll, X: 500, Y: 500, Distance: 300}
	named := false
	for _, a := range args {
		if a.key == "" {
			continue
		}
		named = true
		switch strings.ToLower(a.key) {
		case "direction":
			act.Direction = strings.ToLower(a.value)
		case "distance", "amount":
			if n, err := strconv.Atoi(a.value); err == nil {
				act.Distance = n
			}
		case "x":
			if n, err := strconv.Atoi(a.value); err == nil {
				act.X = clampCoord(n)
			}
		case "y":
			if n, err := strconv.Atoi(a.value); err == nil {
				act.Y = clampCoord(n)
			}
		}
	}
	if !named {
		// Positional form: scroll(x, y, direction[, distance]) or
		// scroll(direction[, distance]).
		vals := make([]string, 0, len(args))
		for _, a := range args {
			vals = append(vals, a.value)
		}
		switch {
		case len(vals) >= 3:
			x, errX := strconv.Atoi(vals[0])
			y, errY := strconv.Atoi(vals[1])
			if errX != nil || errY != nil {
				return nil
			}
			act.X, act.Y = clampCoord(x), clampCoord(y)
			act.Direction = strings.ToLower(vals[2])
			if len(vals) > 3 {
				if n, err := strconv.Atoi(vals[3]); err == nil {
					act.Distance = n
				}
			}
		case len(vals) >= 1:
			act.Direction = strings.ToLower(vals[0])
			if len(vals) > 1 {
				if n, err := strconv.Atoi(vals[1]); err == nil {
					act.Distance = n
				}
			}
		}
	}
	switch act.Direction {
	case "up", "down", "left", "right":
	default:
		act.Direction = "down"
	}
	if act.Distance <= 0 {
		act.Distance = 300
	}
	return act
}

func parseSelectOption(args []arg) *Action {
	if len(args) >= 3 {
		x, errX := strconv.Atoi(args[0].value)
		y, errY := strconv.Atoi(args[1].value)
		if errX == nil && errY == nil {
			return &Action{
				Kind: KindSelectOption,
				X:    clampCoord(x), Y: clampCoord(y),
				HasCoords: true,
				Value:     args[2].value,
			}
		}
	}
	if len(args) >= 2 {
		return &Action{Kind: KindSelectOption, Selector: args[0].value, Value: args[1].value}
	}
	return nil
}

// parseCoords extracts the first n decimal numbers from the raw argument
// string, rounding floats to the nearest integer. Non-numeric arguments
// (element labels, keywords) are skipped rather than failing the parse.
func parseCoords(rawArgs string, n int) ([]int, bool) {
	matches := numberRe.FindAllString(rawArgs, n)
	if len(matches) < n {
		return nil, false
	}
	out := make([]int, n)
	for i, m := range matches {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil, false
		}
		out[i] = clampCoord(int(math.Round(f)))
	}
	return out, true
}

// arg is one parsed argument. key is non-empty for keyword arguments.
type arg struct {
	key   string
	value string
}

// splitArgs splits a call's argument list on top-level commas, honoring
// quoted strings with backslash escapes.
func splitArgs(s string) []arg {
	var out []arg
	var cur strings.Builder
	var quoteCh byte
	escaped := false
	flush := func() {
		piece := strings.TrimSpace(cur.String())
		cur.Reset()
		if piece == "" {
			return
		}
		out = append(out, parseArg(piece))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\' && quoteCh != 0:
			cur.WriteByte(c)
			escaped = true
		case quoteCh != 0:
			cur.WriteByte(c)
			if c == quoteCh {
				quoteCh = 0
			}
		case c == '"' || c == '\'':
			cur.WriteByte(c)
			quoteCh = c
		case c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

func parseArg(piece string) arg {
	if eq := strings.IndexByte(piece, '='); eq > 0 && !strings.ContainsAny(piece[:eq], `"'`) {
		return arg{
			key:   strings.TrimSpace(piece[:eq]),
			value: unquote(strings.TrimSpace(piece[eq+1:])),
		}
	}
	return arg{value: unquote(piece)}
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && last == first {
			inner := s[1 : len(s)-1]
			inner = strings.ReplaceAll(inner, `\`+string(first), string(first))
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			return inner
		}
	}
	return s
}
