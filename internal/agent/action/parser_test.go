// internal/agent/action/parser_test.go
package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Click(t *testing.T) {
	raw := "Thought: The submit button is near the center.\nAction: Click(500, 300)"
	act := Parse(raw)
	require.NotNil(t, act)
	assert.Equal(t, KindClick, act.Kind)
	assert.Equal(t, 500, act.X)
	assert.Equal(t, 300, act.Y)
	assert.True(t, act.HasCoords)
	assert.Equal(t, "The submit button is near the center.", ExtractThought(raw))
}

func TestParse_NameNormalization(t *testing.T) {
	cases := map[string]Kind{
		"Action: RightClick(10, 20)":       KindRightClick,
		"Action: right_click(10, 20)":      KindRightClick,
		"Action: DoubleClick(10, 20)":      KindDoubleClick,
		"Action: press_key(\"enter\")":     KindPressKey,
		"Action: PressKey(\"enter\")":      KindPressKey,
		"action: hover(1, 2)":              KindHover,
		"Action: wait_for_element(\"ok\")": KindWaitForElement,
	}
	for raw, want := range cases {
		act := Parse(raw)
		require.NotNil(t, act, raw)
		assert.Equal(t, want, act.Kind, raw)
	}
}

func TestParse_CoordinateClamp(t *testing.T) {
	act := Parse("Action: click(-50, 1400)")
	require.NotNil(t, act)
	assert.Equal(t, 0, act.X)
	assert.Equal(t, 1000, act.Y)

	act = Parse("Action: drag(-1, 0, 1001, 999)")
	require.NotNil(t, act)
	assert.Equal(t, 0, act.X)
	assert.Equal(t, 0, act.Y)
	assert.Equal(t, 1000, act.X2)
	assert.Equal(t, 999, act.Y2)
}

func TestParse_FloatCoordinatesRound(t *testing.T) {
	act := Parse("Action: Click(500.5, 300.4)")
	require.NotNil(t, act)
	assert.Equal(t, 501, act.X)
	assert.Equal(t, 300, act.Y)

	act = Parse("Action: drag(10.6, 20.2, 30.5, 39.9)")
	require.NotNil(t, act)
	assert.Equal(t, 11, act.X)
	assert.Equal(t, 20, act.Y)
	assert.Equal(t, 31, act.X2)
	assert.Equal(t, 40, act.Y2)
}

func TestParse_ClickSkipsNonNumericArgs(t *testing.T) {
	act := Parse(`Action: Click("submit", 500, 300)`)
	require.NotNil(t, act)
	assert.Equal(t, 500, act.X)
	assert.Equal(t, 300, act.Y)
}

func TestExtractThought(t *testing.T) {
	cases := map[string]string{
		"Thought: press the button\nAction: click(1, 2)":          "press the button",
		"Reflection: the modal blocked my click\nAction: wait(2)": "the modal blocked my click",
		"Action_Summary: clicked submit\nAction: click(1, 2)":     "clicked submit",
		"reflection: lowercase works too\nAction: wait(2)":        "lowercase works too",
		// Prefix mid-line: the full-text fallback catches it.
		"Analysis - Thought: try the sidebar link\nAction: click(1, 2)": "try the sidebar link",
		// No reasoning prefix anywhere yields nothing, not the preamble.
		"I will click the button now.\nAction: click(1, 2)": "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, ExtractThought(raw), raw)
	}
}

func TestParse_FirstActionLineWins(t *testing.T) {
	raw := "Thought: try the first.\nAction: click(100, 100)\nAction: click(900, 900)"
	act := Parse(raw)
	require.NotNil(t, act)
	assert.Equal(t, 100, act.X)
	assert.Equal(t, 100, act.Y)
}

func TestParse_Type(t *testing.T) {
	act := Parse(`Action: type("hello, \"world\"")`)
	require.NotNil(t, act)
	assert.Equal(t, KindType, act.Kind)
	assert.Equal(t, `hello, "world"`, act.Content)
}

func TestParse_Hotkey(t *testing.T) {
	act := Parse(`Action: hotkey("Ctrl", "Shift", "T")`)
	require.NotNil(t, act)
	assert.Equal(t, []string{"ctrl", "shift", "t"}, act.Keys)
}

func TestParse_WaitClamp(t *testing.T) {
	for raw, want := range map[string]int{
		"Action: wait(5)":    5,
		"Action: wait(0)":    1,
		"Action: wait(120)":  30,
		"Action: wait()":     1,
		"Action: wait(2.5)":  2,
		"Action: wait(abc)":  1,
		"Action: wait(29.9)": 29,
	} {
		act := Parse(raw)
		require.NotNil(t, act, raw)
		assert.Equal(t, want, act.Seconds, raw)
	}
}

func TestParse_NavigateEmptyURL(t *testing.T) {
	assert.Nil(t, Parse(`Action: navigate("")`))
	act := Parse(`Action: navigate("https://example.com/login")`)
	require.NotNil(t, act)
	assert.Equal(t, "https://example.com/login", act.URL)
}

func TestParse_ScrollNamed(t *testing.T) {
	act := Parse(`Action: scroll(direction='down', amount=450)`)
	require.NotNil(t, act)
	assert.Equal(t, KindScroll, act.Kind)
	assert.Equal(t, "down", act.Direction)
	assert.Equal(t, 450, act.Distance)
	assert.Equal(t, 500, act.X)
	assert.Equal(t, 500, act.Y)
}

func TestParse_ScrollPositional(t *testing.T) {
	act := Parse("Action: scroll(400, 600, up, 250)")
	require.NotNil(t, act)
	assert.Equal(t, 400, act.X)
	assert.Equal(t, 600, act.Y)
	assert.Equal(t, "up", act.Direction)
	assert.Equal(t, 250, act.Distance)

	act = Parse("Action: scroll(down)")
	require.NotNil(t, act)
	assert.Equal(t, "down", act.Direction)
	assert.Equal(t, 300, act.Distance)
}

func TestParse_ScrollBadDirectionDefaultsDown(t *testing.T) {
	act := Parse("Action: scroll(direction='sideways')")
	require.NotNil(t, act)
	assert.Equal(t, "down", act.Direction)
}

func TestParse_SelectOption(t *testing.T) {
	act := Parse(`Action: select_option("#country", "Iceland")`)
	require.NotNil(t, act)
	assert.Equal(t, "#country", act.Selector)
	assert.Equal(t, "Iceland", act.Value)
	assert.False(t, act.HasCoords)

	act = Parse(`Action: select_option(420, 510, "Iceland")`)
	require.NotNil(t, act)
	assert.True(t, act.HasCoords)
	assert.Equal(t, 420, act.X)
	assert.Equal(t, "Iceland", act.Value)
}

func TestParse_Terminal(t *testing.T) {
	act := Parse(`Action: finished("form submitted")`)
	require.NotNil(t, act)
	assert.Equal(t, KindFinished, act.Kind)
	assert.Equal(t, "form submitted", act.Reason)

	act = Parse(`Action: call_user("captcha on screen")`)
	require.NotNil(t, act)
	assert.Equal(t, KindCallUser, act.Kind)
	assert.Equal(t, "captcha on screen", act.Reason)

	act = Parse("Action: finished()")
	require.NotNil(t, act)
	assert.Empty(t, act.Reason)
}

func TestParse_UnknownAndUnparseable(t *testing.T) {
	assert.Nil(t, Parse("I think we should click the button."))
	assert.Nil(t, Parse("Action: click near the top"))
	assert.Nil(t, Parse("Action: click(abc, def)"))

	act := Parse("Action: teleport(1, 2)")
	require.NotNil(t, act)
	assert.Equal(t, KindUnknown, act.Kind)
	assert.Equal(t, "teleport", act.Name)
}

func TestRender_RoundTrip(t *testing.T) {
	samples := []string{
		"Action: click(500, 300)",
		"Action: drag(10, 20, 30, 40)",
		`Action: type("user@example.com")`,
		`Action: hotkey("ctrl", "c")`,
		"Action: wait(5)",
		`Action: press_key("enter")`,
		`Action: navigate("https://example.com")`,
		`Action: select_option("#lang", "Go")`,
		"Action: scroll(400, 600, up, 250)",
		`Action: hover(12, 34)`,
		`Action: wait_for_element("login form")`,
		`Action: open_app("Terminal")`,
		`Action: call_user("stuck on captcha")`,
	}
	for _, raw := range samples {
		first := Parse(raw)
		require.NotNil(t, first, raw)
		second := Parse("Action: " + first.Render())
		require.NotNil(t, second, raw)
		assert.Equal(t, first, second, raw)
	}
}

func TestSetGroundedCoords(t *testing.T) {
	act := Parse("Action: click(100, 100)")
	require.NotNil(t, act)
	act.SetGroundedCoords(640, 1200)
	assert.Equal(t, 640, act.X)
	assert.Equal(t, 1000, act.Y)
}
