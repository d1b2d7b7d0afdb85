// internal/agent/operator/browser_test.go
package operator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/varga-labs/sherpa-cli/internal/agent/action"
)

// stubSession records chromedp batches without a live browser. Each call
// to Run pops the next queued error, defaulting to nil.
type stubSession struct {
	batches   [][]chromedp.Action
	errs      []error
	navigated []string
}

func (s *stubSession) Run(_ context.Context, _ time.Duration, actions ...chromedp.Action) error {
	s.batches = append(s.batches, actions)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *stubSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *stubSession) Viewport() (int, int) { return 1000, 1000 }

func newBrowserOperator(t *testing.T, session *stubSession) *BrowserOperator {
	t.Helper()
	return NewBrowserOperator(session, zaptest.NewLogger(t))
}

func TestBrowserOperator_ClickWaitsForPageReady(t *testing.T) {
	session := &stubSession{}
	op := newBrowserOperator(t, session)

	res := op.Execute(context.Background(), &action.Action{Kind: action.KindClick, X: 500, Y: 300, HasCoords: true})
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	// One batch for the mouse events, one for the ready wait afterwards.
	require.Len(t, session.batches, 2)
	require.NotEmpty(t, session.batches[0])
	move, ok := session.batches[0][0].(*input.DispatchMouseEventParams)
	require.True(t, ok)
	assert.Equal(t, float64(500), move.X)
	assert.Equal(t, float64(300), move.Y)
	assert.Len(t, session.batches[1], 1, "settle dispatches only the ready wait")
}

func TestBrowserOperator_FailedInputSkipsSettle(t *testing.T) {
	session := &stubSession{errs: []error{errors.New("target crashed")}}
	op := newBrowserOperator(t, session)

	res := op.Execute(context.Background(), &action.Action{Kind: action.KindClick, X: 10, Y: 10, HasCoords: true})
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Len(t, session.batches, 1)
}

func TestBrowserOperator_SettleFailureStillSucceeds(t *testing.T) {
	session := &stubSession{errs: []error{nil, errors.New("page never settled")}}
	op := newBrowserOperator(t, session)

	res := op.Execute(context.Background(), &action.Action{Kind: action.KindType, Content: "hello"})
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Len(t, session.batches, 2)
}

func TestBrowserOperator_WaitForElementBlocksOnReady(t *testing.T) {
	session := &stubSession{}
	op := newBrowserOperator(t, session)

	res := op.Execute(context.Background(), &action.Action{Kind: action.KindWaitForElement})
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	require.Len(t, session.batches, 1)

	session.errs = []error{errors.New("deadline exceeded")}
	res = op.Execute(context.Background(), &action.Action{Kind: action.KindWaitForElement})
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Contains(t, res.Detail, "deadline exceeded")
}
