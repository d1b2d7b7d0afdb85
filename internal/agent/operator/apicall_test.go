// internal/agent/operator/apicall_test.go
package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/integrations"
	"github.com/varga-labs/sherpa-cli/internal/store"
)

type stubConnector struct {
	name      string
	result    map[string]any
	err       error
	lastToken string
	lastArgs  map[string]any
	lastMeth  string
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Execute(_ context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	s.lastMeth = method
	s.lastArgs = args
	s.lastToken = token
	return s.result, s.err
}

func apiStep(service, method string, args map[string]any) schemas.Step {
	params := map[string]any{"service": service, "method": method}
	if args != nil {
		params["args"] = args
	}
	return schemas.Step{ID: "s1", Action: "api_call", Params: params}
}

func newCaller(t *testing.T, conn *stubConnector) (*APICaller, *store.MemoryStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := integrations.NewRegistry(logger)
	if conn != nil {
		registry.Register(conn)
	}
	runs := store.NewMemoryStore(logger)
	return NewAPICaller(registry, runs, logger), runs
}

func TestAPICaller_Success(t *testing.T) {
	conn := &stubConnector{name: "crm", result: map[string]any{"ok": true, "id": "42"}}
	caller, runs := newCaller(t, conn)
	runs.SetAccessToken("user-1", "crm", "tok-crm")

	result, err := caller.ExecuteStep(context.Background(), "user-1",
		apiStep("crm", "create_contact", map[string]any{"name": "Ada"}))

	require.NoError(t, err)
	assert.Equal(t, "42", result["id"])
	assert.Equal(t, "create_contact", conn.lastMeth)
	assert.Equal(t, "tok-crm", conn.lastToken)
	assert.Equal(t, "Ada", conn.lastArgs["name"])
}

func TestAPICaller_MissingServiceOrMethod(t *testing.T) {
	caller, _ := newCaller(t, nil)

	_, err := caller.ExecuteStep(context.Background(), "user-1",
		schemas.Step{ID: "s1", Action: "api_call", Params: map[string]any{"service": "slack"}})

	assert.ErrorContains(t, err, "missing service or method")
}

func TestAPICaller_UnknownService(t *testing.T) {
	caller, _ := newCaller(t, nil)

	_, err := caller.ExecuteStep(context.Background(), "user-1", apiStep("fax", "send", nil))

	assert.ErrorContains(t, err, "no connector registered")
}

func TestAPICaller_UnconnectedService(t *testing.T) {
	conn := &stubConnector{name: "crm", result: map[string]any{"ok": true}}
	caller, _ := newCaller(t, conn)

	_, err := caller.ExecuteStep(context.Background(), "user-1", apiStep("crm", "create_contact", nil))

	assert.ErrorContains(t, err, "user has not connected crm")
	assert.Empty(t, conn.lastMeth, "connector is never invoked without a token")
}

func TestAPICaller_ServiceReportedFailure(t *testing.T) {
	conn := &stubConnector{name: "crm", result: map[string]any{"ok": false, "error": "rate limited"}}
	caller, runs := newCaller(t, conn)
	runs.SetAccessToken("user-1", "crm", "tok-crm")

	result, err := caller.ExecuteStep(context.Background(), "user-1", apiStep("crm", "create_contact", nil))

	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limited")
	assert.Equal(t, false, result["ok"], "the failed result still comes back for trace logging")
}
