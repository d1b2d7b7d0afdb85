package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/varga-labs/sherpa-cli/api/schemas"
)

// recordingClient is a minimal schemas.LLMClient for routing assertions.
type recordingClient struct {
	name     string
	response string
	err      error
	calls    int
	lastReq  schemas.GenerationRequest
}

func (c *recordingClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	c.calls++
	c.lastReq = req
	return c.response, c.err
}

// setupRouter creates a standard LLMRouter instance for testing, along with its mocks and a log observer.
func setupRouter(t *testing.T) (*LLMRouter, *recordingClient, *recordingClient, *observer.ObservedLogs) {
	t.Helper()
	loggerCore, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(loggerCore)

	fastClient := &recordingClient{name: "fast", response: "fast-response"}
	powerfulClient := &recordingClient{name: "powerful", response: "powerful-response"}

	router, err := NewLLMRouter(logger, fastClient, powerfulClient)
	require.NoError(t, err, "NewLLMRouter should initialize successfully")

	return router, fastClient, powerfulClient, observedLogs
}

func TestNewLLMRouter_Success(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	require.NotNil(t, router)
	assert.Equal(t, fastClient, router.clients[schemas.TierFast])
	assert.Equal(t, powerfulClient, router.clients[schemas.TierPowerful])
}

func TestNewLLMRouter_Failure_MissingClients(t *testing.T) {
	logger := zap.NewNop()
	validClient := new(recordingClient)

	tests := []struct {
		name     string
		fast     schemas.LLMClient
		powerful schemas.LLMClient
	}{
		{"Missing Fast Client", nil, validClient},
		{"Missing Powerful Client", validClient, nil},
		{"Missing Both Clients", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewLLMRouter(logger, tt.fast, tt.powerful)
			assert.Error(t, err)
			assert.Nil(t, router)
			assert.Contains(t, err.Error(), "both fast and powerful tier clients must be provided")
		})
	}
}

func TestGenerate_Routing_TierFast(t *testing.T) {
	router, fastClient, powerfulClient, observedLogs := setupRouter(t)

	resp, err := router.Generate(context.Background(), schemas.GenerationRequest{
		Tier:  schemas.TierFast,
		Parts: []schemas.Part{schemas.TextPart("describe the page")},
	})

	require.NoError(t, err)
	assert.Equal(t, "fast-response", resp)
	assert.Equal(t, 1, fastClient.calls)
	assert.Equal(t, 0, powerfulClient.calls)

	logs := observedLogs.FilterMessage("Routing LLM request").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "fast", logs[0].ContextMap()["tier"])
}

func TestGenerate_Routing_TierPowerful(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	resp, err := router.Generate(context.Background(), schemas.GenerationRequest{
		Tier: schemas.TierPowerful,
	})

	require.NoError(t, err)
	assert.Equal(t, "powerful-response", resp)
	assert.Equal(t, 0, fastClient.calls)
	assert.Equal(t, 1, powerfulClient.calls)
}

func TestGenerate_UnsetTierDefaultsToPowerful(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	_, err := router.Generate(context.Background(), schemas.GenerationRequest{})

	require.NoError(t, err)
	assert.Equal(t, 0, fastClient.calls)
	assert.Equal(t, 1, powerfulClient.calls)
}

func TestGenerate_PropagatesClientError(t *testing.T) {
	router, fastClient, _, _ := setupRouter(t)
	fastClient.err = errors.New("quota exceeded")

	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})

	assert.ErrorContains(t, err, "quota exceeded")
}

func TestGenerate_UnknownTier(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.ModelTier("budget")})

	assert.ErrorContains(t, err, "no LLM client configured for tier")
}
