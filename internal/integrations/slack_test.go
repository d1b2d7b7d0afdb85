// internal/integrations/slack_test.go
package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport redirects every request to a test server, preserving the
// original path so handlers can route on it.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func testClient(t *testing.T, handler http.Handler) *http.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: rewriteTransport{target: target}}
}

func TestSlackConnector_SendMessage(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat.postMessage", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"ok": true, "ts": "171234.5678"}`))
	}))

	c := NewSlackConnector(client)
	result, err := c.Execute(context.Background(), "send_message",
		map[string]any{"channel": "#general", "text": "deploy done"}, "xoxb-1")

	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, "171234.5678", result["ts"])
	assert.Equal(t, "Bearer xoxb-1", gotAuth)
	assert.Equal(t, "#general", gotBody["channel"])
	assert.Equal(t, "deploy done", gotBody["text"])
}

func TestSlackConnector_ListChannels(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations.list", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"ok": true, "channels": [{"id": "C1", "name": "general", "is_private": false}]}`))
	}))

	c := NewSlackConnector(client)
	result, err := c.Execute(context.Background(), "list_channels", nil, "xoxb-1")

	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
	channels, ok := result["channels"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, channels, 1)
	assert.Equal(t, "C1", channels[0]["id"])
	assert.Equal(t, "general", channels[0]["name"])
}

func TestSlackConnector_SendDMOpensConversationFirst(t *testing.T) {
	var paths []string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/api/conversations.open":
			w.Write([]byte(`{"ok": true, "channel": {"id": "D99"}}`))
		case "/api/chat.postMessage":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "D99", body["channel"])
			w.Write([]byte(`{"ok": true, "ts": "1.2"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	c := NewSlackConnector(client)
	result, err := c.Execute(context.Background(), "send_dm",
		map[string]any{"user_id": "U42", "text": "hello"}, "xoxb-1")

	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, []string{"/api/conversations.open", "/api/chat.postMessage"}, paths)
}

func TestSlackConnector_UnknownMethod(t *testing.T) {
	c := NewSlackConnector(http.DefaultClient)
	result, err := c.Execute(context.Background(), "start_huddle", nil, "xoxb-1")

	require.NoError(t, err)
	assert.Equal(t, false, result["ok"])
	assert.Contains(t, result["error"], "unknown slack method")
}
