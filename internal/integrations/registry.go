// internal/integrations/registry.go

// Package integrations hosts the API connectors the agent invokes for
// deterministic api_call steps. Each connector speaks one external service
// and reports an "ok" flag in its result map.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"
)

const callTimeout = 15 * time.Second

// Connector executes one named method against an external service using the
// caller's OAuth token. The returned map always carries an "ok" bool; a
// non-nil error is reserved for transport failures.
type Connector interface {
	Name() string
	Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error)
}

// Registry resolves connectors by service name.
type Registry struct {
	connectors map[string]Connector
	logger     *zap.Logger
}

// NewRegistry builds the registry with every built-in connector.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		connectors: make(map[string]Connector),
		logger:     logger.Named("integrations"),
	}
	httpClient := &http.Client{Timeout: callTimeout}
	for _, c := range []Connector{
		NewSlackConnector(httpClient),
		NewGitHubConnector(),
		NewGmailConnector(httpClient),
		NewSheetsConnector(httpClient),
		NewCalendarConnector(httpClient),
		NewNotionConnector(httpClient),
		NewLinearConnector(httpClient),
	} {
		r.connectors[c.Name()] = c
	}
	return r
}

// Register adds or replaces a connector.
func (r *Registry) Register(c Connector) {
	r.connectors[c.Name()] = c
}

// Get returns the connector for a service name.
func (r *Registry) Get(service string) (Connector, bool) {
	c, ok := r.connectors[service]
	return c, ok
}

// Services lists the registered service names, sorted.
func (r *Registry) Services() []string {
	out := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func errUnknownMethod(service, method string) map[string]any {
	return map[string]any{"ok": false, "error": fmt.Sprintf("unknown %s method: %s", service, method)}
}

// argString reads a string argument with a fallback.
func argString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// argInt reads a numeric argument, tolerating JSON's float64 decoding.
func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// doJSON issues one HTTP request with an optional JSON body and decodes the
// JSON response. A body that is not a JSON object is returned under "raw".
func doJSON(ctx context.Context, client *http.Client, method, rawURL string, headers map[string]string, query url.Values, body any) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if len(raw) == 0 {
		return resp.StatusCode, map[string]any{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		var list []any
		if err2 := json.Unmarshal(raw, &list); err2 == nil {
			return resp.StatusCode, map[string]any{"raw": list}, nil
		}
		return resp.StatusCode, map[string]any{"raw": string(raw)}, nil
	}
	return resp.StatusCode, decoded, nil
}

func bearerHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
