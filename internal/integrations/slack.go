// internal/integrations/slack.go
package integrations

import (
	"context"
	"net/http"
	"net/url"
)

const slackAPI = "https://slack.com/api"

// SlackConnector posts messages and lists channels via the Slack Web API.
type SlackConnector struct {
	client *http.Client
}

func NewSlackConnector(client *http.Client) *SlackConnector {
	return &SlackConnector{client: client}
}

func (c *SlackConnector) Name() string { return "slack" }

func (c *SlackConnector) Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	headers := bearerHeaders(token)

	switch method {
	case "send_message":
		_, data, err := doJSON(ctx, c.client, http.MethodPost, slackAPI+"/chat.postMessage", headers, nil, map[string]any{
			"channel": argString(args, "channel", ""),
			"text":    argString(args, "text", ""),
		})
		if err != nil {
			return nil, err
		}
		ok, _ := data["ok"].(bool)
		return map[string]any{"ok": ok, "ts": data["ts"], "error": data["error"]}, nil

	case "list_channels":
		query := url.Values{"limit": {"100"}, "types": {"public_channel"}}
		_, data, err := doJSON(ctx, c.client, http.MethodGet, slackAPI+"/conversations.list", headers, query, nil)
		if err != nil {
			return nil, err
		}
		ok, _ := data["ok"].(bool)
		var channels []map[string]any
		if items, isList := data["channels"].([]any); isList {
			for _, item := range items {
				if ch, isMap := item.(map[string]any); isMap {
					channels = append(channels, map[string]any{"id": ch["id"], "name": ch["name"]})
				}
			}
		}
		return map[string]any{"ok": ok, "channels": channels}, nil

	case "send_dm":
		// A DM needs its conversation opened before posting into it.
		_, opened, err := doJSON(ctx, c.client, http.MethodPost, slackAPI+"/conversations.open", headers, nil, map[string]any{
			"users": argString(args, "user_id", ""),
		})
		if err != nil {
			return nil, err
		}
		channelID := ""
		if ch, isMap := opened["channel"].(map[string]any); isMap {
			channelID, _ = ch["id"].(string)
		}
		_, data, err := doJSON(ctx, c.client, http.MethodPost, slackAPI+"/chat.postMessage", headers, nil, map[string]any{
			"channel": channelID,
			"text":    argString(args, "text", ""),
		})
		if err != nil {
			return nil, err
		}
		ok, _ := data["ok"].(bool)
		return map[string]any{"ok": ok, "ts": data["ts"]}, nil

	default:
		return errUnknownMethod(c.Name(), method), nil
	}
}
