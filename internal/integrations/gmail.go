// internal/integrations/gmail.go
package integrations

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const gmailAPI = "https://gmail.googleapis.com/gmail/v1/users/me"

// GmailConnector sends and reads mail with the user's Google OAuth token.
type GmailConnector struct {
	client *http.Client
}

func NewGmailConnector(client *http.Client) *GmailConnector {
	return &GmailConnector{client: client}
}

func (c *GmailConnector) Name() string { return "gmail" }

func (c *GmailConnector) Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	headers := bearerHeaders(token)

	switch method {
	case "send_email":
		raw := buildRFC822(
			argString(args, "to", ""),
			argString(args, "cc", ""),
			argString(args, "subject", ""),
			argString(args, "body", ""),
		)
		status, data, err := doJSON(ctx, c.client, http.MethodPost, gmailAPI+"/messages/send", headers, nil, map[string]any{
			"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusOK, "id": data["id"], "error": data["error"]}, nil

	case "list_messages":
		query := url.Values{
			"maxResults": {strconv.Itoa(argInt(args, "max_results", 10))},
			"q":          {argString(args, "query", "in:inbox")},
		}
		_, data, err := doJSON(ctx, c.client, http.MethodGet, gmailAPI+"/messages", headers, query, nil)
		if err != nil {
			return nil, err
		}
		messages, _ := data["messages"].([]any)
		return map[string]any{"ok": true, "messages": messages, "count": len(messages)}, nil

	case "get_message":
		msgID := argString(args, "message_id", "")
		status, data, err := doJSON(ctx, c.client, http.MethodGet, gmailAPI+"/messages/"+url.PathEscape(msgID), headers, url.Values{"format": {"metadata"}}, nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusOK, "message": data}, nil

	default:
		return errUnknownMethod(c.Name(), method), nil
	}
}

// buildRFC822 assembles a minimal text/plain message for the Gmail send API.
func buildRFC822(to, cc, subject, body string) string {
	msg := fmt.Sprintf("To: %s\r\n", to)
	if cc != "" {
		msg += fmt.Sprintf("Cc: %s\r\n", cc)
	}
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n"
	msg += body
	return msg
}
