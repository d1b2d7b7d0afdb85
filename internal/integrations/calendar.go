// internal/integrations/calendar.go
package integrations

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const calendarAPI = "https://www.googleapis.com/calendar/v3"

// CalendarConnector manages Google Calendar events.
type CalendarConnector struct {
	client *http.Client
}

func NewCalendarConnector(client *http.Client) *CalendarConnector {
	return &CalendarConnector{client: client}
}

func (c *CalendarConnector) Name() string { return "calendar" }

func (c *CalendarConnector) Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	headers := bearerHeaders(token)
	calendarID := argString(args, "calendar_id", "primary")
	eventsURL := calendarAPI + "/calendars/" + url.PathEscape(calendarID) + "/events"

	switch method {
	case "list_events":
		query := url.Values{
			"maxResults":   {strconv.Itoa(argInt(args, "max_results", 10))},
			"orderBy":      {"startTime"},
			"singleEvents": {"true"},
		}
		_, data, err := doJSON(ctx, c.client, http.MethodGet, eventsURL, headers, query, nil)
		if err != nil {
			return nil, err
		}
		var events []map[string]any
		if items, ok := data["items"].([]any); ok {
			for _, item := range items {
				if e, isMap := item.(map[string]any); isMap {
					events = append(events, map[string]any{
						"id":      e["id"],
						"summary": e["summary"],
						"start":   e["start"],
						"end":     e["end"],
					})
				}
			}
		}
		return map[string]any{"ok": true, "events": events}, nil

	case "create_event":
		body := map[string]any{
			"summary":     argString(args, "summary", ""),
			"description": argString(args, "description", ""),
			"location":    argString(args, "location", ""),
			"start":       map[string]any{"dateTime": argString(args, "start", ""), "timeZone": "UTC"},
			"end":         map[string]any{"dateTime": argString(args, "end", ""), "timeZone": "UTC"},
		}
		status, data, err := doJSON(ctx, c.client, http.MethodPost, eventsURL, headers, nil, body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusOK, "event_id": data["id"], "link": data["htmlLink"]}, nil

	case "delete_event":
		eventID := argString(args, "event_id", "")
		status, _, err := doJSON(ctx, c.client, http.MethodDelete, eventsURL+"/"+url.PathEscape(eventID), headers, nil, nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusNoContent}, nil

	default:
		return errUnknownMethod(c.Name(), method), nil
	}
}
