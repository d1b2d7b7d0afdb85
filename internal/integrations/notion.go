// internal/integrations/notion.go
package integrations

import (
	"context"
	"net/http"
	"net/url"
)

const (
	notionAPI     = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// NotionConnector creates and queries Notion database pages.
type NotionConnector struct {
	client *http.Client
}

func NewNotionConnector(client *http.Client) *NotionConnector {
	return &NotionConnector{client: client}
}

func (c *NotionConnector) Name() string { return "notion" }

func (c *NotionConnector) headers(token string) map[string]string {
	h := bearerHeaders(token)
	h["Notion-Version"] = notionVersion
	return h
}

func (c *NotionConnector) Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	headers := c.headers(token)

	switch method {
	case "create_page":
		body := map[string]any{
			"parent": map[string]any{"database_id": argString(args, "database_id", "")},
			"properties": map[string]any{
				"Name": titleProperty(argString(args, "title", "Untitled")),
			},
		}
		if content := argString(args, "content", ""); content != "" {
			body["children"] = []any{
				map[string]any{
					"object": "block",
					"type":   "paragraph",
					"paragraph": map[string]any{
						"rich_text": []any{map[string]any{"text": map[string]any{"content": content}}},
					},
				},
			}
		}
		status, data, err := doJSON(ctx, c.client, http.MethodPost, notionAPI+"/pages", headers, nil, body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusOK, "page_id": data["id"], "url": data["url"]}, nil

	case "query_database":
		databaseID := argString(args, "database_id", "")
		body := map[string]any{}
		if filter, ok := args["filter"]; ok && filter != nil {
			body["filter"] = filter
		}
		_, data, err := doJSON(ctx, c.client, http.MethodPost,
			notionAPI+"/databases/"+url.PathEscape(databaseID)+"/query", headers, nil, body)
		if err != nil {
			return nil, err
		}
		var pages []map[string]any
		if results, ok := data["results"].([]any); ok {
			for _, item := range results {
				if p, isMap := item.(map[string]any); isMap {
					pages = append(pages, map[string]any{"id": p["id"], "url": p["url"]})
				}
			}
		}
		return map[string]any{"ok": true, "pages": pages, "count": len(pages)}, nil

	case "update_page":
		pageID := argString(args, "page_id", "")
		props := map[string]any{}
		if title := argString(args, "title", ""); title != "" {
			props["Name"] = titleProperty(title)
		}
		status, _, err := doJSON(ctx, c.client, http.MethodPatch,
			notionAPI+"/pages/"+url.PathEscape(pageID), headers, nil, map[string]any{"properties": props})
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusOK}, nil

	default:
		return errUnknownMethod(c.Name(), method), nil
	}
}

func titleProperty(title string) map[string]any {
	return map[string]any{
		"title": []any{map[string]any{"text": map[string]any{"content": title}}},
	}
}
