// internal/integrations/sheets.go
package integrations

import (
	"context"
	"net/http"
	"net/url"
)

const sheetsAPI = "https://sheets.googleapis.com/v4/spreadsheets"

// SheetsConnector reads and writes Google Sheets ranges.
type SheetsConnector struct {
	client *http.Client
}

func NewSheetsConnector(client *http.Client) *SheetsConnector {
	return &SheetsConnector{client: client}
}

func (c *SheetsConnector) Name() string { return "sheets" }

func (c *SheetsConnector) Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	headers := bearerHeaders(token)
	spreadsheetID := argString(args, "spreadsheet_id", "")
	rangeRef := argString(args, "range", "Sheet1")
	rangeURL := sheetsAPI + "/" + url.PathEscape(spreadsheetID) + "/values/" + url.PathEscape(rangeRef)

	switch method {
	case "read_range":
		status, data, err := doJSON(ctx, c.client, http.MethodGet, rangeURL, headers, nil, nil)
		if err != nil {
			return nil, err
		}
		values, _ := data["values"].([]any)
		return map[string]any{"ok": status == http.StatusOK, "values": values, "range": data["range"]}, nil

	case "write_range":
		query := url.Values{"valueInputOption": {"USER_ENTERED"}}
		status, data, err := doJSON(ctx, c.client, http.MethodPut, rangeURL, headers, query, map[string]any{
			"values": args["values"],
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusOK, "result": data}, nil

	case "append_row":
		query := url.Values{"valueInputOption": {"USER_ENTERED"}, "insertDataOption": {"INSERT_ROWS"}}
		status, data, err := doJSON(ctx, c.client, http.MethodPost, rangeURL+":append", headers, query, map[string]any{
			"values": []any{args["values"]},
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": status == http.StatusOK, "result": data}, nil

	default:
		return errUnknownMethod(c.Name(), method), nil
	}
}
