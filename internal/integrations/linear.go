// internal/integrations/linear.go
package integrations

import (
	"context"
	"net/http"
)

const linearAPI = "https://api.linear.app/graphql"

// LinearConnector manages Linear issues through its GraphQL API.
type LinearConnector struct {
	client *http.Client
}

func NewLinearConnector(client *http.Client) *LinearConnector {
	return &LinearConnector{client: client}
}

func (c *LinearConnector) Name() string { return "linear" }

// Linear expects the raw API key in the Authorization header, no Bearer
// prefix.
func (c *LinearConnector) gql(ctx context.Context, query string, variables map[string]any, token string) (map[string]any, error) {
	headers := map[string]string{"Authorization": token}
	_, data, err := doJSON(ctx, c.client, http.MethodPost, linearAPI, headers, nil, map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, err
	}
	inner, _ := data["data"].(map[string]any)
	return inner, nil
}

func (c *LinearConnector) Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	switch method {
	case "create_issue":
		const query = `
		mutation CreateIssue($teamId: String!, $title: String!, $description: String, $priority: Int) {
			issueCreate(input: {teamId: $teamId, title: $title, description: $description, priority: $priority}) {
				success
				issue { id identifier url }
			}
		}`
		data, err := c.gql(ctx, query, map[string]any{
			"teamId":      argString(args, "team_id", ""),
			"title":       argString(args, "title", ""),
			"description": args["description"],
			"priority":    args["priority"],
		}, token)
		if err != nil {
			return nil, err
		}
		created, _ := data["issueCreate"].(map[string]any)
		issue, _ := created["issue"].(map[string]any)
		ok, _ := created["success"].(bool)
		return map[string]any{
			"ok":         ok,
			"issue_id":   issue["id"],
			"identifier": issue["identifier"],
			"url":        issue["url"],
		}, nil

	case "list_issues":
		const query = `
		query ListIssues($teamId: String) {
			issues(filter: {team: {id: {eq: $teamId}}}, first: 20) {
				nodes { id identifier title state { name } }
			}
		}`
		data, err := c.gql(ctx, query, map[string]any{"teamId": args["team_id"]}, token)
		if err != nil {
			return nil, err
		}
		var issues []map[string]any
		if wrapper, ok := data["issues"].(map[string]any); ok {
			if nodes, isList := wrapper["nodes"].([]any); isList {
				for _, node := range nodes {
					n, isMap := node.(map[string]any)
					if !isMap {
						continue
					}
					state, _ := n["state"].(map[string]any)
					issues = append(issues, map[string]any{
						"id":         n["id"],
						"identifier": n["identifier"],
						"title":      n["title"],
						"state":      state["name"],
					})
				}
			}
		}
		return map[string]any{"ok": true, "issues": issues}, nil

	case "update_issue":
		const query = `
		mutation UpdateIssue($issueId: String!, $stateId: String, $title: String) {
			issueUpdate(id: $issueId, input: {stateId: $stateId, title: $title}) {
				success
				issue { id identifier }
			}
		}`
		data, err := c.gql(ctx, query, map[string]any{
			"issueId": argString(args, "issue_id", ""),
			"stateId": args["state_id"],
			"title":   args["title"],
		}, token)
		if err != nil {
			return nil, err
		}
		updated, _ := data["issueUpdate"].(map[string]any)
		ok, _ := updated["success"].(bool)
		return map[string]any{"ok": ok}, nil

	default:
		return errUnknownMethod(c.Name(), method), nil
	}
}
