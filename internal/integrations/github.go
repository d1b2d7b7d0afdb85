// internal/integrations/github.go
package integrations

import (
	"context"

	"github.com/google/go-github/v58/github"
)

// GitHubConnector manages issues and pull requests through the typed GitHub
// API client.
type GitHubConnector struct {
	// newClient builds a token-scoped client per call; overridable in tests.
	newClient func(token string) *github.Client
}

func NewGitHubConnector() *GitHubConnector {
	return &GitHubConnector{
		newClient: func(token string) *github.Client {
			return github.NewClient(nil).WithAuthToken(token)
		},
	}
}

func (c *GitHubConnector) Name() string { return "github" }

func (c *GitHubConnector) Execute(ctx context.Context, method string, args map[string]any, token string) (map[string]any, error) {
	client := c.newClient(token)
	owner := argString(args, "owner", "")
	repo := argString(args, "repo", "")

	switch method {
	case "create_issue":
		req := &github.IssueRequest{
			Title: github.String(argString(args, "title", "")),
			Body:  github.String(argString(args, "body", "")),
		}
		if labels := argStrings(args, "labels"); len(labels) > 0 {
			req.Labels = &labels
		}
		issue, resp, err := client.Issues.Create(ctx, owner, repo, req)
		if err != nil {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		return map[string]any{
			"ok":           resp.StatusCode == 201,
			"issue_number": issue.GetNumber(),
			"url":          issue.GetHTMLURL(),
		}, nil

	case "list_issues":
		issues, _, err := client.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
			State:       argString(args, "state", "open"),
			ListOptions: github.ListOptions{PerPage: 20},
		})
		if err != nil {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		out := make([]map[string]any, 0, len(issues))
		for _, i := range issues {
			out = append(out, map[string]any{"number": i.GetNumber(), "title": i.GetTitle(), "state": i.GetState()})
		}
		return map[string]any{"ok": true, "issues": out}, nil

	case "list_prs":
		prs, _, err := client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
			State:       argString(args, "state", "open"),
			ListOptions: github.ListOptions{PerPage: 20},
		})
		if err != nil {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		out := make([]map[string]any, 0, len(prs))
		for _, p := range prs {
			out = append(out, map[string]any{"number": p.GetNumber(), "title": p.GetTitle(), "state": p.GetState()})
		}
		return map[string]any{"ok": true, "pull_requests": out}, nil

	case "create_pr":
		pr, resp, err := client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
			Title: github.String(argString(args, "title", "")),
			Head:  github.String(argString(args, "head", "")),
			Base:  github.String(argString(args, "base", "main")),
			Body:  github.String(argString(args, "body", "")),
		})
		if err != nil {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		return map[string]any{
			"ok":        resp.StatusCode == 201,
			"pr_number": pr.GetNumber(),
			"url":       pr.GetHTMLURL(),
		}, nil

	default:
		return errUnknownMethod(c.Name(), method), nil
	}
}

func argStrings(args map[string]any, key string) []string {
	items, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, isStr := item.(string); isStr {
			out = append(out, s)
		}
	}
	return out
}
