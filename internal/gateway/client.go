package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/cookiewatch/cookiewatch/internal/log"
	"github.com/cookiewatch/cookiewatch/internal/model"
)

// budgetTransport wraps an http.RoundTripper to charge every request
// against the shared sweep budget and to fold GitHub's rate limit headers
// back into it.
type budgetTransport struct {
	base   http.RoundTripper
	budget *Budget
}

func (t *budgetTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.budget.Take(); err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	remaining, resetAt := parseRateLimitHeaders(resp)
	if remaining >= 0 {
		t.budget.Update(remaining, resetAt)
	}

	// 403 with an exhausted quota and 429 both mean rate limited
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests {
			t.budget.SetLimited(resetAt)
			_ = resp.Body.Close()
			return nil, &RateLimitedError{RetryAfter: time.Until(resetAt)}
		}
	}

	return resp, err
}

// parseRateLimitHeaders extracts rate limit info from response headers.
func parseRateLimitHeaders(resp *http.Response) (remaining int, resetAt time.Time) {
	remaining = -1

	if remainingStr := resp.Header.Get("X-RateLimit-Remaining"); remainingStr != "" {
		if rem, err := strconv.Atoi(remainingStr); err == nil {
			remaining = rem
		}
	}

	if resetStr := resp.Header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetTime, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(resetTime, 0)
		}
	}

	return remaining, resetAt
}

// Client implements Gateway on the GitHub REST API.
type Client struct {
	client *gh.Client
	budget *Budget
	// token is intentionally unexported. NEVER add String(), MarshalJSON(),
	// or any method that could expose this value in logs or serialized output.
	token string
}

// NewClient creates a new GitHub gateway using a personal access token.
// All calls are charged against the provided budget.
func NewClient(ctx context.Context, token string, budget *Budget) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("GitHub token not provided (set GITHUB_TOKEN): %w", ErrForbidden)
	}
	if budget == nil {
		budget = NewBudget(1)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	tc.Transport = &budgetTransport{
		base:   tc.Transport,
		budget: budget,
	}

	return &Client{
		client: gh.NewClient(tc),
		budget: budget,
		token:  token,
	}, nil
}

// Budget returns the shared call budget backing this client.
func (c *Client) Budget() *Budget {
	return c.budget
}

// AuthenticatedUser returns the authenticated user's login.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", classify("get authenticated user", err)
	}
	return user.GetLogin(), nil
}

// RateLimits fetches the current GitHub API rate limit status.
func (c *Client) RateLimits(ctx context.Context) (*gh.RateLimits, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, classify("get rate limits", err)
	}
	return limits, nil
}

// RecentEvents fetches a contributor's recent public activity, newest first.
func (c *Client) RecentEvents(ctx context.Context, username string) ([]model.ActivityEvent, error) {
	opts := &gh.ListOptions{PerPage: 30}

	raw, _, err := c.client.Activity.ListEventsPerformedByUser(ctx, username, true, opts)
	if err != nil {
		return nil, classify(fmt.Sprintf("list events for %s", username), err)
	}

	events := make([]model.ActivityEvent, 0, len(raw))
	for _, ev := range raw {
		events = append(events, model.ActivityEvent{
			Type:       model.EventTypeFromGitHub(ev.GetType()),
			Repo:       ev.GetRepo().GetName(),
			OccurredAt: ev.GetCreatedAt().Time,
		})
	}

	log.Trace("fetched events", "username", username, "count", len(events))
	return events, nil
}

// IssueComments fetches the comments on an issue.
func (c *Client) IssueComments(ctx context.Context, repo string, number int) ([]model.Comment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var comments []model.Comment
	for {
		raw, resp, err := c.client.Issues.ListComments(ctx, owner, name, number, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("list comments for %s#%d", repo, number), err)
		}

		for _, cm := range raw {
			comments = append(comments, model.Comment{
				Username:  cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
				CreatedAt: cm.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

// PostComment adds a comment to an issue.
func (c *Client) PostComment(ctx context.Context, repo string, number int, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	comment := &gh.IssueComment{Body: gh.String(body)}
	_, _, err = c.client.Issues.CreateComment(ctx, owner, name, number, comment)
	if err != nil {
		return classify(fmt.Sprintf("post comment on %s#%d", repo, number), err)
	}

	log.Debug("posted comment", "repo", repo, "number", number)
	return nil
}

// Unassign removes the given user from the issue's assignees.
func (c *Client) Unassign(ctx context.Context, repo string, number int, username string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	issue, _, err := c.client.Issues.RemoveAssignees(ctx, owner, name, number, []string{username})
	if err != nil {
		err = classify(fmt.Sprintf("unassign %s from %s#%d", username, repo, number), err)
		// GitHub answers 422 when the user was not an assignee
		var ger *gh.ErrorResponse
		if errors.As(err, &ger) && ger.Response != nil && ger.Response.StatusCode == http.StatusUnprocessableEntity {
			return ErrAlreadyUnassigned
		}
		return err
	}

	// The API silently ignores unknown assignees; report that case so the
	// caller can treat the effect as already satisfied.
	for _, a := range issue.Assignees {
		if a.GetLogin() == username {
			return &TransientError{
				Op:  fmt.Sprintf("unassign %s from %s#%d", username, repo, number),
				Err: errors.New("assignee still present after removal"),
			}
		}
	}

	log.Debug("unassigned user", "repo", repo, "number", number, "username", username)
	return nil
}

// ListIssues fetches the current state of all issues in a repository.
// Pull requests are excluded.
func (c *Client) ListIssues(ctx context.Context, repo string) ([]model.IssueSnapshot, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListByRepoOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var snapshots []model.IssueSnapshot
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("list issues for %s", repo), err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			snapshots = append(snapshots, model.IssueSnapshot{
				ID:        issue.GetID(),
				Number:    issue.GetNumber(),
				Title:     issue.GetTitle(),
				Repo:      repo,
				Assignee:  issue.GetAssignee().GetLogin(),
				Closed:    issue.GetState() == "closed",
				UpdatedAt: issue.GetUpdatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	log.Debug("listed issues", "repo", repo, "count", len(snapshots))
	return snapshots, nil
}

// classify maps transport and API errors onto the gateway error taxonomy.
func classify(op string, err error) error {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle
	}

	var ghRate *gh.RateLimitError
	if errors.As(err, &ghRate) {
		return &RateLimitedError{RetryAfter: time.Until(ghRate.Rate.Reset.Time)}
	}

	var ghAbuse *gh.AbuseRateLimitError
	if errors.As(err, &ghAbuse) {
		retry := time.Minute
		if ghAbuse.RetryAfter != nil {
			retry = *ghAbuse.RetryAfter
		}
		return &RateLimitedError{RetryAfter: retry}
	}

	var ger *gh.ErrorResponse
	if errors.As(err, &ger) && ger.Response != nil {
		switch ger.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, ErrForbidden)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case http.StatusUnprocessableEntity:
			return err
		}
		if ger.Response.StatusCode >= 500 {
			return &TransientError{Op: op, Err: err}
		}
	}

	return &TransientError{Op: op, Err: err}
}

// splitRepo splits "owner/name" into its parts.
func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name: %s", repo)
	}
	return parts[0], parts[1], nil
}
