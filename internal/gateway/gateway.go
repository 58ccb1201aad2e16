// Package gateway provides the engine's view of the GitHub API: four
// structured operations plus issue discovery, a closed error taxonomy, and
// a shared per-sweep call budget. The engine never sees transport errors.
package gateway

import (
	"context"

	"github.com/cookiewatch/cookiewatch/internal/model"
)

// Gateway defines the operations the detection engine requires from
// GitHub. Every call may fail with RateLimitedError, TransientError,
// ErrForbidden, ErrNotFound, or ErrAlreadyUnassigned; callers must treat
// each call as slow and fallible.
type Gateway interface {
	// RecentEvents returns a contributor's recent public activity,
	// newest first.
	RecentEvents(ctx context.Context, username string) ([]model.ActivityEvent, error)

	// IssueComments returns the comments on an issue.
	IssueComments(ctx context.Context, repo string, number int) ([]model.Comment, error)

	// PostComment adds a comment to an issue.
	PostComment(ctx context.Context, repo string, number int, body string) error

	// Unassign removes the given user from the issue's assignees.
	Unassign(ctx context.Context, repo string, number int, username string) error

	// ListIssues returns the current remote state of all issues in a
	// repository, for sweep candidate discovery.
	ListIssues(ctx context.Context, repo string) ([]model.IssueSnapshot, error)
}

// Ensure Client implements the Gateway interface.
var _ Gateway = (*Client)(nil)
