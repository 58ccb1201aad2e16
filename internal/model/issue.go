package model

import (
	"fmt"
	"time"
)

// IssueStatus is the lifecycle state of a tracked issue.
type IssueStatus string

const (
	// StatusUnassigned is the initial state: the issue is open with nobody
	// claiming it.
	StatusUnassigned IssueStatus = "unassigned"

	// StatusAssigned means a contributor has claimed the issue and is
	// considered active on it.
	StatusAssigned IssueStatus = "assigned"

	// StatusStale means the assignee has shown no qualifying activity
	// within the staleness threshold.
	StatusStale IssueStatus = "stale"

	// StatusReminded means a reminder comment has been posted and the
	// grace period is running.
	StatusReminded IssueStatus = "reminded"

	// StatusReleased is terminal for the current assignment cycle: the
	// assignee was removed. A later observation of the open issue starts
	// a fresh cycle at StatusUnassigned.
	StatusReleased IssueStatus = "released"

	// StatusResolved is terminal: GitHub reported the issue closed.
	StatusResolved IssueStatus = "resolved"
)

// AllIssueStatuses contains every valid issue status.
var AllIssueStatuses = []IssueStatus{
	StatusUnassigned,
	StatusAssigned,
	StatusStale,
	StatusReminded,
	StatusReleased,
	StatusResolved,
}

// Terminal reports whether the status ends processing for the issue.
// Released is terminal for the assignment cycle but the issue itself is
// re-observed, so only Resolved stops tracking entirely.
func (s IssueStatus) Terminal() bool {
	return s == StatusResolved
}

// Sweepable reports whether issues in this status are candidates for the
// staleness lifecycle evaluation.
func (s IssueStatus) Sweepable() bool {
	switch s {
	case StatusAssigned, StatusStale, StatusReminded:
		return true
	}
	return false
}

// Issue is the engine's durable record of one tracked GitHub issue.
// Issues are never deleted, only advanced to a terminal status.
type Issue struct {
	ID     int64  `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Repo   string `json:"repo"` // owner/name

	// Assignee is empty when nobody holds the issue. At most one assignee
	// is tracked at a time.
	Assignee string `json:"assignee,omitempty"`

	Status IssueStatus `json:"status"`

	// LastActivityAt is the latest of: newest issue comment, assignee's
	// newest qualifying activity event.
	LastActivityAt time.Time `json:"lastActivityAt,omitempty"`

	// ReminderSentAt is set when the reminder comment is confirmed posted
	// and cleared only by a new assignment cycle.
	ReminderSentAt *time.Time `json:"reminderSentAt,omitempty"`

	// StaleSince marks entry into StatusStale. Set only while the issue is
	// stale or reminded.
	StaleSince *time.Time `json:"staleSince,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Key returns the stable identity "repo#number" used in logs.
func (i *Issue) Key() string {
	return fmt.Sprintf("%s#%d", i.Repo, i.Number)
}

// IssueSnapshot is the gateway's view of a remote issue during discovery.
// It carries only what the lifecycle machine needs to observe.
type IssueSnapshot struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Repo      string    `json:"repo"`
	Assignee  string    `json:"assignee,omitempty"`
	Closed    bool      `json:"closed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is one issue comment as observed from the gateway. Comments are
// append-only and owned by their issue.
type Comment struct {
	IssueID   int64     `json:"issueId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
