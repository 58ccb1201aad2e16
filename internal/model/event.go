// Package model contains domain types for the cookiewatch engine.
// These types are independent of any external GitHub library.
package model

import "time"

// EventType is the closed set of contributor activity kinds the trust
// scorer understands. Anything else GitHub reports maps to EventOther.
type EventType string

const (
	EventPush         EventType = "push"
	EventPullRequest  EventType = "pull_request"
	EventIssueComment EventType = "issue_comment"
	EventOther        EventType = "other"
)

// AllEventTypes contains all valid activity event types.
var AllEventTypes = []EventType{
	EventPush,
	EventPullRequest,
	EventIssueComment,
	EventOther,
}

// EventTypeFromGitHub maps a raw GitHub event type string onto the closed
// EventType set. See https://docs.github.com/en/rest/activity/events
func EventTypeFromGitHub(raw string) EventType {
	switch raw {
	case "PushEvent":
		return EventPush
	case "PullRequestEvent":
		return EventPullRequest
	case "IssueCommentEvent":
		return EventIssueComment
	default:
		return EventOther
	}
}

// ActivityEvent is one normalized entry in a contributor's public activity
// log. Events are immutable once ingested and ordered newest first.
type ActivityEvent struct {
	Type       EventType `json:"type"`
	Repo       string    `json:"repo"`
	OccurredAt time.Time `json:"occurredAt"`
}
