package model

import "time"

// Tag is the categorical trust classification derived from a contributor's
// recent activity score.
type Tag string

const (
	TagReliable      Tag = "Reliable Contributor"
	TagActive        Tag = "Active Contributor"
	TagNeedsFollowUp Tag = "Inactive / Needs Follow-up"
)

// Contributor is a GitHub user observed as an issue assignee. TrustScore and
// Tag are derived values, recomputed from the event window on every sweep;
// the stored copy is a snapshot for observability, never authoritative.
type Contributor struct {
	Username       string    `json:"username"`
	TrustScore     float64   `json:"trustScore"`
	Tag            Tag       `json:"tag"`
	LastActivityAt time.Time `json:"lastActivityAt,omitempty"`
	CheckedAt      time.Time `json:"checkedAt,omitempty"`
}
