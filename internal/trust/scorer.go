// Package trust converts a contributor's recent activity into a numeric
// trust score and a categorical tag. Scoring is pure: same events and
// evaluation time always produce the same result, and no I/O happens here.
package trust

import (
	"time"

	"github.com/cookiewatch/cookiewatch/internal/model"
)

// Weights defines the scoring weights and window bounds.
type Weights struct {
	Push              float64
	PullRequest       float64
	IssueComment      float64
	InactivityPenalty float64

	// RecentWindow is how far back an event still counts as recent
	// activity. Older-only windows incur the inactivity penalty once.
	RecentWindow time.Duration

	// EventWindow caps how many of the newest events are scored.
	EventWindow int
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Push:              3,
		PullRequest:       2,
		IssueComment:      2,
		InactivityPenalty: 3,
		RecentWindow:      7 * 24 * time.Hour,
		EventWindow:       10,
	}
}

// Tag thresholds: score > reliableAbove is Reliable, score >= activeAtLeast
// is Active, anything below is Needs Follow-up.
const (
	reliableAbove = 10
	activeAtLeast = 5
)

// Score evaluates up to the EventWindow newest events against now and
// returns the trust score with its tag. Events must be ordered newest
// first. An empty window scores as the bare inactivity penalty.
func Score(events []model.ActivityEvent, now time.Time, w Weights) (float64, model.Tag) {
	window := events
	if w.EventWindow > 0 && len(window) > w.EventWindow {
		window = window[:w.EventWindow]
	}

	var score float64
	recent := false
	cutoff := now.Add(-w.RecentWindow)

	for _, ev := range window {
		switch ev.Type {
		case model.EventPush:
			score += w.Push
		case model.EventPullRequest:
			score += w.PullRequest
		case model.EventIssueComment:
			score += w.IssueComment
		case model.EventOther:
			// no points
		}

		// An event exactly at the window boundary still counts as recent.
		if !ev.OccurredAt.Before(cutoff) {
			recent = true
		}
	}

	if !recent {
		score -= w.InactivityPenalty
	}

	return score, TagFor(score)
}

// TagFor maps a trust score onto its categorical tag.
func TagFor(score float64) model.Tag {
	switch {
	case score > reliableAbove:
		return model.TagReliable
	case score >= activeAtLeast:
		return model.TagActive
	default:
		return model.TagNeedsFollowUp
	}
}

// LastQualifyingActivity returns the newest event time that counts as
// meaningful contributor activity (anything but Other). The zero time is
// returned when no qualifying event exists.
func LastQualifyingActivity(events []model.ActivityEvent) time.Time {
	var latest time.Time
	for _, ev := range events {
		if ev.Type == model.EventOther {
			continue
		}
		if ev.OccurredAt.After(latest) {
			latest = ev.OccurredAt
		}
	}
	return latest
}
