// Package lifecycle implements the per-issue staleness state machine.
// Decide is pure: it looks at the stored issue, the freshly observed
// remote state, and the clock, and names at most one transition. Side
// effects belong to the dispatcher; committing the transition belongs to
// the engine.
package lifecycle

import (
	"time"

	"github.com/cookiewatch/cookiewatch/internal/model"
)

// Thresholds holds the timing rules driving transitions.
type Thresholds struct {
	// StaleAfter is how long an assigned issue may sit without activity
	// before it turns stale.
	StaleAfter time.Duration

	// ReminderGrace is how long a reminded assignee gets to respond
	// before release.
	ReminderGrace time.Duration
}

// Observation is what the current sweep saw on GitHub for one issue.
type Observation struct {
	// Closed is true when GitHub reports the issue closed or merged.
	Closed bool

	// Assignee is the login currently holding the issue, or empty.
	Assignee string

	// LastActivityAt is the newest of: latest issue comment, the
	// assignee's latest qualifying activity event.
	LastActivityAt time.Time
}

// Change is the single transition chosen for this tick. To equals the
// current status when nothing happens. Action names the side effect the
// transition requires, or is empty.
type Change struct {
	To     model.IssueStatus
	Action model.ActionKind
	Reason string
}

// Decide evaluates the transition rules for one issue. Exactly one
// transition is returned per tick; an issue never skips ahead two states
// within a single sweep. Threshold comparisons are strict: activity
// exactly at a boundary has not expired yet.
func Decide(issue model.Issue, obs Observation, now time.Time, th Thresholds) Change {
	if issue.Status.Terminal() {
		return Change{To: issue.Status}
	}

	// Closure beats everything.
	if obs.Closed {
		return Change{To: model.StatusResolved, Reason: "issue closed on GitHub"}
	}

	// External unassignment beats timers: someone removed the assignee
	// outside the engine, so the cycle resets immediately.
	if obs.Assignee == "" && issue.Status.Sweepable() {
		return Change{To: model.StatusUnassigned, Reason: "assignee removed externally"}
	}

	// A new or changed assignee starts a fresh assignment cycle.
	if obs.Assignee != "" {
		switch issue.Status {
		case model.StatusUnassigned, model.StatusReleased:
			return Change{To: model.StatusAssigned, Reason: "assignee claimed issue"}
		default:
			if obs.Assignee != issue.Assignee {
				return Change{To: model.StatusAssigned, Reason: "assignee changed"}
			}
		}
	}

	lastActivity := issue.LastActivityAt
	if obs.LastActivityAt.After(lastActivity) {
		lastActivity = obs.LastActivityAt
	}

	switch issue.Status {
	case model.StatusAssigned:
		if now.Sub(lastActivity) > th.StaleAfter {
			return Change{To: model.StatusStale, Reason: "no activity past staleness threshold"}
		}
		return Change{To: model.StatusAssigned}

	case model.StatusStale:
		if obs.LastActivityAt.After(issue.LastActivityAt) {
			return Change{To: model.StatusAssigned, Reason: "activity resumed"}
		}
		if issue.ReminderSentAt == nil {
			return Change{To: model.StatusReminded, Action: model.ActionReminder, Reason: "stale with no reminder sent"}
		}
		// A reminder already exists from a cycle we lost track of;
		// resume the reminded clock without posting again.
		return Change{To: model.StatusReminded, Reason: "reminder already on record"}

	case model.StatusReminded:
		if issue.ReminderSentAt != nil && obs.LastActivityAt.After(*issue.ReminderSentAt) {
			return Change{To: model.StatusAssigned, Reason: "assignee responded after reminder"}
		}
		if issue.ReminderSentAt != nil && now.Sub(*issue.ReminderSentAt) > th.ReminderGrace {
			return Change{To: model.StatusReleased, Action: model.ActionUnassign, Reason: "grace period expired"}
		}
		return Change{To: model.StatusReminded}
	}

	return Change{To: issue.Status}
}

// Apply commits a decided change onto the issue record. It must be called
// only after any required side effect succeeded.
func Apply(issue *model.Issue, ch Change, obs Observation, now time.Time) {
	// Track observed activity regardless of the transition taken.
	if obs.LastActivityAt.After(issue.LastActivityAt) {
		issue.LastActivityAt = obs.LastActivityAt
	}

	switch ch.To {
	case model.StatusAssigned:
		issue.Assignee = obs.Assignee
		issue.StaleSince = nil
		issue.ReminderSentAt = nil
		if issue.LastActivityAt.IsZero() {
			issue.LastActivityAt = now
		}

	case model.StatusStale:
		if issue.Status != model.StatusStale {
			t := now
			issue.StaleSince = &t
		}

	case model.StatusReminded:
		if ch.Action == model.ActionReminder {
			t := now
			issue.ReminderSentAt = &t
		}

	case model.StatusReleased:
		issue.Assignee = ""
		issue.StaleSince = nil
		issue.ReminderSentAt = nil

	case model.StatusUnassigned:
		issue.Assignee = ""
		issue.StaleSince = nil
		issue.ReminderSentAt = nil
	}

	issue.Status = ch.To
	issue.UpdatedAt = now
}
