package model

// ActionKind is the closed set of side effects a lifecycle transition can
// imply against the GitHub gateway.
type ActionKind string

const (
	ActionReminder ActionKind = "reminder"
	ActionUnassign ActionKind = "unassign"
)

// Action describes one pending side effect. The dispatcher keys idempotency
// on (IssueID, TargetState): an action is applied at most once per cycle.
type Action struct {
	Kind        ActionKind
	IssueID     int64
	Repo        string
	Number      int
	Assignee    string
	TargetState IssueStatus

	// Body is the comment text for ActionReminder; empty otherwise.
	Body string
}
