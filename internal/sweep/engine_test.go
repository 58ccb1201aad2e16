package sweep

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cookiewatch/cookiewatch/config"
	"github.com/cookiewatch/cookiewatch/internal/dispatch"
	"github.com/cookiewatch/cookiewatch/internal/gateway"
	"github.com/cookiewatch/cookiewatch/internal/model"
	"github.com/cookiewatch/cookiewatch/internal/store"
)

var day0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// selfLogin is the authenticated account the test engine posts as.
const selfLogin = "cookiewatch-bot"

// fakeGW simulates GitHub state for sweep tests. Posted comments are fed
// back into the issue's comment stream the way GitHub would serve them,
// timestamped by postAt.
type fakeGW struct {
	mu sync.Mutex

	issues   map[string][]model.IssueSnapshot
	events   map[string][]model.ActivityEvent
	comments map[string][]model.Comment

	posted     []string // bodies of posted comments
	unassigned []string // logins removed

	postAt func() time.Time

	listErr    map[string]error
	commentErr error
	postErr    error
}

func newFakeGW() *fakeGW {
	return &fakeGW{
		issues:   make(map[string][]model.IssueSnapshot),
		events:   make(map[string][]model.ActivityEvent),
		comments: make(map[string][]model.Comment),
		listErr:  make(map[string]error),
		postAt:   time.Now,
	}
}

func (f *fakeGW) setIssue(snap model.IssueSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.issues[snap.Repo]
	for i := range list {
		if list[i].ID == snap.ID {
			list[i] = snap
			return
		}
	}
	f.issues[snap.Repo] = append(list, snap)
}

func (f *fakeGW) ListIssues(_ context.Context, repo string) ([]model.IssueSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[repo]; err != nil {
		return nil, err
	}
	return append([]model.IssueSnapshot(nil), f.issues[repo]...), nil
}

func (f *fakeGW) RecentEvents(_ context.Context, username string) ([]model.ActivityEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ActivityEvent(nil), f.events[username]...), nil
}

func (f *fakeGW) IssueComments(_ context.Context, repo string, number int) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	key := commentKey(repo, number)
	return append([]model.Comment(nil), f.comments[key]...), nil
}

func (f *fakeGW) PostComment(_ context.Context, repo string, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, body)

	key := commentKey(repo, number)
	f.comments[key] = append(f.comments[key], model.Comment{
		Username:  selfLogin,
		Body:      body,
		CreatedAt: f.postAt(),
	})
	return nil
}

func (f *fakeGW) Unassign(_ context.Context, repo string, number int, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unassigned = append(f.unassigned, username)
	list := f.issues[repo]
	for i := range list {
		if list[i].Number == number {
			list[i].Assignee = ""
		}
	}
	return nil
}

func commentKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

// testEngine wires an engine against the fake gateway with a settable clock.
type testEngine struct {
	*Engine
	gw    *fakeGW
	store *store.Store
	clock time.Time
}

func newTestEngine(t *testing.T, gw *fakeGW) *testEngine {
	t.Helper()

	st := store.NewStoreWithPath(filepath.Join(t.TempDir(), "state.json"))
	d := dispatch.New(gw, st, 2)

	settings := config.DefaultSettings()
	settings.Workers = 2

	te := &testEngine{
		Engine: NewEngine(gw, st, d, selfLogin, []string{"acme/widgets"}, settings),
		gw:     gw,
		store:  st,
		clock:  day0,
	}
	te.Engine.now = func() time.Time { return te.clock }

	// A posted comment reaches GitHub after the sweep captured its clock.
	gw.postAt = func() time.Time { return te.clock.Add(2 * time.Second) }
	return te
}

func (te *testEngine) advance(d time.Duration) {
	te.clock = te.clock.Add(d)
}

func (te *testEngine) run(t *testing.T) *Result {
	t.Helper()
	result, err := te.Engine.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	return result
}

func (te *testEngine) mustIssue(t *testing.T, id int64) model.Issue {
	t.Helper()
	issue, ok := te.IssueState(id)
	if !ok {
		t.Fatalf("issue %d not tracked", id)
	}
	return issue
}

func assignedSnapshot() model.IssueSnapshot {
	return model.IssueSnapshot{
		ID:        1,
		Number:    1,
		Title:     "flaky test on CI",
		Repo:      "acme/widgets",
		Assignee:  "alice",
		UpdatedAt: day0,
	}
}

func TestSweepTracksNewIssues(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())
	gw.setIssue(model.IssueSnapshot{ID: 2, Number: 2, Title: "docs typo", Repo: "acme/widgets", UpdatedAt: day0})
	gw.setIssue(model.IssueSnapshot{ID: 3, Number: 3, Title: "old bug", Repo: "acme/widgets", Closed: true, UpdatedAt: day0})

	te := newTestEngine(t, gw)
	result := te.run(t)

	if result.Discovered != 3 {
		t.Errorf("Discovered = %d, want 3", result.Discovered)
	}
	if got := te.mustIssue(t, 1); got.Status != model.StatusAssigned || got.Assignee != "alice" {
		t.Errorf("issue 1: %+v", got)
	}
	if got := te.mustIssue(t, 2); got.Status != model.StatusUnassigned {
		t.Errorf("issue 2 status = %q", got.Status)
	}
	if got := te.mustIssue(t, 3); got.Status != model.StatusResolved {
		t.Errorf("issue 3 status = %q", got.Status)
	}
}

func TestSweepFullAbandonmentCycle(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())
	gw.events["alice"] = []model.ActivityEvent{
		{Type: model.EventPush, OccurredAt: day0},
	}

	te := newTestEngine(t, gw)

	// Day 0: assigned and active.
	te.run(t)
	if got := te.mustIssue(t, 1); got.Status != model.StatusAssigned {
		t.Fatalf("day 0 status = %q", got.Status)
	}

	// Day 8: past the staleness threshold with no new activity.
	te.advance(8 * 24 * time.Hour)
	result := te.run(t)
	if got := te.mustIssue(t, 1); got.Status != model.StatusStale {
		t.Fatalf("day 8 status = %q", got.Status)
	}
	if result.Transitions != 1 {
		t.Errorf("day 8 transitions = %d, want 1", result.Transitions)
	}
	if len(gw.posted) != 0 {
		t.Fatalf("no reminder should be posted while merely stale")
	}

	// Next sweep: reminder goes out.
	te.advance(time.Hour)
	result = te.run(t)
	got := te.mustIssue(t, 1)
	if got.Status != model.StatusReminded {
		t.Fatalf("status = %q, want reminded", got.Status)
	}
	if got.ReminderSentAt == nil {
		t.Fatal("ReminderSentAt not recorded")
	}
	if result.Reminders != 1 || len(gw.posted) != 1 {
		t.Fatalf("reminders = %d, posted = %d", result.Reminders, len(gw.posted))
	}
	if !strings.Contains(gw.posted[0], "@alice") {
		t.Errorf("reminder body missing assignee mention: %q", gw.posted[0])
	}

	// Grace period expires with no response: release.
	te.advance(4 * 24 * time.Hour)
	result = te.run(t)
	got = te.mustIssue(t, 1)
	if got.Status != model.StatusReleased {
		t.Fatalf("status = %q, want released", got.Status)
	}
	if got.Assignee != "" {
		t.Errorf("assignee not cleared: %q", got.Assignee)
	}
	if result.Released != 1 || len(gw.unassigned) != 1 || gw.unassigned[0] != "alice" {
		t.Fatalf("released = %d, unassigned = %v", result.Released, gw.unassigned)
	}

	// Released issues return to unassigned availability; a later sweep with
	// no assignee keeps them released until someone claims the issue.
	te.advance(time.Hour)
	te.run(t)
	if got := te.mustIssue(t, 1); got.Status != model.StatusReleased {
		t.Fatalf("status = %q, want released", got.Status)
	}

	// A new claimant starts a fresh cycle.
	snap := assignedSnapshot()
	snap.Assignee = "bob"
	gw.setIssue(snap)
	te.advance(time.Hour)
	te.run(t)
	got = te.mustIssue(t, 1)
	if got.Status != model.StatusAssigned || got.Assignee != "bob" {
		t.Errorf("after reclaim: %+v", got)
	}
	if got.ReminderSentAt != nil {
		t.Error("ReminderSentAt not reset for new cycle")
	}
}

func TestSweepReminderResponseRecovers(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())

	te := newTestEngine(t, gw)
	te.run(t)

	// Drive to reminded.
	te.advance(8 * 24 * time.Hour)
	te.run(t)
	te.advance(time.Hour)
	te.run(t)
	if got := te.mustIssue(t, 1); got.Status != model.StatusReminded {
		t.Fatalf("status = %q, want reminded", got.Status)
	}

	// The assignee answers on the issue within the grace period.
	te.advance(24 * time.Hour)
	key := commentKey("acme/widgets", 1)
	gw.mu.Lock()
	gw.comments[key] = append(gw.comments[key],
		model.Comment{IssueID: 1, Username: "alice", Body: "still on it", CreatedAt: te.clock})
	gw.mu.Unlock()

	te.advance(time.Hour)
	te.run(t)

	got := te.mustIssue(t, 1)
	if got.Status != model.StatusAssigned {
		t.Fatalf("status = %q, want assigned after response", got.Status)
	}
	if got.ReminderSentAt != nil {
		t.Error("ReminderSentAt not cleared after recovery")
	}
	if len(gw.unassigned) != 0 {
		t.Errorf("nobody should have been unassigned: %v", gw.unassigned)
	}
}

func TestSweepOwnReminderIsNotAResponse(t *testing.T) {
	// The posted reminder lands on GitHub after the sweep captured its
	// clock, so its timestamp is later than ReminderSentAt. It must not
	// read as assignee activity, or the grace period could never expire.
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())

	te := newTestEngine(t, gw)
	te.run(t)
	te.advance(8 * 24 * time.Hour)
	te.run(t) // stale
	te.advance(time.Hour)
	te.run(t) // reminded; the fake echoes the comment back

	got := te.mustIssue(t, 1)
	if got.Status != model.StatusReminded {
		t.Fatalf("status = %q, want reminded", got.Status)
	}

	gw.mu.Lock()
	echoed := gw.comments[commentKey("acme/widgets", 1)]
	gw.mu.Unlock()
	if len(echoed) != 1 || echoed[0].Username != selfLogin {
		t.Fatalf("expected the reminder in the comment stream, got %+v", echoed)
	}
	if got.ReminderSentAt == nil || !echoed[0].CreatedAt.After(*got.ReminderSentAt) {
		t.Fatalf("test setup: echo at %v must postdate ReminderSentAt %v", echoed[0].CreatedAt, got.ReminderSentAt)
	}

	// No response through the whole grace period: the issue releases
	// instead of bouncing back to assigned on its own reminder.
	te.advance(4 * 24 * time.Hour)
	te.run(t)

	got = te.mustIssue(t, 1)
	if got.Status != model.StatusReleased {
		t.Fatalf("status = %q, want released", got.Status)
	}
	if len(gw.unassigned) != 1 || gw.unassigned[0] != "alice" {
		t.Errorf("unassigned = %v, want [alice]", gw.unassigned)
	}
	if len(gw.posted) != 1 {
		t.Errorf("posted = %d reminders, want exactly 1", len(gw.posted))
	}
}

func TestSweepActivityPreventsStaleness(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())

	te := newTestEngine(t, gw)
	te.run(t)

	// Fresh push events keep arriving.
	te.advance(6 * 24 * time.Hour)
	gw.mu.Lock()
	gw.events["alice"] = []model.ActivityEvent{
		{Type: model.EventPush, OccurredAt: te.clock.Add(-time.Hour)},
	}
	gw.mu.Unlock()

	te.advance(2 * 24 * time.Hour)
	te.run(t)

	if got := te.mustIssue(t, 1); got.Status != model.StatusAssigned {
		t.Errorf("status = %q, want assigned with ongoing activity", got.Status)
	}
}

func TestSweepFailedReminderLeavesState(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())

	te := newTestEngine(t, gw)
	te.run(t)
	te.advance(8 * 24 * time.Hour)
	te.run(t) // now stale

	// Every post attempt fails: the transition must not be committed.
	gw.mu.Lock()
	gw.postErr = &gateway.TransientError{Op: "post", Err: errors.New("boom")}
	gw.mu.Unlock()

	te.advance(time.Hour)
	result := te.run(t)

	got := te.mustIssue(t, 1)
	if got.Status != model.StatusStale {
		t.Fatalf("status = %q, want stale after failed reminder", got.Status)
	}
	if got.ReminderSentAt != nil {
		t.Error("ReminderSentAt must not be set when the post failed")
	}
	if result.Errors != 1 {
		t.Errorf("Errors = %d, want 1", result.Errors)
	}

	// The next sweep retries and succeeds.
	gw.mu.Lock()
	gw.postErr = nil
	gw.mu.Unlock()

	te.advance(time.Hour)
	te.run(t)
	got = te.mustIssue(t, 1)
	if got.Status != model.StatusReminded {
		t.Errorf("status = %q, want reminded after retry", got.Status)
	}
	if len(gw.posted) != 1 {
		t.Errorf("posted = %d, want exactly 1", len(gw.posted))
	}
}

func TestSweepClosedIssueResolves(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())

	te := newTestEngine(t, gw)
	te.run(t)

	snap := assignedSnapshot()
	snap.Closed = true
	gw.setIssue(snap)

	te.advance(time.Hour)
	te.run(t)

	if got := te.mustIssue(t, 1); got.Status != model.StatusResolved {
		t.Errorf("status = %q, want resolved", got.Status)
	}
}

func TestSweepExternalUnassign(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())

	te := newTestEngine(t, gw)
	te.run(t)

	snap := assignedSnapshot()
	snap.Assignee = ""
	gw.setIssue(snap)

	te.advance(time.Hour)
	te.run(t)

	if got := te.mustIssue(t, 1); got.Status != model.StatusUnassigned {
		t.Errorf("status = %q, want unassigned", got.Status)
	}
}

func TestSweepBulkheadIsolatesRepoFailure(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())
	gw.setIssue(model.IssueSnapshot{ID: 9, Number: 4, Title: "slow query", Repo: "acme/gadgets", Assignee: "carol", UpdatedAt: day0})
	gw.listErr["acme/gadgets"] = &gateway.TransientError{Op: "list", Err: errors.New("boom")}

	st := store.NewStoreWithPath(filepath.Join(t.TempDir(), "state.json"))
	d := dispatch.New(gw, st, 2)
	settings := config.DefaultSettings()
	settings.Workers = 2

	te := &testEngine{
		Engine: NewEngine(gw, st, d, selfLogin, []string{"acme/widgets", "acme/gadgets"}, settings),
		gw:     gw,
		store:  st,
		clock:  day0,
	}
	te.Engine.now = func() time.Time { return te.clock }

	// The healthy repo is still swept.
	te.run(t)
	if _, ok := te.IssueState(1); !ok {
		t.Error("healthy repo not swept when another repo failed")
	}
	if _, ok := te.IssueState(9); ok {
		t.Error("failed repo unexpectedly produced state")
	}
}

func TestSweepAllReposFailing(t *testing.T) {
	gw := newFakeGW()
	gw.listErr["acme/widgets"] = &gateway.TransientError{Op: "list", Err: errors.New("boom")}

	te := newTestEngine(t, gw)
	if _, err := te.Engine.Run(context.Background()); err == nil {
		t.Error("expected error when every repository listing fails")
	}
}

func TestSweepCommentFetchFailureIsolated(t *testing.T) {
	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())
	gw.commentErr = &gateway.TransientError{Op: "comments", Err: errors.New("boom")}

	te := newTestEngine(t, gw)
	te.run(t) // tracked as assigned on first sight

	te.advance(time.Hour)
	result := te.run(t)

	if result.Errors != 1 {
		t.Errorf("Errors = %d, want 1", result.Errors)
	}
	// State survives untouched for the next tick.
	if got := te.mustIssue(t, 1); got.Status != model.StatusAssigned {
		t.Errorf("status = %q, want assigned", got.Status)
	}
}
