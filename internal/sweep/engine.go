// Package sweep drives the cookie-licking detection pass: discover tracked
// issues, re-score assignees, advance each issue's lifecycle, and dispatch
// the implied side effects. One sweep touches every candidate issue at most
// once; failures are contained per issue.
package sweep

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cookiewatch/cookiewatch/config"
	"github.com/cookiewatch/cookiewatch/internal/dispatch"
	"github.com/cookiewatch/cookiewatch/internal/gateway"
	"github.com/cookiewatch/cookiewatch/internal/lifecycle"
	"github.com/cookiewatch/cookiewatch/internal/log"
	"github.com/cookiewatch/cookiewatch/internal/model"
	"github.com/cookiewatch/cookiewatch/internal/store"
	"github.com/cookiewatch/cookiewatch/internal/trust"
)

// Engine runs detection sweeps over the configured repositories.
type Engine struct {
	gw         gateway.Gateway
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	self       string
	repos      []string
	settings   config.Settings

	// now is the injected clock; tests simulate elapsed days through it.
	now func() time.Time
}

// NewEngine creates a sweep engine. self is the authenticated account's
// login; comments it authors (the engine's own reminders) are never
// counted as assignee activity.
func NewEngine(gw gateway.Gateway, st *store.Store, d *dispatch.Dispatcher, self string, repos []string, settings config.Settings) *Engine {
	return &Engine{
		gw:         gw,
		store:      st,
		dispatcher: d,
		self:       self,
		repos:      repos,
		settings:   settings,
		now:        time.Now,
	}
}

// IssueState returns the last committed state of a tracked issue. An issue
// mid-retry reports its previous state, never a half-applied transition.
func (e *Engine) IssueState(id int64) (model.Issue, bool) {
	return e.store.Issue(id)
}

// Result summarizes one sweep.
type Result struct {
	Discovered  int
	Processed   int
	Transitions int
	Reminders   int
	Released    int
	Resolved    int
	Skipped     int
	Errors      int
	RateLimited bool
}

// Run executes one full sweep. Per-issue failures are logged and counted
// but never abort the pass; the returned error covers only setup-level
// failures such as every repository listing failing.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	now := e.now()
	result := &Result{}

	snapshots, err := e.discover(ctx, result)
	if err != nil {
		return result, err
	}

	candidates := e.candidates(snapshots)
	log.Info("sweep started", "issues", len(candidates), "repos", len(e.repos))

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Workers)

	for _, issue := range candidates {
		issue := issue
		snap, ok := snapshots[issue.ID]
		if !ok {
			// Repo listing failed or the issue vanished remotely; leave
			// its state for the next tick.
			mu.Lock()
			result.Skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			err := e.processIssue(gctx, issue, snap, now, result, &mu)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				result.Errors++
				var rle *gateway.RateLimitedError
				if errors.As(err, &rle) {
					result.RateLimited = true
				}
				log.Warn("issue processing failed", "issue", issue.Key(), "error", err)
			}
			// Never propagate: one bad issue must not cancel the group.
			return nil
		})
	}

	_ = g.Wait()

	if err := e.store.SetLastSweep(now); err != nil {
		log.Warn("failed to record sweep time", "error", err)
	}

	log.Info("sweep finished",
		"processed", result.Processed,
		"transitions", result.Transitions,
		"reminders", result.Reminders,
		"released", result.Released,
		"errors", result.Errors,
		"rateLimited", result.RateLimited)

	return result, ctx.Err()
}

// discover lists every configured repository and merges the remote issue
// state into the store. It returns the fresh snapshots keyed by issue ID.
func (e *Engine) discover(ctx context.Context, result *Result) (map[int64]model.IssueSnapshot, error) {
	snapshots := make(map[int64]model.IssueSnapshot)
	failures := 0

	for _, repo := range e.repos {
		snaps, err := e.gw.ListIssues(ctx, repo)
		if err != nil {
			failures++
			var rle *gateway.RateLimitedError
			if errors.As(err, &rle) {
				result.RateLimited = true
			}
			log.Warn("issue discovery failed", "repo", repo, "error", err)
			continue
		}
		for _, snap := range snaps {
			snapshots[snap.ID] = snap
			if err := e.track(snap); err != nil {
				log.Warn("failed to track issue", "repo", repo, "number", snap.Number, "error", err)
			}
		}
	}

	result.Discovered = len(snapshots)

	if len(e.repos) > 0 && failures == len(e.repos) {
		return snapshots, errors.New("discovery failed for every configured repository")
	}
	return snapshots, nil
}

// track creates the store record for a newly observed issue. Existing
// records only pick up the current title; their lifecycle state is the
// engine's, not GitHub's.
func (e *Engine) track(snap model.IssueSnapshot) error {
	now := e.now()

	if existing, ok := e.store.Issue(snap.ID); ok {
		if existing.Title != snap.Title {
			existing.Title = snap.Title
			return e.store.UpsertIssue(existing)
		}
		return nil
	}

	issue := model.Issue{
		ID:             snap.ID,
		Number:         snap.Number,
		Title:          snap.Title,
		Repo:           snap.Repo,
		Status:         model.StatusUnassigned,
		LastActivityAt: snap.UpdatedAt,
		UpdatedAt:      now,
	}
	switch {
	case snap.Closed:
		issue.Status = model.StatusResolved
	case snap.Assignee != "":
		issue.Status = model.StatusAssigned
		issue.Assignee = snap.Assignee
	}

	log.Trace("tracking new issue", "issue", issue.Key(), "status", issue.Status)
	return e.store.UpsertIssue(issue)
}

// candidates returns every stored non-terminal issue that this sweep
// should evaluate.
func (e *Engine) candidates(snapshots map[int64]model.IssueSnapshot) []model.Issue {
	var out []model.Issue
	for _, issue := range e.store.Issues() {
		if issue.Status.Terminal() {
			continue
		}
		if _, ok := snapshots[issue.ID]; !ok {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// processIssue runs the per-issue pipeline: fetch, score, decide, dispatch,
// commit. Operations within one issue are strictly sequential.
func (e *Engine) processIssue(ctx context.Context, issue model.Issue, snap model.IssueSnapshot, now time.Time, result *Result, mu *sync.Mutex) error {
	obs := lifecycle.Observation{
		Closed:   snap.Closed,
		Assignee: snap.Assignee,
	}

	// Activity only matters for issues inside the staleness lifecycle.
	if issue.Status.Sweepable() && snap.Assignee != "" && !snap.Closed {
		activity, err := e.observeActivity(ctx, issue, snap.Assignee, now)
		if err != nil {
			return err
		}
		obs.LastActivityAt = activity
	}

	th := lifecycle.Thresholds{
		StaleAfter:    e.settings.StaleAfter,
		ReminderGrace: e.settings.ReminderGrace,
	}

	ch := lifecycle.Decide(issue, obs, now, th)

	if ch.Action != "" {
		action := e.buildAction(issue, ch)
		if err := e.dispatcher.Dispatch(ctx, action); err != nil {
			if errors.Is(err, gateway.ErrForbidden) {
				// Non-retryable this tick: keep the last committed state.
				log.Warn("action forbidden, skipping issue", "issue", issue.Key(), "kind", action.Kind)
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}
			return err
		}
	}

	transitioned := ch.To != issue.Status
	lifecycle.Apply(&issue, ch, obs, now)

	if err := e.store.UpsertIssue(issue); err != nil {
		return err
	}

	if transitioned {
		mu.Lock()
		result.Transitions++
		switch {
		case ch.Action == model.ActionReminder:
			result.Reminders++
		case ch.To == model.StatusReleased:
			result.Released++
		case ch.To == model.StatusResolved:
			result.Resolved++
		}
		mu.Unlock()
		log.Info("issue transitioned", "issue", issue.Key(), "to", ch.To, "reason", ch.Reason)
	}

	return nil
}

// observeActivity fetches the issue's comments and the assignee's recent
// events, persists the contributor trust snapshot, and returns the newest
// activity touching the issue.
func (e *Engine) observeActivity(ctx context.Context, issue model.Issue, assignee string, now time.Time) (time.Time, error) {
	comments, err := e.gw.IssueComments(ctx, issue.Repo, issue.Number)
	if err != nil {
		return time.Time{}, err
	}

	events, err := e.gw.RecentEvents(ctx, assignee)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			// Account gone: no activity to credit.
			events = nil
		} else {
			return time.Time{}, err
		}
	}

	score, tag := trust.Score(events, now, e.weights())
	contributor := model.Contributor{
		Username:       assignee,
		TrustScore:     score,
		Tag:            tag,
		LastActivityAt: trust.LastQualifyingActivity(events),
		CheckedAt:      now,
	}
	if err := e.store.PutContributor(contributor); err != nil {
		log.Warn("failed to store contributor snapshot", "username", assignee, "error", err)
	}

	log.Trace("scored assignee", "username", assignee, "score", score, "tag", tag)

	latest := trust.LastQualifyingActivity(events)
	for _, c := range comments {
		// The engine's own comments land on GitHub before the transition
		// commits, so their timestamps read as post-reminder activity.
		// They are never a response.
		if e.self != "" && c.Username == e.self {
			continue
		}
		if c.CreatedAt.After(latest) {
			latest = c.CreatedAt
		}
	}
	return latest, nil
}

// buildAction materializes the side effect named by a change.
func (e *Engine) buildAction(issue model.Issue, ch lifecycle.Change) model.Action {
	action := model.Action{
		Kind:        ch.Action,
		IssueID:     issue.ID,
		Repo:        issue.Repo,
		Number:      issue.Number,
		Assignee:    issue.Assignee,
		TargetState: ch.To,
	}
	if ch.Action == model.ActionReminder {
		action.Body = strings.ReplaceAll(e.settings.ReminderTemplate, "{assignee}", issue.Assignee)
	}
	return action
}

func (e *Engine) weights() trust.Weights {
	return trust.Weights{
		Push:              e.settings.PushWeight,
		PullRequest:       e.settings.PullRequestWeight,
		IssueComment:      e.settings.IssueCommentWeight,
		InactivityPenalty: e.settings.InactivityPenalty,
		RecentWindow:      e.settings.RecentWindow,
		EventWindow:       e.settings.EventWindow,
	}
}
