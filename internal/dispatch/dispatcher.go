// Package dispatch executes the side effects implied by lifecycle
// transitions against the GitHub gateway, effectively exactly once.
// Retryable failures are retried with exponential backoff inside the
// current sweep; a transition whose side effect never succeeds is not
// committed.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cookiewatch/cookiewatch/internal/gateway"
	"github.com/cookiewatch/cookiewatch/internal/log"
	"github.com/cookiewatch/cookiewatch/internal/model"
	"github.com/cookiewatch/cookiewatch/internal/store"
)

// maxHintWait bounds how long a rate-limit reset hint may push a retry.
// Hints beyond this are not worth blocking a sweep worker for; the issue
// is retried on the next tick instead.
const maxHintWait = 2 * time.Minute

// Dispatcher applies actions against the gateway with retry and
// idempotency guards.
type Dispatcher struct {
	gw          gateway.Gateway
	store       *store.Store
	maxAttempts int

	// initialInterval seeds the exponential backoff; shortened in tests.
	initialInterval time.Duration
}

// New creates a Dispatcher. maxAttempts bounds gateway tries per action
// within one sweep.
func New(gw gateway.Gateway, st *store.Store, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		gw:              gw,
		store:           st,
		maxAttempts:     maxAttempts,
		initialInterval: backoff.DefaultInitialInterval,
	}
}

// Dispatch performs the side effect for one action. A nil return means the
// effect is in place (performed now, already satisfied remotely, or
// already committed by an earlier sweep) and the caller may commit the
// transition. Any error means the transition must not be committed.
func (d *Dispatcher) Dispatch(ctx context.Context, action model.Action) error {
	// Idempotency guard: if the persisted record already advanced past
	// this transition, a concurrent or earlier run handled it.
	if stored, ok := d.store.Issue(action.IssueID); ok && applied(stored, action) {
		log.Debug("action already applied, skipping",
			"repo", action.Repo, "number", action.Number, "kind", action.Kind)
		return nil
	}

	hb := &hintedBackoff{base: d.newExponential()}

	op := func() error {
		err := d.perform(ctx, action)
		if err == nil {
			return nil
		}
		if gateway.AlreadySatisfied(err) {
			log.Debug("effect already satisfied remotely",
				"repo", action.Repo, "number", action.Number, "kind", action.Kind, "error", err)
			return nil
		}
		if !gateway.Retryable(err) {
			return backoff.Permanent(err)
		}

		var rle *gateway.RateLimitedError
		if errors.As(err, &rle) {
			if rle.RetryAfter > maxHintWait {
				// Reset is too far out for this sweep.
				return backoff.Permanent(err)
			}
			hb.hint = rle.RetryAfter
		}

		log.Debug("retrying action",
			"repo", action.Repo, "number", action.Number, "kind", action.Kind, "error", err)
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(hb, uint64(d.maxAttempts-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("dispatch %s for %s#%d: %w", action.Kind, action.Repo, action.Number, err)
	}
	return nil
}

// perform issues the single gateway call for the action.
func (d *Dispatcher) perform(ctx context.Context, action model.Action) error {
	switch action.Kind {
	case model.ActionReminder:
		return d.gw.PostComment(ctx, action.Repo, action.Number, action.Body)
	case model.ActionUnassign:
		return d.gw.Unassign(ctx, action.Repo, action.Number, action.Assignee)
	default:
		return fmt.Errorf("unknown action kind: %s", action.Kind)
	}
}

func (d *Dispatcher) newExponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialInterval
	b.MaxElapsedTime = 0 // attempt count is the bound, not elapsed time
	return b
}

// applied reports whether the persisted issue already reflects the action.
func applied(issue model.Issue, action model.Action) bool {
	if issue.Status.Terminal() {
		return true
	}
	if issue.Status == action.TargetState {
		return true
	}
	switch action.Kind {
	case model.ActionReminder:
		return issue.ReminderSentAt != nil
	case model.ActionUnassign:
		return issue.Assignee == ""
	}
	return false
}

// hintedBackoff widens the computed interval to the server's retry-after
// hint when one was provided.
type hintedBackoff struct {
	base backoff.BackOff
	hint time.Duration
}

func (h *hintedBackoff) NextBackOff() time.Duration {
	d := h.base.NextBackOff()
	if d == backoff.Stop {
		return backoff.Stop
	}
	if h.hint > d {
		d = h.hint
	}
	h.hint = 0
	return d
}

func (h *hintedBackoff) Reset() {
	h.base.Reset()
}
