package gateway

import (
	"sync"
	"time"
)

// Budget is the shared API call budget for one sweep. Every worker draws
// from the same counter before each gateway call, so the external rate
// limit is respected across the whole pool rather than per worker.
//
// The budget also mirrors GitHub's own quota as reported by response
// headers: whichever is lower wins.
type Budget struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	limited   bool
}

// NewBudget creates a budget allowing n gateway calls.
func NewBudget(n int) *Budget {
	return &Budget{remaining: n}
}

// Take consumes one unit. It returns a RateLimitedError when the budget is
// exhausted or the remote API reported itself limited.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limited && time.Now().Before(b.resetAt) {
		return &RateLimitedError{RetryAfter: time.Until(b.resetAt)}
	}
	b.limited = false

	if b.remaining <= 0 {
		return &RateLimitedError{RetryAfter: time.Until(b.resetAt)}
	}
	b.remaining--
	return nil
}

// Update folds the remote quota from response headers into the budget.
// The local counter never exceeds what the server says is left.
func (b *Budget) Update(remoteRemaining int, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !resetAt.IsZero() {
		b.resetAt = resetAt
	}
	if remoteRemaining >= 0 && remoteRemaining < b.remaining {
		b.remaining = remoteRemaining
	}
	if remoteRemaining == 0 {
		b.limited = true
	}
}

// SetLimited marks the budget as rate limited until resetAt.
func (b *Budget) SetLimited(resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limited = true
	b.resetAt = resetAt
}

// Remaining returns the number of calls still allowed.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Limited reports whether the budget is currently exhausted.
func (b *Budget) Limited() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limited && time.Now().Before(b.resetAt) {
		return true
	}
	return b.remaining <= 0
}
