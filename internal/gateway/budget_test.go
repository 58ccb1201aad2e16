package gateway

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBudgetTake(t *testing.T) {
	b := NewBudget(2)

	if err := b.Take(); err != nil {
		t.Fatalf("first take failed: %v", err)
	}
	if err := b.Take(); err != nil {
		t.Fatalf("second take failed: %v", err)
	}

	err := b.Take()
	var rle *RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitedError when exhausted, got %v", err)
	}
	if b.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", b.Remaining())
	}
}

func TestBudgetUpdateLowersToRemote(t *testing.T) {
	b := NewBudget(100)

	// The server says fewer calls are left than we think.
	b.Update(5, time.Now().Add(time.Hour))
	if b.Remaining() != 5 {
		t.Errorf("Remaining = %d, want 5", b.Remaining())
	}

	// A higher remote quota never raises the local counter.
	b.Update(50, time.Now().Add(time.Hour))
	if b.Remaining() != 5 {
		t.Errorf("Remaining = %d, want 5 after higher remote", b.Remaining())
	}
}

func TestBudgetRemoteExhaustion(t *testing.T) {
	b := NewBudget(100)
	b.Update(0, time.Now().Add(time.Minute))

	err := b.Take()
	var rle *RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitedError after remote exhaustion, got %v", err)
	}
	if rle.RetryAfter <= 0 {
		t.Errorf("expected a positive reset hint, got %v", rle.RetryAfter)
	}
}

func TestBudgetLimitedClearsAfterReset(t *testing.T) {
	b := NewBudget(10)
	b.SetLimited(time.Now().Add(-time.Second))

	if err := b.Take(); err != nil {
		t.Errorf("expected take to succeed after reset passed, got %v", err)
	}
}

func TestBudgetConcurrentTakes(t *testing.T) {
	const n = 50
	b := NewBudget(n)

	var wg sync.WaitGroup
	errs := make(chan error, n*2)
	for i := 0; i < n*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Take()
		}()
	}
	wg.Wait()
	close(errs)

	var ok, limited int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			limited++
		}
	}
	if ok != n {
		t.Errorf("expected exactly %d successful takes, got %d (limited %d)", n, ok, limited)
	}
}
