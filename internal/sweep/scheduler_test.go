package sweep

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cookiewatch/cookiewatch/config"
	"github.com/cookiewatch/cookiewatch/internal/dispatch"
	"github.com/cookiewatch/cookiewatch/internal/store"
)

func newTestScheduler(t *testing.T, interval time.Duration) (*Scheduler, *fakeGW) {
	t.Helper()

	gw := newFakeGW()
	gw.setIssue(assignedSnapshot())

	st := store.NewStoreWithPath(filepath.Join(t.TempDir(), "state.json"))
	d := dispatch.New(gw, st, 2)
	settings := config.DefaultSettings()
	settings.Workers = 2

	engine := NewEngine(gw, st, d, selfLogin, []string{"acme/widgets"}, settings)
	return NewScheduler(engine, interval, time.Minute), gw
}

func TestSchedulerRunsImmediately(t *testing.T) {
	s, _ := newTestScheduler(t, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The startup sweep should record a last-sweep time well before the
	// first interval tick.
	deadline := time.After(2 * time.Second)
	for {
		if !s.engine.store.LastSweep().IsZero() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no sweep ran on startup")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("unexpected run error: %v", err)
	}
}

func TestSchedulerTriggerNowCoalesces(t *testing.T) {
	s, _ := newTestScheduler(t, time.Hour)

	// Nothing is draining the channel, so only the first trigger queues.
	if !s.TriggerNow() {
		t.Error("first trigger should queue")
	}
	if s.TriggerNow() {
		t.Error("second trigger should coalesce")
	}
	if s.TriggerNow() {
		t.Error("third trigger should coalesce")
	}
}

func TestSchedulerTriggerRunsSweep(t *testing.T) {
	s, _ := newTestScheduler(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Wait for the startup sweep, note its time, then trigger another.
	var first time.Time
	deadline := time.After(2 * time.Second)
	for first.IsZero() {
		first = s.engine.store.LastSweep()
		select {
		case <-deadline:
			t.Fatal("startup sweep never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.TriggerNow()

	deadline = time.After(2 * time.Second)
	for {
		if s.engine.store.LastSweep().After(first) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("triggered sweep never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestSweepDropsTriggerItSatisfied(t *testing.T) {
	s, _ := newTestScheduler(t, time.Hour)

	// A trigger queued before the sweep ran is satisfied by that sweep
	// and must not queue a back-to-back run.
	if !s.TriggerNow() {
		t.Fatal("trigger should queue")
	}
	s.sweep(context.Background())

	if !s.TriggerNow() {
		t.Error("pending trigger should have been dropped by the completed sweep")
	}
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	s, _ := newTestScheduler(t, time.Hour)

	s.running.Store(true)
	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Error("overlapping RunOnce must return nil result")
	}
	s.running.Store(false)

	result, err = s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Error("expected a result once the previous sweep finished")
	}
}
