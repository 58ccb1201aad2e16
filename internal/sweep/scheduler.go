package sweep

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cookiewatch/cookiewatch/internal/log"
)

// Scheduler runs sweeps on a fixed interval and on demand. Triggers that
// arrive while a sweep is running or already queued are coalesced into a
// single pending sweep.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	// budget caps the wall-clock time one sweep may spend.
	budget time.Duration

	trigger chan struct{}
	running atomic.Bool
}

// NewScheduler creates a scheduler around an engine.
func NewScheduler(engine *Engine, interval, budget time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		budget:   budget,
		trigger:  make(chan struct{}, 1),
	}
}

// TriggerNow requests an immediate sweep. It never blocks; when a sweep is
// already queued the request coalesces with it and false is returned.
func (s *Scheduler) TriggerNow() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run sweeps immediately, then on every interval tick or trigger, until the
// context is canceled. Sweeps never overlap; the loop is the only caller.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info("scheduler started", "interval", s.interval, "budget", s.budget)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("scheduler stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.trigger:
			s.sweep(ctx)
		}
	}
}

// RunOnce executes a single budgeted sweep outside the scheduling loop.
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, nil
	}
	defer s.running.Store(false)

	sweepCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	return s.engine.Run(sweepCtx)
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		log.Warn("sweep failed", "error", err)
	}

	// A trigger that arrived while this sweep ran is satisfied by it;
	// drop it instead of queueing a back-to-back sweep.
	select {
	case <-s.trigger:
	default:
	}
}
