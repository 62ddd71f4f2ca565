package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"upwatch/internal/config"
	"upwatch/internal/models"
	"upwatch/internal/storage"
)

// CycleOutcome describes how a single monitoring cycle ended.
type CycleOutcome int

const (
	// CycleCompleted means every registered target was probed and reconciled.
	CycleCompleted CycleOutcome = iota
	// CycleSkippedOffline means the device had no network at tick time.
	CycleSkippedOffline
	// CycleSkippedBusy means a previous cycle was still running; the tick
	// was dropped, not queued.
	CycleSkippedBusy
	// CycleFailed means the cycle could not run (e.g. the store was
	// unavailable); the next tick retries.
	CycleFailed
)

// Prober checks a single target.
type Prober interface {
	Probe(ctx context.Context, target models.Target) models.ProbeOutcome
}

// Scheduler drives monitoring cycles on a persisted interval. It enforces
// the connectivity gate and at-most-one-active-cycle semantics, and re-arms
// itself idempotently across process restarts.
type Scheduler struct {
	store         storage.Storer
	prober        Prober
	reconciler    *Reconciler
	connectivity  ConnectivityChecker
	maxConcurrent int

	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	cycleActive atomic.Bool
	cycleWG     sync.WaitGroup
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(store storage.Storer, prober Prober, reconciler *Reconciler, connectivity ConnectivityChecker, maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 50
	}
	return &Scheduler{
		store:         store,
		prober:        prober,
		reconciler:    reconciler,
		connectivity:  connectivity,
		maxConcurrent: maxConcurrent,
	}
}

// Start persists the desired schedule and (re)arms the cycle timer. Any
// pending trigger from a previous interval is cancelled first, so a stale
// timer can never fire after reconfiguration.
func (s *Scheduler) Start(ctx context.Context, intervalMinutes int) error {
	if !config.IntervalAllowed(intervalMinutes) {
		return fmt.Errorf("interval %d minutes is not one of %v", intervalMinutes, config.AllowedIntervals)
	}
	if err := s.store.SetMonitoring(ctx, true, intervalMinutes); err != nil {
		return fmt.Errorf("failed to persist monitoring schedule: %w", err)
	}
	s.arm(time.Duration(intervalMinutes)*time.Minute, true)
	return nil
}

// Stop persists the disabled state and cancels all future triggers.
// In-flight probes from an already-started cycle drain naturally.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopLocked()
	interval := s.interval
	s.mu.Unlock()

	s.cycleWG.Wait()

	// A never-armed scheduler has no live interval; keep whatever schedule
	// is already persisted so a stray stop cannot rewrite it.
	intervalMinutes := int(interval / time.Minute)
	if intervalMinutes == 0 {
		settings, err := s.store.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("failed to load monitoring settings: %w", err)
		}
		intervalMinutes = settings.IntervalMinutes
	}
	if !config.IntervalAllowed(intervalMinutes) {
		intervalMinutes = config.AllowedIntervals[0]
	}
	if err := s.store.SetMonitoring(ctx, false, intervalMinutes); err != nil {
		return fmt.Errorf("failed to persist monitoring state: %w", err)
	}
	return nil
}

// Shutdown stops the timer loop and drains in-flight cycles without
// touching the persisted schedule, so the engine re-arms on next start.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.cycleWG.Wait()
}

// Rearm restores the persisted schedule at process start. It is idempotent:
// if the loop is already armed at the persisted interval, nothing changes.
func (s *Scheduler) Rearm(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load monitoring settings: %w", err)
	}
	if !settings.MonitoringEnabled {
		return nil
	}
	intervalMinutes := settings.IntervalMinutes
	if !config.IntervalAllowed(intervalMinutes) {
		intervalMinutes = config.AllowedIntervals[0]
	}
	s.arm(time.Duration(intervalMinutes)*time.Minute, false)
	return nil
}

// Enabled reports the persisted monitoring flag.
func (s *Scheduler) Enabled(ctx context.Context) (bool, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return false, err
	}
	return settings.MonitoringEnabled, nil
}

// Running reports whether the cycle timer is currently armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

// arm starts the timer loop. With force set, an already-armed loop is
// stopped and restarted (stop-then-start semantics); without it, arming is
// a no-op when a loop at the same interval is already running.
func (s *Scheduler) arm(interval time.Duration, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		if !force && s.interval == interval {
			return
		}
		s.stopLocked()
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.interval = interval

	log.Printf("monitoring armed with interval %s", interval)
	go s.runLoop(interval, stopCh, doneCh)
}

// stopLocked cancels the running loop and waits for it to exit. Callers
// must hold s.mu.
func (s *Scheduler) stopLocked() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
	s.doneCh = nil
	log.Println("monitoring stopped")
}

func (s *Scheduler) runLoop(interval time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	// First cycle runs immediately so a freshly armed (or re-armed)
	// schedule produces data without waiting a full interval.
	s.launchCycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.launchCycle()
		case <-stopCh:
			return
		}
	}
}

// launchCycle runs a cycle without blocking the timer loop, so Stop never
// waits behind slow probes and overlapping ticks are dropped by RunCycle.
func (s *Scheduler) launchCycle() {
	s.cycleWG.Add(1)
	go func() {
		defer s.cycleWG.Done()
		s.RunCycle(context.Background())
	}()
}

// RunCycle executes one monitoring cycle: connectivity gate, target fan-out,
// reconciliation. At most one cycle runs at a time; a cycle started while
// another is active reports CycleSkippedBusy and does nothing.
func (s *Scheduler) RunCycle(ctx context.Context) CycleOutcome {
	if !s.cycleActive.CompareAndSwap(false, true) {
		log.Println("previous cycle still running, dropping tick")
		return CycleSkippedBusy
	}
	defer s.cycleActive.Store(false)

	if !s.connectivity.Online() {
		log.Println("device offline, deferring cycle to next tick")
		return CycleSkippedOffline
	}

	targets, err := s.store.ListTargets(ctx)
	if err != nil {
		log.Printf("error fetching targets for cycle: %v", err)
		return CycleFailed
	}
	if len(targets) == 0 {
		return CycleCompleted
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(target models.Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := s.prober.Probe(ctx, target)
			if err := s.reconciler.Reconcile(ctx, outcome); err != nil {
				log.Printf("error reconciling target %s: %v", target.ID, err)
			}
		}(t)
	}
	wg.Wait()

	log.Printf("cycle completed for %d targets", len(targets))
	return CycleCompleted
}
