// Package scheduler implements the Phase Clock: a durable, poll-driven
// timer that fires the Phase Transition Orchestrator for every active
// session whose phase_end_time has elapsed. A session-scheduling core
// needs the same "poll + FOR UPDATE SKIP LOCKED claim" shape a work queue
// does, just keyed on a timestamp column instead of a pending-status
// column.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Config holds Phase Clock poll-loop tuning.
type Config struct {
	// PollInterval is the base interval between due-session scans.
	PollInterval time.Duration
	// PollIntervalJitter is the random jitter applied to PollInterval, to
	// avoid every clock instance (in a multi-replica deployment) polling
	// in lockstep.
	PollIntervalJitter time.Duration
}

// DefaultConfig returns the Phase Clock's built-in poll tuning.
func DefaultConfig() Config {
	return Config{
		PollInterval:       2 * time.Second,
		PollIntervalJitter: 500 * time.Millisecond,
	}
}

// Orchestrator is the subset of pkg/orchestrator.Orchestrator the clock
// needs: one session id to advance per poll hit.
type Orchestrator interface {
	Advance(ctx context.Context, sessionID string) error
}

// DueSessionFinder abstracts the SessionStore method that atomically
// claims the next session whose phase_end_time has passed.
type DueSessionFinder interface {
	// NextDueSessionID returns the id of one due session (or "" if none
	// are due) using SELECT ... FOR UPDATE SKIP LOCKED, per the
	// "exactly one outstanding job per session at any time" requirement —
	// skip-locked guarantees two clock replicas never claim the same
	// session concurrently.
	NextDueSessionID(ctx context.Context) (string, error)
	// CountDuePast reports how many active sessions are already overdue —
	// used only for the startup visibility log.
	CountDuePast(ctx context.Context) (int, error)
}

// Clock runs the poll loop. phase_end_time already being a database
// column makes every poll tick restart-safe with no separate bootstrap
// step required for correctness; RescheduleActiveSessions below is
// operational visibility only.
type Clock struct {
	cfg    Config
	store  DueSessionFinder
	orch   Orchestrator
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Clock. Call Start to begin polling.
func New(cfg Config, store DueSessionFinder, orch Orchestrator) *Clock {
	return &Clock{
		cfg:    cfg,
		store:  store,
		orch:   orch,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the poll loop in a goroutine. Call Stop to shut it down.
func (c *Clock) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop signals the poll loop to exit and waits for it to finish.
func (c *Clock) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Clock) run(ctx context.Context) {
	defer close(c.doneCh)
	log := slog.With("component", "phase-clock")
	log.Info("phase clock started")

	for {
		select {
		case <-c.stopCh:
			log.Info("phase clock shutting down")
			return
		case <-ctx.Done():
			return
		default:
			advanced, err := c.pollOnce(ctx)
			if err != nil {
				log.Error("poll tick failed", "error", err)
				c.sleep(time.Second)
				continue
			}
			if !advanced {
				c.sleep(c.pollInterval())
			}
		}
	}
}

// pollOnce claims at most one due session and advances it. Returns
// whether a session was found, so the caller can poll again immediately
// (there may be more due sessions queued up) rather than sleeping.
func (c *Clock) pollOnce(ctx context.Context) (bool, error) {
	sessionID, err := c.store.NextDueSessionID(ctx)
	if err != nil {
		return false, err
	}
	if sessionID == "" {
		return false, nil
	}
	log := slog.With("component", "phase-clock", "session_id", sessionID)
	if err := c.orch.Advance(ctx, sessionID); err != nil {
		log.Error("phase transition failed", "error", err)
		// Leave phase_end_time as the orchestrator left it — if the
		// transition transaction aborted, phase_end_time is unchanged and
		// the next tick simply retries it, per "persistent
		// failure is alerted via log and requires operator intervention."
		return true, nil
	}
	return true, nil
}

func (c *Clock) sleep(d time.Duration) {
	select {
	case <-c.stopCh:
	case <-time.After(d):
	}
}

// pollInterval returns the configured interval plus symmetric jitter, so
// multiple clock replicas don't all wake up in lockstep.
func (c *Clock) pollInterval() time.Duration {
	if c.cfg.PollIntervalJitter <= 0 {
		return c.cfg.PollInterval
	}
	offset := time.Duration(rand.Int64N(int64(2 * c.cfg.PollIntervalJitter)))
	return c.cfg.PollInterval - c.cfg.PollIntervalJitter + offset
}

// RescheduleActiveSessions logs how many active sessions are already past
// their phase_end_time at boot. It is not required for correctness — the
// poll loop's `<=` comparison already fires misfired sessions immediately
// — but gives operators visibility into how much the clock was down for,
// per the one-minute misfire grace window.
func RescheduleActiveSessions(ctx context.Context, store DueSessionFinder) {
	n, err := store.CountDuePast(ctx)
	if err != nil {
		slog.Error("failed to count overdue sessions at boot", "error", err)
		return
	}
	if n > 0 {
		slog.Warn("found sessions overdue for a phase transition at startup", "count", n)
	}
}
