// Package models contains the domain types shared by the store, resolver,
// scheduler, and API layers. Types here are plain data — no behavior that
// needs a database handle or an HTTP client lives in this package.
package models

import "time"

// Status is the lifecycle status of a session.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Phase is one of the six time-bounded segments of a turn.
type Phase string

const (
	PhaseAction    Phase = "P1_action"
	PhaseLockout1  Phase = "lockout1"
	PhaseReaction  Phase = "P2_reaction"
	PhaseLockout2  Phase = "lockout2"
	PhaseBroadcast Phase = "broadcast"
	PhaseEnding    Phase = "ending"
)

// phaseOrder is the fixed cycle a turn advances through; wrapping from
// PhaseBroadcast restarts at PhaseAction unless the orchestrator decides
// the game has ended.
var phaseOrder = []Phase{PhaseAction, PhaseLockout1, PhaseReaction, PhaseLockout2, PhaseBroadcast}

// Next returns the phase that follows p in the turn cycle. PhaseBroadcast
// wraps back to PhaseAction; any phase outside the cycle, PhaseEnding
// included, also yields PhaseAction (the orchestrator handles PhaseEnding
// before it calls Next).
func (p Phase) Next() Phase {
	for i, ph := range phaseOrder {
		if ph == p {
			return phaseOrder[(i+1)%len(phaseOrder)]
		}
	}
	return PhaseAction
}

// Durations holds the five turn-phase durations (minutes) a session is
// configured with, plus the ending-phase rematch window.
type Durations struct {
	ActionMinutes    int
	Lockout1Minutes  int
	ReactionMinutes  int
	Lockout2Minutes  int
	BroadcastMinutes int
	EndingMinutes    int
}

// DefaultDurations are the defaults
// (50/10/20/10/1/5 minutes).
func DefaultDurations() Durations {
	return Durations{
		ActionMinutes:    50,
		Lockout1Minutes:  10,
		ReactionMinutes:  20,
		Lockout2Minutes:  10,
		BroadcastMinutes: 1,
		EndingMinutes:    5,
	}
}

// Of returns the configured duration for phase p.
func (d Durations) Of(p Phase) time.Duration {
	var minutes int
	switch p {
	case PhaseAction:
		minutes = d.ActionMinutes
	case PhaseLockout1:
		minutes = d.Lockout1Minutes
	case PhaseReaction:
		minutes = d.ReactionMinutes
	case PhaseLockout2:
		minutes = d.Lockout2Minutes
	case PhaseBroadcast:
		minutes = d.BroadcastMinutes
	case PhaseEnding:
		minutes = d.EndingMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// MaxRematches is the upper bound on Session.RematchCount.
const MaxRematches = 3

// Session is the authoritative record for one game, owned by the Session
// Store.
type Session struct {
	ID                string
	Name              string
	Status            Status
	CurrentPhase      Phase // zero value ("") only valid when Status != StatusActive
	PhaseEndTime      *time.Time
	TurnNumber        int
	TurnLimit         int // 0 = unlimited
	MaxPlayers        int
	UpgradesEnabled   bool
	Durations         Durations
	RematchCount      int
	Winners           []string
	Deck              []Role
	Revealed          []Role
	DiscordChannelID  *string
	SlackChannelID    *string
	LastTurnSummary   string // summary of the most recently resolved turn, surfaced during broadcast
	CreatedAt         time.Time
}

// IsGameStarted reports whether the session has been started at least once
// (active or any state reached only after Start, per the
// status=active ⇔ is_game_started invariant in — sessions never
// return to "not started" once active, even after completing).
func (s *Session) IsGameStarted() bool {
	return s.Status == StatusActive || s.Status == StatusCompleted
}

// SessionConfig is the subset of Session fields a caller may set at create
// time or via update_config.
type SessionConfig struct {
	Name            string
	MaxPlayers      int
	TurnLimit       int
	UpgradesEnabled bool
	Durations       Durations
}
