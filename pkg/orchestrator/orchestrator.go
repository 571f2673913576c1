// Package orchestrator implements the Phase Transition Orchestrator: on
// every Phase Clock fire, it runs the phase-specific exit hook for the
// phase that just ended, resolves the turn at lockout2, advances (or
// terminates) the cycle, and reschedules. This package is the only writer
// of a session's current_phase, phase_end_time, and turn_number once the
// game is active; every step below runs inside one database transaction,
// except that finalizing an ending session writes through SessionStore.End,
// outside that transaction.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/coup-league/coupd/pkg/models"
	"github.com/coup-league/coupd/pkg/resolver"
)

// SessionStore is the subset of pkg/store.SessionStore the orchestrator
// drives.
type SessionStore interface {
	GetTx(ctx context.Context, tx *sql.Tx, sessionID string) (*models.Session, error)
	SetPhaseTx(ctx context.Context, tx *sql.Tx, sessionID string, phase models.Phase, turnNumber int) error
	ScheduleNextTx(ctx context.Context, tx *sql.Tx, sess *models.Session) error
	SetLastTurnSummaryTx(ctx context.Context, tx *sql.Tx, sessionID, summary string) error
	UpdateDeckTx(ctx context.Context, tx *sql.Tx, sessionID string, deck, revealed []models.Role) error
	SetWinnersTx(ctx context.Context, tx *sql.Tx, sessionID string, winners []string) error
	End(ctx context.Context, sessionID string, winners []string) error
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// PlayerStore is the subset of pkg/store.PlayerStore the orchestrator
// drives.
type PlayerStore interface {
	ListBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]*models.PlayerGameState, error)
	ClearAllPendingActionsTx(ctx context.Context, tx *sql.Tx, sessionID string) error
	ApplyMutationTx(ctx context.Context, tx *sql.Tx, sessionID, userID string, coins, debt int, hand []models.Role, status models.PlayerStatus) error
}

// ReactionStore is the subset of pkg/store.ReactionStore the orchestrator
// drives.
type ReactionStore interface {
	ListForTurnTx(ctx context.Context, tx *sql.Tx, sessionID string, turnNumber int) ([]*models.Reaction, error)
	LockTurnTx(ctx context.Context, tx *sql.Tx, sessionID string, turnNumber int) error
	MarkResolvedTx(ctx context.Context, tx *sql.Tx, sessionID string, turnNumber int) error
}

// TurnResultStore is the subset of pkg/store.TurnResultStore the
// orchestrator drives.
type TurnResultStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, result *models.TurnResult) error
}

// Broadcaster is the Chat Fan-out surface the orchestrator invokes when
// leaving the broadcast phase. It is called
// post-commit and in the background — a broadcast failure must never
// cancel the phase cycle.
type Broadcaster interface {
	Broadcast(ctx context.Context, sessionID string) error
}

// Orchestrator drives one session's phase transition on each Phase Clock
// fire.
type Orchestrator struct {
	sessions  SessionStore
	players   PlayerStore
	reactions ReactionStore
	turns     TurnResultStore
	chat      Broadcaster
	rand      *rand.Rand
}

// New creates an Orchestrator. r drives the Turn Resolver's shuffles;
// production wires a crypto-seeded rand.Rand, tests a fixed-seed one.
func New(sessions SessionStore, players PlayerStore, reactions ReactionStore, turns TurnResultStore, chat Broadcaster, r *rand.Rand) *Orchestrator {
	return &Orchestrator{sessions: sessions, players: players, reactions: reactions, turns: turns, chat: chat, rand: r}
}

// Advance is called by pkg/scheduler.Clock for one due session. It is the
// sole entry point into the orchestrator.
func (o *Orchestrator) Advance(ctx context.Context, sessionID string) error {
	log := slog.With("component", "orchestrator", "session_id", sessionID)

	broadcastNeeded, err := o.advanceTx(ctx, sessionID, log)
	if err != nil {
		return err
	}
	if broadcastNeeded {
		// Best-effort, asynchronous: a broadcast failure must never cancel
		// the phase cycle. Using context.Background because
		// the request-scoped ctx may be cancelled before this completes.
		go func() {
			if err := o.chat.Broadcast(context.Background(), sessionID); err != nil {
				slog.Error("chat broadcast failed", "session_id", sessionID, "error", err)
			}
		}()
	}
	return nil
}

// advanceTx runs steps 1-6 of in a single transaction and
// reports whether a broadcast push should be kicked off after commit.
func (o *Orchestrator) advanceTx(ctx context.Context, sessionID string, log *slog.Logger) (broadcastNeeded bool, err error) {
	tx, err := o.sessions.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("begin orchestrator transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Step 1: load session; abort (no-op) if not active.
	sess, err := o.sessions.GetTx(ctx, tx, sessionID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if sess.Status != models.StatusActive {
		return false, nil
	}

	// The Ending Job is represented by the same phase_end_time column:
	// when it fires, current_phase is already models.PhaseEnding. This
	// firing finalizes the session unless a rematch request got there
	// first (which overwrites current_phase/phase_end_time itself, so this
	// branch is simply never reached for a rematched session).
	if sess.CurrentPhase == models.PhaseEnding {
		if err := o.sessions.End(ctx, sessionID, sess.Winners); err != nil {
			return false, fmt.Errorf("finalize ending session: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit ending finalize: %w", err)
		}
		log.Info("session completed", "winners", sess.Winners)
		return false, nil
	}

	leaving := sess.CurrentPhase
	turnNumber := sess.TurnNumber

	// Step 2: entry hook for the phase we are leaving.
	switch leaving {
	case models.PhaseAction:
		players, err := o.players.ListBySessionTx(ctx, tx, sessionID)
		if err != nil {
			return false, fmt.Errorf("list players leaving P1_action: %w", err)
		}
		pending := 0
		for _, p := range players {
			if p.PendingAction != nil {
				pending++
			}
		}
		log.Info("leaving P1_action", "pending_actions", pending)

	case models.PhaseLockout1:
		log.Info("entering P2_reaction")

	case models.PhaseReaction:
		if err := o.reactions.LockTurnTx(ctx, tx, sessionID, turnNumber); err != nil {
			return false, fmt.Errorf("lock turn reactions: %w", err)
		}

	case models.PhaseLockout2:
		if err := o.resolveTurnTx(ctx, tx, sess); err != nil {
			return false, fmt.Errorf("resolve turn: %w", err)
		}

	case models.PhaseBroadcast:
		if err := o.players.ClearAllPendingActionsTx(ctx, tx, sessionID); err != nil {
			return false, fmt.Errorf("clear pending actions: %w", err)
		}
		turnNumber++
		broadcastNeeded = true
	}

	// Step 3: compute next phase, diverting to ending if appropriate.
	next := leaving.Next()
	if next == models.PhaseAction {
		aliveCount, err := o.countAliveTx(ctx, tx, sessionID)
		if err != nil {
			return false, fmt.Errorf("count alive players: %w", err)
		}
		overTurnLimit := sess.TurnLimit > 0 && turnNumber > sess.TurnLimit
		if aliveCount <= 1 || overTurnLimit {
			next = models.PhaseEnding
			winners, err := o.winnersTx(ctx, tx, sessionID)
			if err != nil {
				return false, fmt.Errorf("compute winners: %w", err)
			}
			if err := o.sessions.SetWinnersTx(ctx, tx, sessionID, winners); err != nil {
				return false, fmt.Errorf("set winners: %w", err)
			}
		}
	}

	if err := o.sessions.SetPhaseTx(ctx, tx, sessionID, next, turnNumber); err != nil {
		return false, fmt.Errorf("set phase: %w", err)
	}
	sess.CurrentPhase = next
	sess.TurnNumber = turnNumber

	// Steps 4/6: schedule the next fire (or, for ending, the Ending Job —
	// same mechanism, see the PhaseEnding branch above).
	if err := o.sessions.ScheduleNextTx(ctx, tx, sess); err != nil {
		return false, fmt.Errorf("schedule next phase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit phase transition: %w", err)
	}
	log.Info("phase advanced", "from", leaving, "to", next, "turn_number", turnNumber)
	return broadcastNeeded, nil
}

// resolveTurnTx invokes the Turn Resolver over the current turn's
// snapshot and applies its mutation list, called once on leaving
// lockout2.
func (o *Orchestrator) resolveTurnTx(ctx context.Context, tx *sql.Tx, sess *models.Session) error {
	players, err := o.players.ListBySessionTx(ctx, tx, sess.ID)
	if err != nil {
		return fmt.Errorf("list players for resolution: %w", err)
	}
	allReactions, err := o.reactions.ListForTurnTx(ctx, tx, sess.ID, sess.TurnNumber)
	if err != nil {
		return fmt.Errorf("list reactions for resolution: %w", err)
	}
	var pending []*models.Reaction
	for _, rx := range allReactions {
		if !rx.IsResolved {
			pending = append(pending, rx)
		}
	}

	result := resolver.Resolve(o.rand, resolver.Snapshot{
		Session:   sess,
		Players:   players,
		Reactions: pending,
	})

	for _, m := range result.Mutations {
		if err := o.players.ApplyMutationTx(ctx, tx, sess.ID, m.UserID, m.Coins, m.Debt, m.Hand, m.Status); err != nil {
			return fmt.Errorf("apply mutation for %s: %w", m.UserID, err)
		}
	}
	if err := o.sessions.UpdateDeckTx(ctx, tx, sess.ID, result.Deck, result.Revealed); err != nil {
		return fmt.Errorf("persist deck: %w", err)
	}
	if err := o.turns.CreateTx(ctx, tx, result.TurnResult); err != nil {
		return fmt.Errorf("persist turn result: %w", err)
	}
	if err := o.sessions.SetLastTurnSummaryTx(ctx, tx, sess.ID, result.TurnResult.Summary); err != nil {
		return fmt.Errorf("persist turn summary: %w", err)
	}
	if err := o.reactions.MarkResolvedTx(ctx, tx, sess.ID, sess.TurnNumber); err != nil {
		return fmt.Errorf("mark reactions resolved: %w", err)
	}
	return nil
}

func (o *Orchestrator) countAliveTx(ctx context.Context, tx *sql.Tx, sessionID string) (int, error) {
	players, err := o.players.ListBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range players {
		if p.IsAlive() {
			n++
		}
	}
	return n, nil
}

// winnersTx names every still-alive player as a winner (ties are possible
// when the turn limit ends the game with more than one survivor — only
// single-survivor elimination is forbidden from tying).
func (o *Orchestrator) winnersTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]string, error) {
	players, err := o.players.ListBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	var winners []string
	for _, p := range players {
		if p.IsAlive() {
			winners = append(winners, p.DisplayName)
		}
	}
	return winners, nil
}
