package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/coup-league/coupd/pkg/models"
)

// ClaimDue finds one active session whose phase_end_time has passed,
// locks its row with SELECT ... FOR UPDATE SKIP LOCKED, and hands it (plus
// a commit function) to the caller — the same claim-and-lock pattern a
// work queue uses, applied to phase_end_time instead of a pending-status
// column, which is what makes the Phase Clock a durable, restart-safe
// poller rather than an in-process timer map.
//
// Returns (nil, nil, nil) when no session is due.
func (s *SessionStore) ClaimDue(ctx context.Context) (sess *models.Session, tx *sql.Tx, err error) {
	tx, err = s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin claim transaction: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id FROM sessions
		WHERE status = $1 AND phase_end_time IS NOT NULL AND phase_end_time <= now()
		ORDER BY phase_end_time ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, models.StatusActive)

	var id string
	if err := row.Scan(&id); err != nil {
		_ = tx.Rollback()
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("claim due session: %w", err)
	}

	sess, err = s.getTx(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, err
	}
	return sess, tx, nil
}

// NextDueSessionID claims and immediately releases one due session's lock,
// returning its id (or "" if none are due). It exists for
// pkg/scheduler.Clock, which only needs an id to hand to the Orchestrator
// (which re-locks the row itself inside its own transaction); ClaimDue
// remains for callers that need the row locked across a longer unit of
// work. Commiting immediately narrows, but does not eliminate, the window
// in which two Clock instances in a multi-replica deployment could both
// observe the same overdue session before the Orchestrator advances its
// phase_end_time — acceptable here because the Orchestrator's own
// transaction is the actual serialization point: it is the only writer
// of current_phase once a game is active, so a redundant Advance call on
// an already-advanced session is a safe no-op.
func (s *SessionStore) NextDueSessionID(ctx context.Context) (string, error) {
	sess, tx, err := s.ClaimDue(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", nil
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit claim: %w", err)
	}
	return sess.ID, nil
}

// CountDuePast reports how many active sessions have a phase_end_time
// already in the past. Used only for the startup visibility log — not
// required for correctness.
func (s *SessionStore) CountDuePast(ctx context.Context) (int, error) {
	var n int
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT count(*) FROM sessions
		WHERE status = $1 AND phase_end_time IS NOT NULL AND phase_end_time <= now()`,
		models.StatusActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count overdue sessions: %w", err)
	}
	return n, nil
}

// ScheduleNext sets phase_end_time to now + the duration of the session's
// current phase, removing any notion of an "existing job" by simply
// overwriting the column — idempotent by construction.
func (s *SessionStore) ScheduleNext(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	runAt := time.Now().Add(sess.Durations.Of(sess.CurrentPhase))
	_, err = s.db.DB().ExecContext(ctx, `UPDATE sessions SET phase_end_time=$2 WHERE id=$1`, sessionID, runAt)
	if err != nil {
		return fmt.Errorf("schedule next phase: %w", err)
	}
	return nil
}

// CancelClock clears phase_end_time, removing any outstanding schedule.
func (s *SessionStore) CancelClock(ctx context.Context, sessionID string) error {
	_, err := s.db.DB().ExecContext(ctx, `UPDATE sessions SET phase_end_time=NULL WHERE id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("cancel clock: %w", err)
	}
	return nil
}

// ScheduleNextTx is the in-transaction variant used by the orchestrator,
// which must set the next phase_end_time atomically with the phase/turn
// mutation it just performed, all within a single database transaction.
func (s *SessionStore) ScheduleNextTx(ctx context.Context, tx *sql.Tx, sess *models.Session) error {
	runAt := time.Now().Add(sess.Durations.Of(sess.CurrentPhase))
	_, err := tx.ExecContext(ctx, `UPDATE sessions SET phase_end_time=$2 WHERE id=$1`, sess.ID, runAt)
	if err != nil {
		return fmt.Errorf("schedule next phase (tx): %w", err)
	}
	sess.PhaseEndTime = &runAt
	return nil
}

// SetPhaseTx advances current_phase/turn_number within an orchestrator
// transaction. The orchestrator is the only writer of these fields once a
// session is active.
func (s *SessionStore) SetPhaseTx(ctx context.Context, tx *sql.Tx, sessionID string, phase models.Phase, turnNumber int) error {
	_, err := tx.ExecContext(ctx, `UPDATE sessions SET current_phase=$2, turn_number=$3 WHERE id=$1`,
		sessionID, phase, turnNumber)
	if err != nil {
		return fmt.Errorf("set phase: %w", err)
	}
	return nil
}

// SetLastTurnSummaryTx stores the most recently resolved turn's summary on
// the session row, for surfacing during the broadcast phase.
func (s *SessionStore) SetLastTurnSummaryTx(ctx context.Context, tx *sql.Tx, sessionID, summary string) error {
	_, err := tx.ExecContext(ctx, `UPDATE sessions SET last_turn_summary=$2 WHERE id=$1`, sessionID, summary)
	if err != nil {
		return fmt.Errorf("set last turn summary: %w", err)
	}
	return nil
}

// UpdateDeckTx persists the deck/revealed piles within an orchestrator or
// resolver-applying transaction (deck ops run in the
// caller's transaction).
func (s *SessionStore) UpdateDeckTx(ctx context.Context, tx *sql.Tx, sessionID string, deck, revealed []models.Role) error {
	_, err := tx.ExecContext(ctx, `UPDATE sessions SET deck=$2, revealed=$3 WHERE id=$1`,
		sessionID, pq.Array(stringsOf(deck)), pq.Array(stringsOf(revealed)))
	if err != nil {
		return fmt.Errorf("update deck: %w", err)
	}
	return nil
}

// GetTx fetches a session within an existing transaction (used by the
// orchestrator, which reads-modifies-writes the session row as one unit).
func (s *SessionStore) GetTx(ctx context.Context, tx *sql.Tx, sessionID string) (*models.Session, error) {
	return s.getTx(ctx, tx, sessionID)
}
