package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
)

// ReactionStore persists models.Reaction rows. Reaction
// ids are a monotonic BIGSERIAL, which is exactly what the resolver's
// "earliest reaction wins" tie-break needs.
type ReactionStore struct {
	db *database.Client
}

// NewReactionStore creates a ReactionStore over the given connection pool.
func NewReactionStore(db *database.Client) *ReactionStore {
	return &ReactionStore{db: db}
}

// Set records a reaction for (reactor, actor, target_action) this turn.
// A player changing their mind before lockout overwrites their prior
// reaction rather than creating a second row, so the last submission
// before the lockout deadline always wins.
func (r *ReactionStore) Set(ctx context.Context, sessionID string, turnNumber int, reactorUserID, actorUserID string, targetAction models.ActionKind, kind models.ReactionKind, blockWithRole *models.Role) (*models.Reaction, error) {
	row := r.db.DB().QueryRowContext(ctx, `
		INSERT INTO reactions (session_id, turn_number, reactor_user_id, actor_user_id, target_action, kind, block_with_role)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (session_id, turn_number, reactor_user_id, actor_user_id, target_action)
		DO UPDATE SET kind=EXCLUDED.kind, block_with_role=EXCLUDED.block_with_role, is_locked=FALSE, is_resolved=FALSE
		RETURNING id, session_id, turn_number, reactor_user_id, actor_user_id, target_action, kind, block_with_role, is_locked, is_resolved`,
		sessionID, turnNumber, reactorUserID, actorUserID, targetAction, kind, blockWithRole)

	rx, err := scanReaction(row)
	if err != nil {
		return nil, fmt.Errorf("set reaction: %w", err)
	}
	return rx, nil
}

func scanReaction(row scanRow) (*models.Reaction, error) {
	var rx models.Reaction
	var blockRole sql.NullString
	if err := row.Scan(
		&rx.ID, &rx.SessionID, &rx.TurnNumber, &rx.ReactorUserID, &rx.ActorUserID,
		&rx.TargetAction, &rx.Kind, &blockRole, &rx.IsLocked, &rx.IsResolved,
	); err != nil {
		return nil, err
	}
	if blockRole.Valid {
		role := models.Role(blockRole.String)
		rx.BlockWithRole = &role
	}
	return &rx, nil
}

// ListForTurn returns every reaction recorded for a session's turn,
// ordered by id (earliest first), matching the resolver's iteration order.
func (r *ReactionStore) ListForTurn(ctx context.Context, sessionID string, turnNumber int) ([]*models.Reaction, error) {
	return r.listForTurnTx(ctx, r.db.DB(), sessionID, turnNumber)
}

// ListForTurnTx is the in-transaction variant used by the orchestrator,
// which must see a consistent reaction snapshot alongside the locked
// session row — all of a turn's transition steps happen in one
// transaction.
func (r *ReactionStore) ListForTurnTx(ctx context.Context, tx *sql.Tx, sessionID string, turnNumber int) ([]*models.Reaction, error) {
	return r.listForTurnTx(ctx, tx, sessionID, turnNumber)
}

func (r *ReactionStore) listForTurnTx(ctx context.Context, q querier, sessionID string, turnNumber int) ([]*models.Reaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, session_id, turn_number, reactor_user_id, actor_user_id, target_action, kind, block_with_role, is_locked, is_resolved
		FROM reactions WHERE session_id=$1 AND turn_number=$2 ORDER BY id ASC`, sessionID, turnNumber)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Reaction
	for rows.Next() {
		rx, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reaction row: %w", err)
		}
		out = append(out, rx)
	}
	return out, rows.Err()
}

// LockTurnTx marks every reaction for (sessionID, turnNumber) as locked,
// called when leaving P2_reaction: reactions are unlocked on entry and
// locked on exit, draining any in-flight submission before resolution.
func (r *ReactionStore) LockTurnTx(ctx context.Context, tx *sql.Tx, sessionID string, turnNumber int) error {
	_, err := tx.ExecContext(ctx, `UPDATE reactions SET is_locked=TRUE WHERE session_id=$1 AND turn_number=$2`, sessionID, turnNumber)
	if err != nil {
		return fmt.Errorf("lock turn reactions: %w", err)
	}
	return nil
}

// MarkResolvedTx marks every reaction for (sessionID, turnNumber) resolved,
// called by the resolver's applying transaction.
func (r *ReactionStore) MarkResolvedTx(ctx context.Context, tx *sql.Tx, sessionID string, turnNumber int) error {
	_, err := tx.ExecContext(ctx, `UPDATE reactions SET is_resolved=TRUE WHERE session_id=$1 AND turn_number=$2`, sessionID, turnNumber)
	if err != nil {
		return fmt.Errorf("mark reactions resolved: %w", err)
	}
	return nil
}
