// Package store: PlayerStore persists models.PlayerGameState rows for a
// session's roster, in the same transaction-per-operation /
// typed-sentinel-error idiom as SessionStore.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
)

// PlayerStore persists models.PlayerGameState rows.
type PlayerStore struct {
	db *database.Client
}

// NewPlayerStore creates a PlayerStore over the given connection pool.
func NewPlayerStore(db *database.Client) *PlayerStore {
	return &PlayerStore{db: db}
}

// Join adds a user to a waiting session's roster. Rejects
// duplicates and sessions already at max_players or already started.
func (p *PlayerStore) Join(ctx context.Context, sessionID, userID, displayName string) (*models.PlayerGameState, error) {
	tx, err := p.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin join transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var maxPlayers int
	if err := tx.QueryRowContext(ctx, `SELECT status, max_players FROM sessions WHERE id=$1 FOR UPDATE`, sessionID).
		Scan(&status, &maxPlayers); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, coreerr.ErrNotFound
		}
		return nil, fmt.Errorf("lock session for join: %w", err)
	}
	if models.Status(status) != models.StatusWaiting {
		return nil, fmt.Errorf("session %s not waiting: %w", sessionID, coreerr.ErrInvalidState)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM player_game_states WHERE session_id=$1`, sessionID).Scan(&count); err != nil {
		return nil, fmt.Errorf("count roster: %w", err)
	}
	if count >= maxPlayers {
		return nil, fmt.Errorf("session %s is full: %w", sessionID, coreerr.ErrPreconditionFailed)
	}

	var exists int
	_ = tx.QueryRowContext(ctx, `SELECT 1 FROM player_game_states WHERE session_id=$1 AND user_id=$2`, sessionID, userID).Scan(&exists)
	if exists == 1 {
		return nil, fmt.Errorf("user %s already joined: %w", userID, coreerr.ErrPreconditionFailed)
	}

	player := &models.PlayerGameState{
		UserID:      userID,
		SessionID:   sessionID,
		DisplayName: displayName,
		JoinOrder:   count,
		Coins:       2,
		Status:      models.StatusAlive,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO player_game_states (user_id, session_id, display_name, join_order, coins, debt, hand, status)
		VALUES ($1,$2,$3,$4,$5,0,'{}','alive')`,
		userID, sessionID, displayName, player.JoinOrder, player.Coins)
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit join: %w", err)
	}
	return player, nil
}

// Leave removes a user from a waiting session's roster.
func (p *PlayerStore) Leave(ctx context.Context, sessionID, userID string) error {
	tx, err := p.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin leave transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id=$1 FOR UPDATE`, sessionID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return coreerr.ErrNotFound
		}
		return fmt.Errorf("lock session for leave: %w", err)
	}
	if models.Status(status) != models.StatusWaiting {
		return fmt.Errorf("session %s not waiting: %w", sessionID, coreerr.ErrInvalidState)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM player_game_states WHERE session_id=$1 AND user_id=$2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerr.ErrNotFound
	}
	return tx.Commit()
}

// Get fetches a single player's state.
func (p *PlayerStore) Get(ctx context.Context, sessionID, userID string) (*models.PlayerGameState, error) {
	return p.getTx(ctx, p.db.DB(), sessionID, userID)
}

func (p *PlayerStore) getTx(ctx context.Context, q querier, sessionID, userID string) (*models.PlayerGameState, error) {
	row := q.QueryRowContext(ctx, `
		SELECT user_id, session_id, display_name, join_order, coins, debt, hand, status,
		       pending_action, pending_target, pending_upgrade
		FROM player_game_states WHERE session_id=$1 AND user_id=$2`, sessionID, userID)
	pl, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coreerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return pl, nil
}

// scanRow is satisfied by *sql.Row and *sql.Rows via a closure in callers.
type scanRow interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanRow) (*models.PlayerGameState, error) {
	var pl models.PlayerGameState
	var hand []string
	var pendingAction, pendingTarget sql.NullString
	var pendingUpgrade []byte

	if err := row.Scan(
		&pl.UserID, &pl.SessionID, &pl.DisplayName, &pl.JoinOrder, &pl.Coins, &pl.Debt,
		pq.Array(&hand), &pl.Status, &pendingAction, &pendingTarget, &pendingUpgrade,
	); err != nil {
		return nil, err
	}
	pl.Hand = rolesOf(hand)
	if pendingAction.Valid {
		k := models.ActionKind(pendingAction.String)
		pl.PendingAction = &k
	}
	if pendingTarget.Valid {
		pl.PendingTarget = &pendingTarget.String
	}
	if len(pendingUpgrade) > 0 {
		var up models.UpgradeFlags
		if err := json.Unmarshal(pendingUpgrade, &up); err == nil {
			pl.PendingUpgrade = &up
		}
	}
	return &pl, nil
}

// ListBySession returns every player in a session, in join order, which is
// also the order the resolver iterates players in when applying outcomes.
func (p *PlayerStore) ListBySession(ctx context.Context, sessionID string) ([]*models.PlayerGameState, error) {
	return p.listBySessionTx(ctx, p.db.DB(), sessionID)
}

func (p *PlayerStore) listBySessionTx(ctx context.Context, q querier, sessionID string) ([]*models.PlayerGameState, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, session_id, display_name, join_order, coins, debt, hand, status,
		       pending_action, pending_target, pending_upgrade
		FROM player_game_states WHERE session_id=$1 ORDER BY join_order ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []*models.PlayerGameState
	for rows.Next() {
		pl, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player row: %w", err)
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// SetPendingAction records a player's submitted action for the turn.
// Overwrites any previous pending action — last-write-wins.
// Validation (phase, target aliveness, coin prerequisites) is the caller's
// responsibility (pkg/api), since it needs the session's current_phase and
// the full roster, which this single-row store method does not load.
func (p *PlayerStore) SetPendingAction(ctx context.Context, sessionID, userID string, action models.ActionKind, target *string, upgrade *models.UpgradeFlags) (*models.PlayerGameState, error) {
	var upgradeJSON []byte
	if upgrade != nil {
		var err error
		upgradeJSON, err = json.Marshal(upgrade)
		if err != nil {
			return nil, fmt.Errorf("marshal upgrade flags: %w", err)
		}
	}
	_, err := p.db.DB().ExecContext(ctx, `
		UPDATE player_game_states SET pending_action=$3, pending_target=$4, pending_upgrade=$5
		WHERE session_id=$1 AND user_id=$2`,
		sessionID, userID, string(action), target, nullableJSON(upgradeJSON))
	if err != nil {
		return nil, fmt.Errorf("set pending action: %w", err)
	}
	return p.Get(ctx, sessionID, userID)
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// ClearAllPendingActionsTx clears every player's pending action in a
// session, called by the orchestrator when leaving the broadcast phase
// to reset state before the next turn begins.
func (p *PlayerStore) ClearAllPendingActionsTx(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE player_game_states SET pending_action=NULL, pending_target=NULL, pending_upgrade=NULL
		WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("clear pending actions: %w", err)
	}
	return nil
}

// ListBySessionTx is the in-transaction variant used by the orchestrator
// and resolver caller, which must read a consistent player snapshot
// alongside the session row it already holds a lock on.
func (p *PlayerStore) ListBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]*models.PlayerGameState, error) {
	return p.listBySessionTx(ctx, tx, sessionID)
}

// ApplyMutationTx writes one player's post-resolution state (coins, hand,
// status) within the orchestrator's transaction, applying one entry of a
// resolver.Result's mutation list.
func (p *PlayerStore) ApplyMutationTx(ctx context.Context, tx *sql.Tx, sessionID, userID string, coins, debt int, hand []models.Role, status models.PlayerStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE player_game_states SET coins=$3, debt=$4, hand=$5, status=$6
		WHERE session_id=$1 AND user_id=$2`,
		sessionID, userID, coins, debt, pq.Array(stringsOf(hand)), status)
	if err != nil {
		return fmt.Errorf("apply player mutation: %w", err)
	}
	return nil
}
