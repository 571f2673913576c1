// Package store is the persistence layer: one hand-written repository type
// per domain entity, each backed by pkg/database's pgx-over-database/sql
// connection pool. Every write lives in its own transaction with typed
// sentinel errors on failure (see DESIGN.md for why raw SQL rather than
// a generated query builder).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
)

// SessionStore persists models.Session rows.
type SessionStore struct {
	db *database.Client
}

// NewSessionStore creates a SessionStore over the given connection pool.
func NewSessionStore(db *database.Client) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session in models.StatusWaiting with an empty roster.
func (s *SessionStore) Create(ctx context.Context, cfg models.SessionConfig) (*models.Session, error) {
	if cfg.MaxPlayers < 2 || cfg.MaxPlayers > 6 {
		return nil, coreerr.NewValidationError("max_players", "must be between 2 and 6")
	}
	if cfg.Durations == (models.Durations{}) {
		cfg.Durations = models.DefaultDurations()
	}

	sess := &models.Session{
		ID:              uuid.New().String(),
		Name:            cfg.Name,
		Status:          models.StatusWaiting,
		MaxPlayers:      cfg.MaxPlayers,
		TurnLimit:       cfg.TurnLimit,
		UpgradesEnabled: cfg.UpgradesEnabled,
		Durations:       cfg.Durations,
		TurnNumber:      1,
		CreatedAt:        time.Now(),
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO sessions (
			id, name, status, current_phase, turn_number, turn_limit, max_players,
			upgrades_enabled, action_minutes, lockout1_minutes, reaction_minutes,
			lockout2_minutes, broadcast_minutes, ending_minutes, created_at
		) VALUES ($1,$2,$3,'',$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		sess.ID, sess.Name, sess.Status, sess.TurnNumber, sess.TurnLimit, sess.MaxPlayers,
		sess.UpgradesEnabled, sess.Durations.ActionMinutes, sess.Durations.Lockout1Minutes,
		sess.Durations.ReactionMinutes, sess.Durations.Lockout2Minutes, sess.Durations.BroadcastMinutes,
		sess.Durations.EndingMinutes, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get fetches a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.getTx(ctx, s.db.DB(), sessionID)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SessionStore) getTx(ctx context.Context, q querier, sessionID string) (*models.Session, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, status, current_phase, phase_end_time, turn_number, turn_limit,
		       max_players, upgrades_enabled, action_minutes, lockout1_minutes, reaction_minutes,
		       lockout2_minutes, broadcast_minutes, ending_minutes, rematch_count, winners,
		       deck, revealed, last_turn_summary, discord_channel_id, slack_channel_id, created_at
		FROM sessions WHERE id = $1`, sessionID)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coreerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var phaseEnd sql.NullTime
	var discord, slack sql.NullString
	var deck, revealed, winners []string

	err := row.Scan(
		&sess.ID, &sess.Name, &sess.Status, &sess.CurrentPhase, &phaseEnd, &sess.TurnNumber, &sess.TurnLimit,
		&sess.MaxPlayers, &sess.UpgradesEnabled, &sess.Durations.ActionMinutes, &sess.Durations.Lockout1Minutes,
		&sess.Durations.ReactionMinutes, &sess.Durations.Lockout2Minutes, &sess.Durations.BroadcastMinutes,
		&sess.Durations.EndingMinutes, &sess.RematchCount, pq.Array(&winners),
		pq.Array(&deck), pq.Array(&revealed), &sess.LastTurnSummary, &discord, &slack, &sess.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phaseEnd.Valid {
		sess.PhaseEndTime = &phaseEnd.Time
	}
	if discord.Valid {
		sess.DiscordChannelID = &discord.String
	}
	if slack.Valid {
		sess.SlackChannelID = &slack.String
	}
	sess.Winners = winners
	sess.Deck = rolesOf(deck)
	sess.Revealed = rolesOf(revealed)
	return &sess, nil
}

func rolesOf(ss []string) []models.Role {
	out := make([]models.Role, len(ss))
	for i, v := range ss {
		out[i] = models.Role(v)
	}
	return out
}

func stringsOf(rs []models.Role) []string {
	out := make([]string, len(rs))
	for i, v := range rs {
		out[i] = string(v)
	}
	return out
}

// List returns sessions matching the given filter, newest first.
type ListFilter struct {
	Status   models.Status
	Platform string // "discord" or "slack"; lists only sessions bound on that platform
	Limit    int
	Offset   int
}

// List returns sessions matching filter, most recently created first.
func (s *SessionStore) List(ctx context.Context, filter ListFilter) ([]*models.Session, error) {
	query := `SELECT id, name, status, current_phase, phase_end_time, turn_number, turn_limit,
		       max_players, upgrades_enabled, action_minutes, lockout1_minutes, reaction_minutes,
		       lockout2_minutes, broadcast_minutes, ending_minutes, rematch_count, winners,
		       deck, revealed, last_turn_summary, discord_channel_id, slack_channel_id, created_at
		FROM sessions WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Platform == "discord" {
		query += " AND discord_channel_id IS NOT NULL"
	} else if filter.Platform == "slack" {
		query += " AND slack_channel_id IS NOT NULL"
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var sess models.Session
		var phaseEnd sql.NullTime
		var discord, slack sql.NullString
		var deck, revealed, winners []string
		if err := rows.Scan(
			&sess.ID, &sess.Name, &sess.Status, &sess.CurrentPhase, &phaseEnd, &sess.TurnNumber, &sess.TurnLimit,
			&sess.MaxPlayers, &sess.UpgradesEnabled, &sess.Durations.ActionMinutes, &sess.Durations.Lockout1Minutes,
			&sess.Durations.ReactionMinutes, &sess.Durations.Lockout2Minutes, &sess.Durations.BroadcastMinutes,
			&sess.Durations.EndingMinutes, &sess.RematchCount, pq.Array(&winners),
			pq.Array(&deck), pq.Array(&revealed), &sess.LastTurnSummary, &discord, &slack, &sess.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if phaseEnd.Valid {
			sess.PhaseEndTime = &phaseEnd.Time
		}
		if discord.Valid {
			sess.DiscordChannelID = &discord.String
		}
		if slack.Valid {
			sess.SlackChannelID = &slack.String
		}
		sess.Winners = winners
		sess.Deck = rolesOf(deck)
		sess.Revealed = rolesOf(revealed)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// UpdateConfig applies a new SessionConfig, rejected if the game has
// already started.
func (s *SessionStore) UpdateConfig(ctx context.Context, sessionID string, cfg models.SessionConfig) (*models.Session, error) {
	return s.withTx(ctx, func(tx *sql.Tx) (*models.Session, error) {
		sess, err := s.getTx(ctx, tx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.IsGameStarted() {
			return nil, fmt.Errorf("session %s already started: %w", sessionID, coreerr.ErrInvalidState)
		}
		if cfg.MaxPlayers < 2 || cfg.MaxPlayers > 6 {
			return nil, coreerr.NewValidationError("max_players", "must be between 2 and 6")
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET name=$2, max_players=$3, turn_limit=$4, upgrades_enabled=$5,
				action_minutes=$6, lockout1_minutes=$7, reaction_minutes=$8, lockout2_minutes=$9,
				broadcast_minutes=$10, ending_minutes=$11
			WHERE id=$1`,
			sessionID, cfg.Name, cfg.MaxPlayers, cfg.TurnLimit, cfg.UpgradesEnabled,
			cfg.Durations.ActionMinutes, cfg.Durations.Lockout1Minutes, cfg.Durations.ReactionMinutes,
			cfg.Durations.Lockout2Minutes, cfg.Durations.BroadcastMinutes, cfg.Durations.EndingMinutes,
		)
		if err != nil {
			return nil, fmt.Errorf("update session config: %w", err)
		}
		return s.getTx(ctx, tx, sessionID)
	})
}

// Start transitions waiting→active: deals two cards to each joined player
// via the supplied deck initializer, and opens the first action phase.
// dealFn is injected so the Session Store never imports pkg/deck directly
// (deck operations run "within the same transaction as their
// caller" — the caller here is the orchestration layer, not the store).
func (s *SessionStore) Start(ctx context.Context, sessionID string, players []string, dealFn func(playerCount int) (deck []models.Role, hands [][]models.Role)) (*models.Session, error) {
	return s.withTx(ctx, func(tx *sql.Tx) (*models.Session, error) {
		sess, err := s.getTx(ctx, tx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.Status != models.StatusWaiting {
			return nil, fmt.Errorf("session %s not waiting: %w", sessionID, coreerr.ErrInvalidState)
		}
		if len(players) < 2 {
			return nil, fmt.Errorf("need at least 2 players: %w", coreerr.ErrPreconditionFailed)
		}

		deck, hands := dealFn(len(players))
		now := time.Now()
		end := now.Add(sess.Durations.Of(models.PhaseAction))

		for i, userID := range players {
			handStrs := stringsOf(hands[i])
			_, err := tx.ExecContext(ctx, `
				UPDATE player_game_states SET coins=2, debt=0, hand=$3, status='alive',
					pending_action=NULL, pending_target=NULL, pending_upgrade=NULL
				WHERE session_id=$1 AND user_id=$2`,
				sessionID, userID, pq.Array(handStrs))
			if err != nil {
				return nil, fmt.Errorf("deal hand to %s: %w", userID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET status=$2, current_phase=$3, phase_end_time=$4, turn_number=1,
				deck=$5, revealed='{}', rematch_count=0, winners='{}'
			WHERE id=$1`,
			sessionID, models.StatusActive, models.PhaseAction, end, pq.Array(stringsOf(deck)))
		if err != nil {
			return nil, fmt.Errorf("activate session: %w", err)
		}
		return s.getTx(ctx, tx, sessionID)
	})
}

// Restart resets a session back to waiting, clearing players and rematch
// count.
func (s *SessionStore) Restart(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.withTx(ctx, func(tx *sql.Tx) (*models.Session, error) {
		if _, err := s.getTx(ctx, tx, sessionID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM player_game_states WHERE session_id=$1`, sessionID); err != nil {
			return nil, fmt.Errorf("clear players: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status=$2, current_phase='', phase_end_time=NULL, turn_number=1,
				rematch_count=0, winners='{}', deck='{}', revealed='{}', last_turn_summary=''
			WHERE id=$1`, sessionID, models.StatusWaiting)
		if err != nil {
			return nil, fmt.Errorf("restart session: %w", err)
		}
		return s.getTx(ctx, tx, sessionID)
	})
}

// Rematch transitions ending→P1_action, resetting hands/coins/statuses but
// keeping the roster. Allowed only from models.PhaseEnding
// with RematchCount < models.MaxRematches.
func (s *SessionStore) Rematch(ctx context.Context, sessionID string, players []string, dealFn func(playerCount int) (deck []models.Role, hands [][]models.Role)) (*models.Session, error) {
	return s.withTx(ctx, func(tx *sql.Tx) (*models.Session, error) {
		sess, err := s.getTx(ctx, tx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.CurrentPhase != models.PhaseEnding {
			return nil, fmt.Errorf("session %s not in ending phase: %w", sessionID, coreerr.ErrInvalidState)
		}
		if sess.RematchCount >= models.MaxRematches {
			return nil, fmt.Errorf("rematch limit exceeded: %w", coreerr.ErrPreconditionFailed)
		}

		deck, hands := dealFn(len(players))
		now := time.Now()
		end := now.Add(sess.Durations.Of(models.PhaseAction))

		for i, userID := range players {
			_, err := tx.ExecContext(ctx, `
				UPDATE player_game_states SET coins=2, debt=0, hand=$3, status='alive',
					pending_action=NULL, pending_target=NULL, pending_upgrade=NULL
				WHERE session_id=$1 AND user_id=$2`,
				sessionID, userID, pq.Array(stringsOf(hands[i])))
			if err != nil {
				return nil, fmt.Errorf("deal rematch hand to %s: %w", userID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET current_phase=$2, phase_end_time=$3, turn_number=1,
				rematch_count=rematch_count+1, winners='{}', deck=$4, revealed='{}'
			WHERE id=$1`,
			sessionID, models.PhaseAction, end, pq.Array(stringsOf(deck)))
		if err != nil {
			return nil, fmt.Errorf("rematch session: %w", err)
		}
		return s.getTx(ctx, tx, sessionID)
	})
}

// End finalises a session to completed with the given winners (called by
// the Ending Job when no rematch is requested — step 5).
func (s *SessionStore) End(ctx context.Context, sessionID string, winners []string) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE sessions SET status=$2, current_phase='', phase_end_time=NULL, winners=$3
		WHERE id=$1`, sessionID, models.StatusCompleted, pq.Array(winners))
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// Cancel marks a session cancelled (admin /end on a non-ended session).
func (s *SessionStore) Cancel(ctx context.Context, sessionID string) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE sessions SET status=$2, current_phase='', phase_end_time=NULL
		WHERE id=$1`, sessionID, models.StatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	return nil
}

// SetWinnersTx records the provisional winner list at the moment a
// session transitions into the ending phase, ahead
// of the Ending Job actually finalising the session to completed.
func (s *SessionStore) SetWinnersTx(ctx context.Context, tx *sql.Tx, sessionID string, winners []string) error {
	_, err := tx.ExecContext(ctx, `UPDATE sessions SET winners=$2 WHERE id=$1`, sessionID, pq.Array(winners))
	if err != nil {
		return fmt.Errorf("set winners: %w", err)
	}
	return nil
}

// GetTx, SetPhaseTx, ScheduleNextTx, SetLastTurnSummaryTx, UpdateDeckTx,
// NextDueSessionID, and CountDuePast — the orchestrator's and scheduler's
// remaining transactional surface — live in scheduler_store.go alongside
// ClaimDue, which they share a locking strategy with.

// BeginTx starts a transaction for callers (the orchestrator) that span
// multiple stores' Tx methods within one unit of work.
func (s *SessionStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error via a deferred tx.Rollback() — a no-op once the
// transaction has already committed.
func (s *SessionStore) withTx(ctx context.Context, fn func(tx *sql.Tx) (*models.Session, error)) (*models.Session, error) {
	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return result, nil
}
