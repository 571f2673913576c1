package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
)

// ChatStore persists the per-session chat fan-out queue and the
// registered gateway endpoints.
type ChatStore struct {
	db *database.Client
}

// NewChatStore creates a ChatStore over the given connection pool.
func NewChatStore(db *database.Client) *ChatStore {
	return &ChatStore{db: db}
}

// Queue appends a truncated message to a session's chat queue and
// returns the persisted message with its assigned monotonic id.
func (c *ChatStore) Queue(ctx context.Context, sessionID, sender, platform, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		SessionID:         sessionID,
		SenderDisplayName: sender,
		Platform:          platform,
		Content:           models.TruncateContent(content),
		CreatedAt:         time.Now(),
	}
	row := c.db.DB().QueryRowContext(ctx, `
		INSERT INTO chat_messages (session_id, sender_display_name, platform, content, created_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		msg.SessionID, msg.SenderDisplayName, msg.Platform, msg.Content, msg.CreatedAt)
	if err := row.Scan(&msg.ID); err != nil {
		return nil, fmt.Errorf("queue chat message: %w", err)
	}
	return msg, nil
}

// Peek returns the current queue contents for a session without clearing
// it, oldest first — backs GET /game/chat/{session_id}/messages.
func (c *ChatStore) Peek(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	return c.snapshot(ctx, c.db.DB(), sessionID)
}

func (c *ChatStore) snapshot(ctx context.Context, q querier, sessionID string) ([]*models.ChatMessage, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, session_id, sender_display_name, platform, content, created_at
		FROM chat_messages WHERE session_id=$1 ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot chat queue: %w", err)
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderDisplayName, &m.Platform, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SnapshotAndClear atomically takes the current queue contents for a
// session and deletes them, whether or not any endpoints were actually
// reachable — clear after attempt, not clear after confirmed delivery.
func (c *ChatStore) SnapshotAndClear(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	tx, err := c.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin broadcast snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msgs, err := c.snapshot(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id=$1`, sessionID); err != nil {
		return nil, fmt.Errorf("clear chat queue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit broadcast snapshot: %w", err)
	}
	return msgs, nil
}

// RegisterEndpoint upserts an active gateway push destination for a
// session/platform pair.
func (c *ChatStore) RegisterEndpoint(ctx context.Context, sessionID, platform, endpointURL string) error {
	_, err := c.db.DB().ExecContext(ctx, `
		INSERT INTO chat_bot_endpoints (session_id, platform, endpoint_url, is_active)
		VALUES ($1,$2,$3,TRUE)
		ON CONFLICT (session_id, platform) DO UPDATE SET endpoint_url=EXCLUDED.endpoint_url, is_active=TRUE`,
		sessionID, platform, endpointURL)
	if err != nil {
		return fmt.Errorf("register chat endpoint: %w", err)
	}
	return nil
}

// DeactivateEndpoint marks a session/platform endpoint inactive rather
// than deleting it, preserving last_broadcast_at history.
func (c *ChatStore) DeactivateEndpoint(ctx context.Context, sessionID, platform string) error {
	res, err := c.db.DB().ExecContext(ctx, `
		UPDATE chat_bot_endpoints SET is_active=FALSE WHERE session_id=$1 AND platform=$2`, sessionID, platform)
	if err != nil {
		return fmt.Errorf("deactivate chat endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerr.ErrNotFound
	}
	return nil
}

// ActiveEndpoints lists every active gateway endpoint for a session, for
// the broadcast fan-out.
func (c *ChatStore) ActiveEndpoints(ctx context.Context, sessionID string) ([]*models.ChatBotEndpoint, error) {
	rows, err := c.db.DB().QueryContext(ctx, `
		SELECT session_id, platform, endpoint_url, is_active, last_broadcast_at
		FROM chat_bot_endpoints WHERE session_id=$1 AND is_active=TRUE`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list active endpoints: %w", err)
	}
	defer rows.Close()

	var out []*models.ChatBotEndpoint
	for rows.Next() {
		var ep models.ChatBotEndpoint
		var last sql.NullTime
		if err := rows.Scan(&ep.SessionID, &ep.Platform, &ep.EndpointURL, &ep.IsActive, &last); err != nil {
			return nil, fmt.Errorf("scan chat endpoint: %w", err)
		}
		if last.Valid {
			ep.LastBroadcastAt = &last.Time
		}
		out = append(out, &ep)
	}
	return out, rows.Err()
}

// TouchLastBroadcast records the time of an attempted (not necessarily
// successful) broadcast push for a session/platform pair.
func (c *ChatStore) TouchLastBroadcast(ctx context.Context, sessionID, platform string, at time.Time) error {
	_, err := c.db.DB().ExecContext(ctx, `
		UPDATE chat_bot_endpoints SET last_broadcast_at=$3 WHERE session_id=$1 AND platform=$2`, sessionID, platform, at)
	if err != nil {
		return fmt.Errorf("touch last broadcast: %w", err)
	}
	return nil
}

// SessionsNeedingTick returns every session with at least one active chat
// endpoint. No scheduled broadcast sweep in this module calls it.
func (c *ChatStore) SessionsNeedingTick(ctx context.Context) ([]string, error) {
	rows, err := c.db.DB().QueryContext(ctx, `SELECT DISTINCT session_id FROM chat_bot_endpoints WHERE is_active=TRUE`)
	if err != nil {
		return nil, fmt.Errorf("list sessions needing broadcast tick: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
