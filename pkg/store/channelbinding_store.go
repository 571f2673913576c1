package store

import (
	"context"
	"fmt"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
)

// ChannelBindingStore manages the `(platform, channel_id) ↔ session_id`
// lookup consumed by gateways for routing. It operates
// directly on the sessions table's discord_channel_id/slack_channel_id
// columns rather than a separate table — those columns already carry a
// unique partial index (migrations/0001_init.up.sql), so a binding is
// just those two nullable columns on the session row they describe.
type ChannelBindingStore struct {
	db *database.Client
}

// NewChannelBindingStore creates a ChannelBindingStore over the given pool.
func NewChannelBindingStore(db *database.Client) *ChannelBindingStore {
	return &ChannelBindingStore{db: db}
}

// BindDiscord associates a Discord channel with a session.
func (c *ChannelBindingStore) BindDiscord(ctx context.Context, sessionID, channelID string) error {
	return c.bind(ctx, "discord_channel_id", sessionID, &channelID)
}

// UnbindDiscord clears a session's Discord channel binding.
func (c *ChannelBindingStore) UnbindDiscord(ctx context.Context, sessionID string) error {
	return c.bind(ctx, "discord_channel_id", sessionID, nil)
}

// BindSlack associates a Slack channel with a session.
func (c *ChannelBindingStore) BindSlack(ctx context.Context, sessionID, channelID string) error {
	return c.bind(ctx, "slack_channel_id", sessionID, &channelID)
}

// UnbindSlack clears a session's Slack channel binding.
func (c *ChannelBindingStore) UnbindSlack(ctx context.Context, sessionID string) error {
	return c.bind(ctx, "slack_channel_id", sessionID, nil)
}

func (c *ChannelBindingStore) bind(ctx context.Context, column, sessionID string, channelID *string) error {
	query := fmt.Sprintf(`UPDATE sessions SET %s=$2 WHERE id=$1`, column)
	res, err := c.db.DB().ExecContext(ctx, query, sessionID, channelID)
	if err != nil {
		return fmt.Errorf("bind channel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerr.ErrNotFound
	}
	return nil
}

// ListDiscordBindings returns every session with a non-null
// discord_channel_id, consumed by the Discord gateway at startup to
// rebuild its in-memory routing table.
func (c *ChannelBindingStore) ListDiscordBindings(ctx context.Context) ([]models.ChannelBinding, error) {
	return c.list(ctx, "discord_channel_id", "discord")
}

// ListSlackBindings returns every session with a non-null
// slack_channel_id, the symmetric Slack counterpart.
func (c *ChannelBindingStore) ListSlackBindings(ctx context.Context) ([]models.ChannelBinding, error) {
	return c.list(ctx, "slack_channel_id", "slack")
}

func (c *ChannelBindingStore) list(ctx context.Context, column, platform string) ([]models.ChannelBinding, error) {
	query := fmt.Sprintf(`SELECT id, %s FROM sessions WHERE %s IS NOT NULL`, column, column)
	rows, err := c.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s bindings: %w", platform, err)
	}
	defer rows.Close()

	var out []models.ChannelBinding
	for rows.Next() {
		var b models.ChannelBinding
		if err := rows.Scan(&b.SessionID, &b.ChannelID); err != nil {
			return nil, fmt.Errorf("scan %s binding: %w", platform, err)
		}
		b.Platform = platform
		out = append(out, b)
	}
	return out, rows.Err()
}
