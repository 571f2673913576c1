package models

// ChannelBinding is a (platform, channel_id) → session_id pairing consumed
// by gateways at startup to rebuild their in-memory routing tables.
type ChannelBinding struct {
	SessionID string
	Platform  string // "discord" or "slack"
	ChannelID string
}
