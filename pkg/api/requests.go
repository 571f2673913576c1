package api

import "github.com/coup-league/coupd/pkg/models"

// CreateSessionRequest is the body of POST /admin/sessions.
type CreateSessionRequest struct {
	Name            string          `json:"name"`
	MaxPlayers      int             `json:"max_players"`
	TurnLimit       int             `json:"turn_limit"`
	UpgradesEnabled bool            `json:"upgrades_enabled"`
	Durations       *DurationsInput `json:"durations,omitempty"`
}

// UpdateConfigRequest is the body of PUT /admin/sessions/{id}.
type UpdateConfigRequest = CreateSessionRequest

// DurationsInput lets an admin override the six per-phase durations
// (minutes); a zero value in any field keeps the built-in default for
// that phase, applied by toDurations below.
type DurationsInput struct {
	ActionMinutes    int `json:"action_minutes"`
	Lockout1Minutes  int `json:"lockout1_minutes"`
	ReactionMinutes  int `json:"reaction_minutes"`
	Lockout2Minutes  int `json:"lockout2_minutes"`
	BroadcastMinutes int `json:"broadcast_minutes"`
	EndingMinutes    int `json:"ending_minutes"`
}

func (req *CreateSessionRequest) toConfig() models.SessionConfig {
	cfg := models.SessionConfig{
		Name:            req.Name,
		MaxPlayers:      req.MaxPlayers,
		TurnLimit:       req.TurnLimit,
		UpgradesEnabled: req.UpgradesEnabled,
		Durations:       models.DefaultDurations(),
	}
	if req.Durations != nil {
		d := req.Durations
		if d.ActionMinutes > 0 {
			cfg.Durations.ActionMinutes = d.ActionMinutes
		}
		if d.Lockout1Minutes > 0 {
			cfg.Durations.Lockout1Minutes = d.Lockout1Minutes
		}
		if d.ReactionMinutes > 0 {
			cfg.Durations.ReactionMinutes = d.ReactionMinutes
		}
		if d.Lockout2Minutes > 0 {
			cfg.Durations.Lockout2Minutes = d.Lockout2Minutes
		}
		if d.BroadcastMinutes > 0 {
			cfg.Durations.BroadcastMinutes = d.BroadcastMinutes
		}
		if d.EndingMinutes > 0 {
			cfg.Durations.EndingMinutes = d.EndingMinutes
		}
	}
	return cfg
}

// BindChannelRequest is the body of the discord-channel/slack-channel
// bind endpoints.
type BindChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

// JoinRequest is the body of POST /game/sessions/{id}/join.
type JoinRequest struct {
	DisplayName string `json:"display_name"`
}

// SetActionRequest is the body of POST /game/actions/{session_id}.
type SetActionRequest struct {
	Action                    models.ActionKind `json:"action"`
	TargetDisplayName         string            `json:"target_display_name,omitempty"`
	ClaimedRole               models.Role       `json:"claimed_role,omitempty"`
	UpgradeEnabled            bool              `json:"upgrade_enabled,omitempty"`
	AssassinationPriorityRole models.Role       `json:"assassination_priority_role,omitempty"`
}

// SetReactionRequest is the body of POST /game/reactions/{session_id}.
type SetReactionRequest struct {
	TargetPlayer  string               `json:"target_player"`
	ReactionType  models.ReactionKind  `json:"reaction_type"`
	BlockWithRole *models.Role         `json:"block_with_role,omitempty"`
}

// SendChatRequest is the body of POST /game/chat/{session_id}/send.
type SendChatRequest struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}
