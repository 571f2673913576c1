package api

import (
	"time"

	"github.com/coup-league/coupd/pkg/models"
)

// SessionResponse is the wire shape of a models.Session returned by the
// admin and game session endpoints.
type SessionResponse struct {
	ID               string     `json:"session_id"`
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	CurrentPhase     string     `json:"current_phase,omitempty"`
	PhaseEndTime     *time.Time `json:"phase_end_time,omitempty"`
	TurnNumber       int        `json:"turn_number"`
	TurnLimit        int        `json:"turn_limit"`
	MaxPlayers       int        `json:"max_players"`
	UpgradesEnabled  bool       `json:"upgrades_enabled"`
	RematchCount     int        `json:"rematch_count"`
	Winners          []string   `json:"winners,omitempty"`
	DiscordChannelID *string    `json:"discord_channel_id,omitempty"`
	SlackChannelID   *string    `json:"slack_channel_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func sessionResponse(sess *models.Session) *SessionResponse {
	return &SessionResponse{
		ID:               sess.ID,
		Name:             sess.Name,
		Status:           string(sess.Status),
		CurrentPhase:     string(sess.CurrentPhase),
		PhaseEndTime:     sess.PhaseEndTime,
		TurnNumber:       sess.TurnNumber,
		TurnLimit:        sess.TurnLimit,
		MaxPlayers:       sess.MaxPlayers,
		UpgradesEnabled:  sess.UpgradesEnabled,
		RematchCount:     sess.RematchCount,
		Winners:          sess.Winners,
		DiscordChannelID: sess.DiscordChannelID,
		SlackChannelID:   sess.SlackChannelID,
		CreatedAt:        sess.CreatedAt,
	}
}

// SessionStatusResponse is returned by GET /game/sessions/{id}/status —
// the session response plus time_remaining_seconds, computed from
// phase_end_time.
type SessionStatusResponse struct {
	*SessionResponse
	TimeRemainingSeconds *int `json:"time_remaining_seconds,omitempty"`
}

func sessionStatusResponse(sess *models.Session) *SessionStatusResponse {
	resp := &SessionStatusResponse{SessionResponse: sessionResponse(sess)}
	if sess.PhaseEndTime != nil {
		remaining := int(time.Until(*sess.PhaseEndTime).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		resp.TimeRemainingSeconds = &remaining
	}
	return resp
}

// StateResponse is returned by GET /game/state/{session_id}: every
// player's public view plus the caller's own hand in full, since only
// the requester is allowed to see their own cards.
type StateResponse struct {
	Session   *SessionStatusResponse `json:"session"`
	Players   []models.PublicView    `json:"players"`
	OwnHand   []models.Role          `json:"own_hand,omitempty"`
	OwnUserID string                 `json:"own_user_id,omitempty"`
}

// ChannelBindingResponse is one row of the public
// discord-channels/slack-channels listings consumed by gateways at
// startup.
type ChannelBindingResponse struct {
	SessionID string `json:"session_id"`
	ChannelID string `json:"channel_id"`
}

func channelBindingResponses(bindings []models.ChannelBinding) []ChannelBindingResponse {
	out := make([]ChannelBindingResponse, len(bindings))
	for i, b := range bindings {
		out[i] = ChannelBindingResponse{SessionID: b.SessionID, ChannelID: b.ChannelID}
	}
	return out
}

// ReactionResponse is the wire shape of a models.Reaction.
type ReactionResponse struct {
	ID            int64        `json:"id"`
	ReactorUserID string       `json:"reactor_user_id"`
	ActorUserID   string       `json:"actor_user_id"`
	TargetAction  string       `json:"target_action"`
	Kind          string       `json:"reaction_type"`
	BlockWithRole *models.Role `json:"block_with_role,omitempty"`
	IsLocked      bool         `json:"is_locked"`
	IsResolved    bool         `json:"is_resolved"`
}

func reactionResponse(rx *models.Reaction) *ReactionResponse {
	return &ReactionResponse{
		ID:            rx.ID,
		ReactorUserID: rx.ReactorUserID,
		ActorUserID:   rx.ActorUserID,
		TargetAction:  string(rx.TargetAction),
		Kind:          string(rx.Kind),
		BlockWithRole: rx.BlockWithRole,
		IsLocked:      rx.IsLocked,
		IsResolved:    rx.IsResolved,
	}
}

// ChatMessageResponse is the wire shape of a models.ChatMessage.
type ChatMessageResponse struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender_display_name"`
	Platform  string    `json:"platform"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func chatMessageResponses(msgs []*models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = ChatMessageResponse{ID: m.ID, Sender: m.SenderDisplayName, Platform: m.Platform, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return out
}

// TurnResultResponse is the wire shape of a models.TurnResult, returned
// by the turn-history endpoint.
type TurnResultResponse struct {
	TurnNumber        int                    `json:"turn_number"`
	Outcomes          []models.ActionOutcome `json:"outcomes"`
	PlayersEliminated []string               `json:"players_eliminated,omitempty"`
	Summary           string                 `json:"summary"`
}

func turnResultResponses(results []*models.TurnResult) []TurnResultResponse {
	out := make([]TurnResultResponse, len(results))
	for i, r := range results {
		out[i] = TurnResultResponse{TurnNumber: r.TurnNumber, Outcomes: r.Outcomes, PlayersEliminated: r.PlayersEliminated, Summary: r.Summary}
	}
	return out
}

// Every 4xx/5xx response body is {"message": string}; echo's default
// HTTPError JSON body already satisfies this shape via its Message
// field, so no custom error-rendering handler is needed (see server.go).

// MessageResponse is a simple {"message": "..."} acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}
