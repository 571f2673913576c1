package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/coup-league/coupd/pkg/models"
	"github.com/coup-league/coupd/pkg/store"
)

// listSessionsHandler handles GET /game/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	filter := store.ListFilter{
		Status:   models.Status(c.QueryParam("status")),
		Platform: c.QueryParam("platform"),
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	sessions, err := s.sessions.List(c.Request().Context(), filter)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]*SessionResponse, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionResponse(sess)
	}
	return c.JSON(http.StatusOK, out)
}

// getSessionHandler handles GET /game/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// sessionStatusHandler handles GET /game/sessions/:id/status — always
// available, even in terminal states.
func (s *Server) sessionStatusHandler(c *echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionStatusResponse(sess))
}

// sessionHistoryHandler handles GET /game/sessions/:id/history, returning
// the durable turn-by-turn resolution history for a session.
func (s *Server) sessionHistoryHandler(c *echo.Context) error {
	results, err := s.turns.ListBySession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, turnResultResponses(results))
}

// joinSessionHandler handles POST /game/sessions/:id/join.
func (s *Server) joinSessionHandler(c *echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return mapServiceError(err)
	}

	var req JoinRequest
	_ = c.Bind(&req) // display_name optional; empty falls back below
	name := req.DisplayName
	if name == "" {
		name = displayName(c)
	}
	if name == "" {
		name = userID
	}

	player, err := s.players.Join(c.Request().Context(), c.Param("id"), userID, name)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, player.Public())
}

// leaveSessionHandler handles POST /game/sessions/:id/leave.
func (s *Server) leaveSessionHandler(c *echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return mapServiceError(err)
	}
	if err := s.players.Leave(c.Request().Context(), c.Param("id"), userID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &MessageResponse{Message: "left session"})
}

// requestRematchHandler handles POST /game/sessions/:id/request-rematch:
// bumps rematch_count, cancels the pending clock tick, and reschedules it
// for the new P1_action phase.
func (s *Server) requestRematchHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	if _, err := requireUser(c); err != nil {
		return mapServiceError(err)
	}

	players, err := s.rosterUserIDs(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	sess, err := s.sessions.Rematch(ctx, sessionID, players, s.dealFn)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// listDiscordChannelsHandler handles GET /game/sessions/discord-channels
// — public, no auth, consumed by the Discord gateway at
// startup to rebuild its routing table.
func (s *Server) listDiscordChannelsHandler(c *echo.Context) error {
	bindings, err := s.bindings.ListDiscordBindings(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, channelBindingResponses(bindings))
}

// listSlackChannelsHandler handles GET /game/sessions/slack-channels —
// the symmetric Slack counterpart.
func (s *Server) listSlackChannelsHandler(c *echo.Context) error {
	bindings, err := s.bindings.ListSlackBindings(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, channelBindingResponses(bindings))
}
