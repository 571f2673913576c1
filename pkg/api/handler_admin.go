package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// createSessionHandler handles POST /admin/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sess, err := s.sessions.Create(c.Request().Context(), req.toConfig())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, sessionResponse(sess))
}

// updateConfigHandler handles PUT /admin/sessions/:id.
func (s *Server) updateConfigHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	var req UpdateConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sess, err := s.sessions.UpdateConfig(c.Request().Context(), sessionID, req.toConfig())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// startSessionHandler handles POST /admin/sessions/:id/start, which deals
// two cards to each joined player and opens the first turn.
func (s *Server) startSessionHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	players, err := s.rosterUserIDs(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	sess, err := s.sessions.Start(ctx, sessionID, players, s.dealFn)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// endSessionHandler handles POST /admin/sessions/:id/end — an
// administrative force-end, distinct from the orchestrator's own Ending
// Job → completed transition; this always moves
// the session to cancelled.
func (s *Server) endSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if err := s.sessions.Cancel(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &MessageResponse{Message: "session ended"})
}

// restartSessionHandler handles POST /admin/sessions/:id/restart, putting
// the session back to waiting and clearing both the roster and the
// rematch count.
func (s *Server) restartSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	sess, err := s.sessions.Restart(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// bindDiscordHandler handles POST /admin/sessions/:id/discord-channel.
func (s *Server) bindDiscordHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	var req BindChannelRequest
	if err := c.Bind(&req); err != nil || req.ChannelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel_id is required")
	}
	if err := s.bindings.BindDiscord(c.Request().Context(), sessionID, req.ChannelID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &MessageResponse{Message: "discord channel bound"})
}

// unbindDiscordHandler handles DELETE /admin/sessions/:id/discord-channel.
func (s *Server) unbindDiscordHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if err := s.bindings.UnbindDiscord(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &MessageResponse{Message: "discord channel unbound"})
}

// bindSlackHandler handles POST /admin/sessions/:id/slack-channel.
func (s *Server) bindSlackHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	var req BindChannelRequest
	if err := c.Bind(&req); err != nil || req.ChannelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel_id is required")
	}
	if err := s.bindings.BindSlack(c.Request().Context(), sessionID, req.ChannelID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &MessageResponse{Message: "slack channel bound"})
}

// unbindSlackHandler handles DELETE /admin/sessions/:id/slack-channel.
func (s *Server) unbindSlackHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if err := s.bindings.UnbindSlack(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &MessageResponse{Message: "slack channel unbound"})
}
