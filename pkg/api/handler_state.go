package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/coup-league/coupd/pkg/models"
)

// getStateHandler handles GET /game/state/{session_id}: "full per-player
// public state plus the caller's own hand". The caller's
// identity, if present, unlocks their own hand only — every other
// player's hand is never exposed.
func (s *Server) getStateHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	roster, err := s.players.ListBySession(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	resp := StateResponse{
		Session: sessionStatusResponse(sess),
		Players: make([]models.PublicView, len(roster)),
	}
	userID, _ := c.Get(userContextKey).(string)
	for i, p := range roster {
		resp.Players[i] = p.Public()
		if userID != "" && p.UserID == userID {
			resp.OwnHand = p.Hand
			resp.OwnUserID = p.UserID
		}
	}
	return c.JSON(http.StatusOK, resp)
}
