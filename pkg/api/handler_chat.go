package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/coup-league/coupd/pkg/coreerr"
)

// sendChatHandler handles POST /game/chat/{session_id}/send: truncates
// the message, appends it to the queue, and fires the best-effort LLM
// event push.
func (s *Server) sendChatHandler(c *echo.Context) error {
	sessionID := c.Param("session_id")

	var req SendChatRequest
	if err := c.Bind(&req); err != nil || req.Content == "" || req.Platform == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "platform and content are required")
	}

	sender := displayName(c)
	if sender == "" {
		userID, _ := c.Get(userContextKey).(string)
		sender = userID
	}
	if sender == "" {
		return mapServiceError(coreerr.ErrUnauthenticated)
	}

	msg, err := s.chat.Queue(c.Request().Context(), sessionID, sender, req.Platform, req.Content)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, ChatMessageResponse{ID: msg.ID, Sender: msg.SenderDisplayName, Platform: msg.Platform, Content: msg.Content, CreatedAt: msg.CreatedAt})
}

// listChatMessagesHandler handles GET /game/chat/{session_id}/messages.
func (s *Server) listChatMessagesHandler(c *echo.Context) error {
	msgs, err := s.chatStore.Peek(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, chatMessageResponses(msgs))
}
