package api

import (
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/models"
)

// setActionHandler handles POST /game/actions/{session_id}: only accepted
// during P1_action, validates the target is alive and in the session for
// targeted actions, validates coin prerequisites, and overwrites any
// previous pending action for this turn.
func (s *Server) setActionHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	userID, err := requireUser(c)
	if err != nil {
		return mapServiceError(err)
	}

	var req SetActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !req.Action.Valid() {
		return mapServiceError(coreerr.NewValidationError("action", "unknown action kind"))
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	if sess.CurrentPhase != models.PhaseAction {
		return mapServiceError(fmt.Errorf("actions may only be set during P1_action: %w", coreerr.ErrInvalidState))
	}

	actor, err := s.players.Get(ctx, sessionID, userID)
	if err != nil {
		return mapServiceError(err)
	}
	if !actor.IsAlive() {
		return mapServiceError(fmt.Errorf("dead players cannot act: %w", coreerr.ErrInvalidState))
	}

	info := models.Actions[req.Action]
	if info.Cost > 0 && actor.Coins < info.Cost {
		return mapServiceError(fmt.Errorf("need %d coins, have %d: %w", info.Cost, actor.Coins, coreerr.ErrPreconditionFailed))
	}

	var target *string
	if info.RequiresTarget {
		if req.TargetDisplayName == "" {
			return mapServiceError(coreerr.NewValidationError("target_display_name", "required for this action"))
		}
		targetPlayer, err := s.findPlayerByDisplayName(ctx, sessionID, req.TargetDisplayName)
		if err != nil {
			return mapServiceError(err)
		}
		if !targetPlayer.IsAlive() {
			return mapServiceError(fmt.Errorf("target is not alive: %w", coreerr.ErrPreconditionFailed))
		}
		if targetPlayer.UserID == userID {
			return mapServiceError(fmt.Errorf("cannot target yourself: %w", coreerr.ErrPreconditionFailed))
		}
		target = &req.TargetDisplayName
	}

	var upgrade *models.UpgradeFlags
	if req.UpgradeEnabled {
		if !sess.UpgradesEnabled {
			return mapServiceError(fmt.Errorf("upgrades are not enabled for this session: %w", coreerr.ErrPreconditionFailed))
		}
		upgrade = &models.UpgradeFlags{AssassinationPriorityRole: req.AssassinationPriorityRole}
	}

	updated, err := s.players.SetPendingAction(ctx, sessionID, userID, req.Action, target, upgrade)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, updated.Public())
}

// listActionsHandler handles GET /game/actions/{session_id}: visible
// pending actions across the roster ( visibility rule —
// pending_action kind, not upgrade details).
func (s *Server) listActionsHandler(c *echo.Context) error {
	roster, err := s.players.ListBySession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]models.PublicView, len(roster))
	for i, p := range roster {
		out[i] = p.Public()
	}
	return c.JSON(http.StatusOK, out)
}
