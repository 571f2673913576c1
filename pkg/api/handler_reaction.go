package api

import (
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/models"
)

// setReactionHandler handles POST /game/reactions/{session_id}: only
// accepted during P2_reaction, validates the targeted action still
// exists and the reaction kind is admissible, and is last-write-wins
// for the same (reactor, actor, action) tuple.
func (s *Server) setReactionHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	reactorID, err := requireUser(c)
	if err != nil {
		return mapServiceError(err)
	}

	var req SetReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !req.ReactionType.Valid() {
		return mapServiceError(coreerr.NewValidationError("reaction_type", "unknown reaction kind"))
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	if sess.CurrentPhase != models.PhaseReaction {
		return mapServiceError(fmt.Errorf("reactions may only be set during P2_reaction: %w", coreerr.ErrInvalidState))
	}

	target, err := s.findPlayerByDisplayName(ctx, sessionID, req.TargetPlayer)
	if err != nil {
		return mapServiceError(err)
	}

	if req.BlockWithRole != nil && !req.BlockWithRole.Valid() {
		return mapServiceError(coreerr.NewValidationError("block_with_role", "unknown role"))
	}

	// A block has no pending action of its own, so a challenge against a
	// block resolves target_player to the blocker rather than to the
	// turn's acting player, and is recorded with actor_user_id set to the
	// blocker. This is the only path that produces the resolver's
	// earliestReactionAgainstActor branch.
	if target.PendingAction == nil {
		if req.ReactionType != models.ReactionChallenge {
			return mapServiceError(fmt.Errorf("player %s has no pending action: %w", req.TargetPlayer, coreerr.ErrPreconditionFailed))
		}
		blocked, err := s.reactions.ListForTurn(ctx, sessionID, sess.TurnNumber)
		if err != nil {
			return mapServiceError(err)
		}
		block := latestBlockBy(blocked, target.UserID)
		if block == nil {
			return mapServiceError(fmt.Errorf("player %s has no pending action: %w", req.TargetPlayer, coreerr.ErrPreconditionFailed))
		}
		rx, err := s.reactions.Set(ctx, sessionID, sess.TurnNumber, reactorID, target.UserID, block.TargetAction, models.ReactionChallenge, nil)
		if err != nil {
			return mapServiceError(err)
		}
		return c.JSON(http.StatusOK, reactionResponse(rx))
	}

	info := models.Actions[*target.PendingAction]
	switch req.ReactionType {
	case models.ReactionBlock:
		if !info.Blockable {
			return mapServiceError(fmt.Errorf("%s is not blockable: %w", *target.PendingAction, coreerr.ErrPreconditionFailed))
		}
	case models.ReactionChallenge:
		if !info.Challengeable {
			return mapServiceError(fmt.Errorf("%s is not challengeable: %w", *target.PendingAction, coreerr.ErrPreconditionFailed))
		}
	}

	rx, err := s.reactions.Set(ctx, sessionID, sess.TurnNumber, reactorID, target.UserID, *target.PendingAction, req.ReactionType, req.BlockWithRole)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, reactionResponse(rx))
}

// latestBlockBy returns the most recently submitted Block reaction whose
// reactor is blockerUserID, or nil if that player hasn't blocked this turn.
// Reactions are last-write-wins per (reactor, actor, action), so the
// highest id is the one still standing.
func latestBlockBy(reactions []*models.Reaction, blockerUserID string) *models.Reaction {
	var best *models.Reaction
	for _, rx := range reactions {
		if rx.Kind != models.ReactionBlock || rx.ReactorUserID != blockerUserID {
			continue
		}
		if best == nil || rx.ID > best.ID {
			best = rx
		}
	}
	return best
}

// reactionsView bundles current-turn reactions with the actions that
// still admit one, for GET /game/reactions/{session_id}'s "visible
// reactions and actions-requiring-reaction".
type reactionsView struct {
	Reactions      []*ReactionResponse `json:"reactions"`
	PendingActions []models.PublicView `json:"pending_actions"`
}

// listReactionsHandler handles GET /game/reactions/{session_id}.
func (s *Server) listReactionsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	reactions, err := s.reactions.ListForTurn(ctx, sessionID, sess.TurnNumber)
	if err != nil {
		return mapServiceError(err)
	}
	roster, err := s.players.ListBySession(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	view := reactionsView{Reactions: make([]*ReactionResponse, len(reactions))}
	for i, rx := range reactions {
		view.Reactions[i] = reactionResponse(rx)
	}
	for _, p := range roster {
		if p.PendingAction != nil {
			view.PendingActions = append(view.PendingActions, p.Public())
		}
	}
	return c.JSON(http.StatusOK, view)
}
