package api

import (
	"context"
	"fmt"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/models"
)

// findPlayerByDisplayName resolves a display name to a roster entry.
// Reactions and actions are addressed by display name on the wire but
// stored by stable user_id, never by display name, since a display name
// can collide across players who joined with the same name.
func (s *Server) findPlayerByDisplayName(ctx context.Context, sessionID, name string) (*models.PlayerGameState, error) {
	roster, err := s.players.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, p := range roster {
		if p.DisplayName == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("player %q not found: %w", name, coreerr.ErrNotFound)
}
