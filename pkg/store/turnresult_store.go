package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
)

// TurnResultStore persists models.TurnResult rows — the durable per-turn
// history produced by the Turn Resolver. Written once per turn by the
// orchestrator's lockout2 hook and never mutated afterward.
type TurnResultStore struct {
	db *database.Client
}

// NewTurnResultStore creates a TurnResultStore over the given pool.
func NewTurnResultStore(db *database.Client) *TurnResultStore {
	return &TurnResultStore{db: db}
}

// CreateTx persists a resolved turn's result within the orchestrator's
// transaction ("Leaving lockout2 → invoke Turn Resolver,
// persist its TurnResult").
func (t *TurnResultStore) CreateTx(ctx context.Context, tx *sql.Tx, result *models.TurnResult) error {
	outcomesJSON, err := json.Marshal(result.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal turn outcomes: %w", err)
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO turn_results (session_id, turn_number, outcomes, players_eliminated, summary)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		result.SessionID, result.TurnNumber, outcomesJSON, pq.Array(result.PlayersEliminated), result.Summary)
	if err := row.Scan(&result.ID); err != nil {
		return fmt.Errorf("insert turn result: %w", err)
	}
	return nil
}

// ListBySession returns every persisted TurnResult for a session, oldest
// first — backs the GET /game/sessions/{id}/history endpoint.
func (t *TurnResultStore) ListBySession(ctx context.Context, sessionID string) ([]*models.TurnResult, error) {
	rows, err := t.db.DB().QueryContext(ctx, `
		SELECT id, session_id, turn_number, outcomes, players_eliminated, summary
		FROM turn_results WHERE session_id=$1 ORDER BY turn_number ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turn results: %w", err)
	}
	defer rows.Close()

	var out []*models.TurnResult
	for rows.Next() {
		var tr models.TurnResult
		var outcomesJSON []byte
		var eliminated []string
		if err := rows.Scan(&tr.ID, &tr.SessionID, &tr.TurnNumber, &outcomesJSON, pq.Array(&eliminated), &tr.Summary); err != nil {
			return nil, fmt.Errorf("scan turn result: %w", err)
		}
		if err := json.Unmarshal(outcomesJSON, &tr.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal turn outcomes: %w", err)
		}
		tr.PlayersEliminated = eliminated
		out = append(out, &tr)
	}
	return out, rows.Err()
}
