package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taleroom/internal/models"
)

// DefinitionStore reads game definitions from the games table.
type DefinitionStore struct {
	pool *pgxpool.Pool
}

func NewDefinitionStore(pool *pgxpool.Pool) *DefinitionStore {
	return &DefinitionStore{pool: pool}
}

// LoadDefinition returns models.ErrNotFound for an unknown game id.
func (d *DefinitionStore) LoadDefinition(ctx context.Context, gameID string) (*models.GameDefinition, error) {
	var raw []byte
	if err := d.pool.QueryRow(ctx, `SELECT data FROM games WHERE id = $1`, gameID).Scan(&raw); err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, translate(err))
	}
	var def models.GameDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", gameID, err)
	}
	def.ID = gameID
	return &def, nil
}
