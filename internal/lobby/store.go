// internal/lobby/store.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taleroom/internal/models"
)

// Store is the durable session/player store the coordinator reads and writes.
// Lookups return models.ErrNotFound when nothing matches. Implementations that can
// enforce (session, character) uniqueness return models.ErrCharacterTaken from InsertPlayer.
type Store interface {
	GetSessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	GetWaitingSession(ctx context.Context, gameID string) (*models.Session, error)
	RoomCodeExists(ctx context.Context, code string) (bool, error)
	// CreateSession assigns ID, CreatedAt and LastActivity. It fails with
	// models.ErrRoomCodeTaken or models.ErrWaitingSessionExists on conflicts.
	CreateSession(ctx context.Context, s *models.Session) error
	// SetSessionStatus updates status and last activity and returns the updated row.
	SetSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) (*models.Session, error)
	TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// ListPlayers returns the session's players in creation order.
	ListPlayers(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error)
	CountPlayers(ctx context.Context, sessionID uuid.UUID) (int, error)
	// InsertPlayer assigns ID and CreatedAt.
	InsertPlayer(ctx context.Context, p *models.Player) error
	// DeletePlayer reports the number of rows removed; zero is not an error.
	DeletePlayer(ctx context.Context, playerID uuid.UUID) (int64, error)
	ListPlayersByConn(ctx context.Context, connID string) ([]models.Player, error)
}

// DefinitionProvider loads game definitions. Unknown games yield models.ErrNotFound.
type DefinitionProvider interface {
	LoadDefinition(ctx context.Context, gameID string) (*models.GameDefinition, error)
}
