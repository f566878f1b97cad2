// internal/models/session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionWaiting SessionStatus = "waiting"
	SessionPlaying SessionStatus = "playing"
)

// Session represents a row in the sessions table: one forming or in-progress game instance.
type Session struct {
	ID           uuid.UUID     `json:"id"`
	RoomCode     string        `json:"room_code"`
	GameID       string        `json:"game_id"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}
