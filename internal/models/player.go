// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerConnected is the only presence state currently modeled.
const PlayerConnected = "connected"

// Player is a seat in a session. ConnID correlates the row with a live connection.
type Player struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Name      string    `json:"name"`
	Character string    `json:"character"`
	ConnID    string    `json:"socket_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// EarliestPlayer returns the player created first, which the lobby treats as host.
// Ties on CreatedAt keep the order the store returned.
func EarliestPlayer(players []Player) (Player, bool) {
	if len(players) == 0 {
		return Player{}, false
	}
	host := players[0]
	for _, p := range players[1:] {
		if p.CreatedAt.Before(host.CreatedAt) {
			host = p
		}
	}
	return host, true
}

// HasCharacter reports whether character is already claimed in players (exact match).
func HasCharacter(players []Player, character string) bool {
	for _, p := range players {
		if p.Character == character {
			return true
		}
	}
	return false
}
