// internal/models/game_definition.go
package models

import "encoding/json"

// GameDefinition is the stored JSON document describing a game. The lobby only
// reads the character roster; the rest is kept raw for other consumers.
type GameDefinition struct {
	ID      string            `json:"-"`
	Title   string            `json:"title"`
	Summary string            `json:"summary"`
	Image   string            `json:"image"`
	Roster  []json.RawMessage `json:"Personajes"`
}

// MaxPlayers is the roster size, or def when the definition has no roster.
func (g *GameDefinition) MaxPlayers(def int) int {
	if g == nil || len(g.Roster) == 0 {
		return def
	}
	return len(g.Roster)
}
