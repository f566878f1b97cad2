// internal/lobby/errors.go
package lobby

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/taleroom/internal/models"
)

// ErrMissingInput is the root of every validation failure.
var ErrMissingInput = errors.New("missing input")

var (
	ErrMissingCharacter = fmt.Errorf("character name is required: %w", ErrMissingInput)
	ErrMissingName      = fmt.Errorf("player name is required: %w", ErrMissingInput)
	ErrMissingSelector  = fmt.Errorf("gameId or roomCode is required: %w", ErrMissingInput)
	ErrMissingSession   = fmt.Errorf("sessionId is required: %w", ErrMissingInput)

	ErrInvalidRoomCode = fmt.Errorf("invalid room code: %w", models.ErrNotFound)
	ErrNotHost         = errors.New("only the host can start the game")
	ErrNoRoomCode      = errors.New("could not allocate a unique room code")
)

// CharacterTakenError reports the character that was already claimed.
type CharacterTakenError struct {
	Character string
}

func (e *CharacterTakenError) Error() string {
	return fmt.Sprintf("character %s is already taken", e.Character)
}

func (e *CharacterTakenError) Unwrap() error { return models.ErrCharacterTaken }

// ErrorMessage turns err into the message field of an error event. action names
// the intent for store failures, e.g. "join lobby".
func ErrorMessage(action string, err error) string {
	var taken *CharacterTakenError
	switch {
	case errors.As(err, &taken):
		return fmt.Sprintf("Character %s is already taken!", taken.Character)
	case errors.Is(err, models.ErrCharacterTaken):
		return "Character is already taken!"
	case errors.Is(err, ErrMissingCharacter):
		return "Character name is required"
	case errors.Is(err, ErrMissingName):
		return "Player name is required"
	case errors.Is(err, ErrMissingSelector):
		return "Must provide gameId or roomCode"
	case errors.Is(err, ErrMissingSession):
		return "Session id is required"
	case errors.Is(err, ErrInvalidRoomCode):
		return "Invalid Room Code"
	case errors.Is(err, models.ErrNotFound):
		return "Session not found"
	case errors.Is(err, ErrNotHost):
		return "Only the host can start the game"
	}
	return fmt.Sprintf("Failed to %s: %v", action, err)
}
