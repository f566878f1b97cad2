package lobby

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"taken":       {&CharacterTakenError{Character: "Mage"}, "Character Mage is already taken!"},
		"character":   {ErrMissingCharacter, "Character name is required"},
		"selector":    {ErrMissingSelector, "Must provide gameId or roomCode"},
		"room code":   {ErrInvalidRoomCode, "Invalid Room Code"},
		"not found":   {fmt.Errorf("start session: %w", models.ErrNotFound), "Session not found"},
		"not host":    {ErrNotHost, "Only the host can start the game"},
		"store error": {errors.New("connection refused"), "Failed to join lobby: connection refused"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ErrorMessage("join lobby", tc.err))
		})
	}
}

func TestCharacterTakenErrorUnwraps(t *testing.T) {
	var err error = &CharacterTakenError{Character: "Mage"}
	assert.ErrorIs(t, err, models.ErrCharacterTaken)
}
