package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarliestPlayer(t *testing.T) {
	base := time.Now()
	a := Player{ID: uuid.New(), CreatedAt: base.Add(2 * time.Second)}
	b := Player{ID: uuid.New(), CreatedAt: base}
	c := Player{ID: uuid.New(), CreatedAt: base}

	host, ok := EarliestPlayer([]Player{a, b, c})
	require.True(t, ok)
	assert.Equal(t, b.ID, host.ID, "ties keep store order")

	_, ok = EarliestPlayer(nil)
	assert.False(t, ok)
}

func TestHasCharacterIsCaseSensitive(t *testing.T) {
	players := []Player{{Character: "Warrior"}}
	assert.True(t, HasCharacter(players, "Warrior"))
	assert.False(t, HasCharacter(players, "warrior"))
}

func TestMaxPlayers(t *testing.T) {
	var def GameDefinition
	require.NoError(t, json.Unmarshal([]byte(`{"title":"G1","Personajes":[{"n":"a"},{"n":"b"}]}`), &def))
	assert.Equal(t, 2, def.MaxPlayers(5))

	assert.Equal(t, 5, (&GameDefinition{}).MaxPlayers(5))
	var nilDef *GameDefinition
	assert.Equal(t, 5, nilDef.MaxPlayers(5))
}
