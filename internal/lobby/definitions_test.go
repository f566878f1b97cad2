package lobby

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefinitionsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manor.json"),
		[]byte(`{"title":"Manor","Personajes":[{"nombre":"A"},{"nombre":"B"},{"nombre":"C"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	defs, err := LoadDefinitionsDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def, err := defs.LoadDefinition(context.Background(), "manor")
	require.NoError(t, err)
	assert.Equal(t, "manor", def.ID)
	assert.Equal(t, "Manor", def.Title)
	assert.Equal(t, 3, def.MaxPlayers(5))

	_, err = defs.LoadDefinition(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoadDefinitionsDirBadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0o644))
	_, err := LoadDefinitionsDir(dir)
	assert.Error(t, err)

	_, err = LoadDefinitionsDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
