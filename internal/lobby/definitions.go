// internal/lobby/definitions.go
package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jason-s-yu/taleroom/internal/models"
)

// StaticDefinitions serves game definitions from memory. Used by the memory
// store driver and by tests.
type StaticDefinitions map[string]*models.GameDefinition

func (s StaticDefinitions) LoadDefinition(_ context.Context, gameID string) (*models.GameDefinition, error) {
	def, ok := s[gameID]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, models.ErrNotFound)
	}
	return def, nil
}

// LoadDefinitionsDir reads every *.json file in dir; the file name without
// extension is the game id.
func LoadDefinitionsDir(dir string) (StaticDefinitions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read games dir: %w", err)
	}
	defs := make(StaticDefinitions)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var def models.GameDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		def.ID = strings.TrimSuffix(e.Name(), ".json")
		defs[def.ID] = &def
	}
	return defs, nil
}
