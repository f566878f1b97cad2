// internal/cache/definitions.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefinitionSource is the backing provider behind the cache.
type DefinitionSource interface {
	LoadDefinition(ctx context.Context, gameID string) (*models.GameDefinition, error)
}

// DefinitionCache is a read-through Redis cache in front of a DefinitionSource.
// Redis failures degrade to the source; they never fail the lookup.
type DefinitionCache struct {
	rdb  *redis.Client
	next DefinitionSource
	ttl  time.Duration
	log  *logrus.Logger
}

func NewDefinitionCache(rdb *redis.Client, next DefinitionSource, ttl time.Duration, logger *logrus.Logger) *DefinitionCache {
	return &DefinitionCache{rdb: rdb, next: next, ttl: ttl, log: logger}
}

func definitionKey(gameID string) string {
	return "game_def:" + gameID
}

func (c *DefinitionCache) LoadDefinition(ctx context.Context, gameID string) (*models.GameDefinition, error) {
	log := c.log.WithField("game_id", gameID)

	data, err := c.rdb.Get(ctx, definitionKey(gameID)).Bytes()
	switch {
	case err == nil:
		var def models.GameDefinition
		if err := json.Unmarshal(data, &def); err == nil {
			def.ID = gameID
			return &def, nil
		}
		log.Warn("discarding undecodable cached definition")
	case !errors.Is(err, redis.Nil):
		log.WithError(err).Warn("definition cache read failed")
	}

	def, err := c.next.LoadDefinition(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(def); err == nil {
		if err := c.rdb.Set(ctx, definitionKey(gameID), data, c.ttl).Err(); err != nil {
			log.WithError(err).Warn("definition cache write failed")
		}
	}
	return def, nil
}

// Invalidate drops the cached copy of gameID.
func (c *DefinitionCache) Invalidate(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, definitionKey(gameID)).Err()
}
