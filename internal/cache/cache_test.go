package cache

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taleroom/internal/hub"
	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("TEST_REDIS_DB"))
	rdb, err := ConnectRedis(context.Background(), addr, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	defs  map[string]*models.GameDefinition
}

func (s *countingSource) LoadDefinition(_ context.Context, gameID string) (*models.GameDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	def, ok := s.defs[gameID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return def, nil
}

func TestDefinitionCacheReadThrough(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	id := "cache-" + uuid.NewString()
	src := &countingSource{defs: map[string]*models.GameDefinition{
		id: {ID: id, Title: "Lighthouse", Roster: []json.RawMessage{[]byte(`{}`), []byte(`{}`), []byte(`{}`)}},
	}}
	cache := NewDefinitionCache(rdb, src, time.Minute, quietLogger())
	t.Cleanup(func() { _ = cache.Invalidate(context.Background(), id) })

	first, err := cache.LoadDefinition(ctx, id)
	require.NoError(t, err)
	second, err := cache.LoadDefinition(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, id, second.ID)
	assert.Equal(t, first.MaxPlayers(5), second.MaxPlayers(5))
	assert.Equal(t, 3, second.MaxPlayers(5))

	_, err = cache.LoadDefinition(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEventRelayDeliversForeignBroadcasts(t *testing.T) {
	rdb := testRedis(t)
	channel := "test_lobby_events_" + uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewEventRelay(rdb, channel, quietLogger())
	receiver := NewEventRelay(rdb, channel, quietLogger())
	require.NotEqual(t, sender.Node(), receiver.Node())

	got := make(chan string, 4)
	started := make(chan struct{})
	go func() {
		close(started)
		_ = receiver.Run(ctx, func(group string, msg hub.Message) {
			got <- group + ":" + msg["type"].(string)
		})
	}()
	// the sender also listens; it must ignore its own publications
	own := make(chan string, 4)
	go func() {
		_ = sender.Run(ctx, func(group string, msg hub.Message) { own <- group })
	}()
	<-started

	require.Eventually(t, func() bool {
		_ = sender.Publish(ctx, "room-1", hub.Message{"type": "lobby_update"})
		select {
		case v := <-got:
			assert.Equal(t, "room-1:lobby_update", v)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)

	select {
	case g := <-own:
		t.Fatalf("sender delivered its own broadcast for %s", g)
	case <-time.After(100 * time.Millisecond):
	}
}
