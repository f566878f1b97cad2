// internal/cache/relay.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taleroom/internal/hub"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultEventsChannel is the pub/sub channel lobby broadcasts travel on.
const DefaultEventsChannel = "lobby_events"

// envelope is one relayed group broadcast.
type envelope struct {
	Node  string      `json:"node"`
	Group string      `json:"group"`
	Msg   hub.Message `json:"msg"`
}

// EventRelay fans group broadcasts out to every server instance over Redis pub/sub.
// Each instance delivers locally first, so its own publications are skipped on receipt.
type EventRelay struct {
	rdb     *redis.Client
	channel string
	node    string
	log     *logrus.Logger
}

func NewEventRelay(rdb *redis.Client, channel string, logger *logrus.Logger) *EventRelay {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &EventRelay{rdb: rdb, channel: channel, node: uuid.NewString(), log: logger}
}

// Node identifies this instance on the channel.
func (r *EventRelay) Node() string { return r.node }

// Publish implements hub.Relay.
func (r *EventRelay) Publish(ctx context.Context, group string, msg hub.Message) error {
	data, err := json.Marshal(envelope{Node: r.node, Group: group, Msg: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to '%s': %w", r.channel, err)
	}
	return nil
}

// Run subscribes to the channel and hands every foreign broadcast to deliver
// until ctx is done.
func (r *EventRelay) Run(ctx context.Context, deliver func(group string, msg hub.Message)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", r.channel, err)
	}
	r.log.WithFields(logrus.Fields{"channel": r.channel, "node": r.node}).Info("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.log.WithError(err).Warn("dropping malformed relay message")
				continue
			}
			if env.Node == r.node {
				continue
			}
			deliver(env.Group, env.Msg)
		}
	}
}
