// internal/hub/hub.go
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Relay fans group messages out to other server instances.
type Relay interface {
	Publish(ctx context.Context, group string, msg Message) error
}

// Hub tracks live connections and the named groups they belong to.
// Delivery is best-effort: a connection that is gone or full misses the event.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[string]map[string]struct{}

	relay Relay
	log   *logrus.Logger
}

// New returns an empty hub. relay may be nil for a single instance.
func New(logger *logrus.Logger, relay Relay) *Hub {
	return &Hub{
		conns:  make(map[string]*Conn),
		groups: make(map[string]map[string]struct{}),
		relay:  relay,
		log:    logger,
	}
}

// SetRelay attaches a relay after construction.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Register adds a connection. A connection with the same ID is replaced and closed.
func (h *Hub) Register(c *Conn) {
	c.log = h.log
	h.mu.Lock()
	old, exists := h.conns[c.ID]
	h.conns[c.ID] = c
	h.mu.Unlock()
	if exists && old != c {
		old.close()
	}
}

// Unregister drops the connection from every group and closes its queue.
// It returns the groups the connection was a member of.
func (h *Hub) Unregister(connID string) []string {
	h.mu.Lock()
	c, ok := h.conns[connID]
	delete(h.conns, connID)
	var left []string
	for name, members := range h.groups {
		if _, in := members[connID]; in {
			delete(members, connID)
			left = append(left, name)
			if len(members) == 0 {
				delete(h.groups, name)
			}
		}
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
	return left
}

// Join adds connID to group. Unknown connections are still recorded so a
// relay-delivered broadcast can reach them once they register.
func (h *Hub) Join(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
}

// Leave removes connID from group.
func (h *Hub) Leave(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Members returns the connection IDs in group.
func (h *Hub) Members(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		ids = append(ids, id)
	}
	return ids
}

// ConnCount is the number of registered connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// EmitTo sends msg to a single connection.
func (h *Hub) EmitTo(connID string, msg Message) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		h.log.WithField("conn_id", connID).Debug("emit to unknown connection")
		return
	}
	c.Write(msg)
}

// EmitGroup delivers msg to local members of group and publishes it on the relay.
func (h *Hub) EmitGroup(group string, msg Message) {
	h.DeliverLocal(group, msg)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.Publish(ctx, group, msg); err != nil {
		h.log.WithError(err).WithField("group", group).Warn("relay publish failed")
	}
}

// DeliverLocal writes msg to every locally registered member of group.
func (h *Hub) DeliverLocal(group string, msg Message) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Write(msg)
	}
}
