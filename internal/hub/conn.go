// internal/hub/conn.go
package hub

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Message is a JSON object written to a client. The "type" key names the event.
type Message map[string]interface{}

// Conn is a single live client connection registered with the hub.
type Conn struct {
	ID      string
	OutChan chan Message
	Cancel  func()

	mu     sync.Mutex
	closed bool
	log    logrus.FieldLogger
}

// NewConn builds a connection with a buffered outbound queue.
func NewConn(id string, buffer int, cancel func()) *Conn {
	return &Conn{
		ID:      id,
		OutChan: make(chan Message, buffer),
		Cancel:  cancel,
	}
}

// Write pushes a message onto OutChan without blocking. A full queue drops the message.
func (c *Conn) Write(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.OutChan <- msg:
		return true
	default:
		if c.log != nil {
			msgType, _ := msg["type"].(string)
			c.log.WithFields(logrus.Fields{"conn_id": c.ID, "type": msgType}).Warn("outbound queue full, dropped message")
		}
		return false
	}
}

// WriteError queues an error event for this connection only.
func (c *Conn) WriteError(message string) bool {
	return c.Write(Message{"type": "error", "message": message})
}

// close shuts the outbound queue and cancels the connection context once.
func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.OutChan)
	c.mu.Unlock()
	if c.Cancel != nil {
		c.Cancel()
	}
}
