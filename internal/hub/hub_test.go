package hub

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRelay struct {
	mu     sync.Mutex
	groups []string
}

func (r *recordingRelay) Publish(_ context.Context, group string, _ Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, group)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func drain(c *Conn) []Message {
	var out []Message
	for {
		select {
		case m, ok := <-c.OutChan:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestEmitGroupReachesOnlyMembers(t *testing.T) {
	h := New(quietLogger(), nil)
	a, b, c := NewConn("a", 4, nil), NewConn("b", 4, nil), NewConn("c", 4, nil)
	h.Register(a)
	h.Register(b)
	h.Register(c)
	h.Join("a", "s1")
	h.Join("b", "s1")
	h.Join("c", "s2")

	h.EmitGroup("s1", Message{"type": "lobby_update"})

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(c))
}

func TestLeaveAndUnregister(t *testing.T) {
	h := New(quietLogger(), nil)
	a := NewConn("a", 4, nil)
	h.Register(a)
	h.Join("a", "s1")
	h.Join("a", "s2")
	h.Leave("a", "s1")
	assert.Empty(t, h.Members("s1"))

	left := h.Unregister("a")
	assert.ElementsMatch(t, []string{"s2"}, left)
	assert.Equal(t, 0, h.ConnCount())

	_, open := <-a.OutChan
	assert.False(t, open, "unregister closes the outbound queue")

	// emitting to a gone connection is a silent no-op
	h.EmitTo("a", Message{"type": "error"})
}

func TestWriteDropsWhenFull(t *testing.T) {
	h := New(quietLogger(), nil)
	a := NewConn("a", 1, nil)
	h.Register(a)
	require.True(t, a.Write(Message{"type": "one"}))
	assert.False(t, a.Write(Message{"type": "two"}))
}

func TestEmitGroupPublishesOnRelay(t *testing.T) {
	relay := &recordingRelay{}
	h := New(quietLogger(), relay)
	h.EmitGroup("s1", Message{"type": "game_started"})
	assert.Equal(t, []string{"s1"}, relay.groups)
}

func TestRegisterReplacesAndClosesOld(t *testing.T) {
	h := New(quietLogger(), nil)
	cancelled := false
	old := NewConn("a", 1, func() { cancelled = true })
	h.Register(old)
	h.Register(NewConn("a", 1, nil))
	assert.True(t, cancelled)
	assert.Equal(t, 1, h.ConnCount())
}
