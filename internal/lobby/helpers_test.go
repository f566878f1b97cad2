package lobby

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/taleroom/internal/hub"
	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/sirupsen/logrus"
)

// recordingBroadcaster collects emitted messages instead of writing to sockets.
type recordingBroadcaster struct {
	mu      sync.Mutex
	direct  map[string][]hub.Message
	groups  map[string][]hub.Message
	members map[string]map[string]bool
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		direct:  make(map[string][]hub.Message),
		groups:  make(map[string][]hub.Message),
		members: make(map[string]map[string]bool),
	}
}

func (rb *recordingBroadcaster) Join(connID, group string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.members[group] == nil {
		rb.members[group] = make(map[string]bool)
	}
	rb.members[group][connID] = true
}

func (rb *recordingBroadcaster) Leave(connID, group string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	delete(rb.members[group], connID)
}

func (rb *recordingBroadcaster) EmitTo(connID string, msg hub.Message) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.direct[connID] = append(rb.direct[connID], msg)
}

func (rb *recordingBroadcaster) EmitGroup(group string, msg hub.Message) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.groups[group] = append(rb.groups[group], msg)
}

// ofType returns the group messages with the given type, in emit order.
func (rb *recordingBroadcaster) ofType(group, typ string) []hub.Message {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	var out []hub.Message
	for _, m := range rb.groups[group] {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// lastDirect returns the last message sent to connID, or nil.
func (rb *recordingBroadcaster) lastDirect(connID string) hub.Message {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	msgs := rb.direct[connID]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (rb *recordingBroadcaster) directCount(connID string) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.direct[connID])
}

func (rb *recordingBroadcaster) isMember(connID, group string) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.members[group][connID]
}

// manualTimer fires only when the test asks.
type manualTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualScheduler) after(d time.Duration, fn func()) stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// fireAll runs every timer that has not been stopped and reports how many ran.
func (m *manualScheduler) fireAll() int {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

func (m *manualScheduler) scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func roster(n int) *models.GameDefinition {
	def := &models.GameDefinition{}
	for i := 0; i < n; i++ {
		def.Roster = append(def.Roster, json.RawMessage(`{}`))
	}
	return def
}

type fixture struct {
	store *MemoryStore
	bc    *recordingBroadcaster
	sched *manualScheduler
	coord *Coordinator
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := NewMemoryStore()
	bc := newRecordingBroadcaster()
	sched := &manualScheduler{}
	defs := StaticDefinitions{
		"G1":  roster(5),
		"G2":  roster(2),
		"BIG": roster(100),
	}
	coord := NewCoordinator(store, defs, bc, quietLogger(), opts)
	coord.countdowns = newCountdowns(sched.after)
	t.Cleanup(coord.Close)
	return &fixture{store: store, bc: bc, sched: sched, coord: coord}
}

// fixedCodes returns a codeSource that yields codes in order, then repeats the last.
func fixedCodes(codes ...string) codeSource {
	var mu sync.Mutex
	i := 0
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}
