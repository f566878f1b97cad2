package lobby

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCountdownReplacesPending(t *testing.T) {
	sched := &manualScheduler{}
	cd := newCountdowns(sched.after)
	id := uuid.New()

	var fired []string
	assert.False(t, cd.schedule(id, time.Second, func() { fired = append(fired, "first") }))
	assert.True(t, cd.schedule(id, time.Second, func() { fired = append(fired, "second") }))

	sched.fireAll()
	assert.Equal(t, []string{"second"}, fired)
	assert.False(t, cd.isPending(id))
}

func TestCountdownStaleCallbackDropped(t *testing.T) {
	sched := &manualScheduler{}
	cd := newCountdowns(sched.after)
	id := uuid.New()

	var fired int
	cd.schedule(id, time.Second, func() { fired++ })
	stale := sched.timers[0]
	cd.schedule(id, time.Second, func() { fired += 10 })

	// a replaced timer whose Stop lost the race still runs its callback
	stale.fn()
	assert.Equal(t, 0, fired)
	assert.True(t, cd.isPending(id))
}

func TestCountdownsAreIndependentPerSession(t *testing.T) {
	sched := &manualScheduler{}
	cd := newCountdowns(sched.after)

	var fired int
	cd.schedule(uuid.New(), time.Second, func() { fired++ })
	cd.schedule(uuid.New(), time.Second, func() { fired++ })
	assert.Equal(t, 2, sched.fireAll())
	assert.Equal(t, 2, fired)
}

func TestCountdownStopAll(t *testing.T) {
	sched := &manualScheduler{}
	cd := newCountdowns(sched.after)
	id := uuid.New()

	cd.schedule(id, time.Second, func() { t.Fatal("stopped countdown fired") })
	cd.stopAll()
	assert.False(t, cd.isPending(id))
	assert.Equal(t, 0, sched.fireAll())
}

func TestCountdownStop(t *testing.T) {
	sched := &manualScheduler{}
	cd := newCountdowns(sched.after)
	kept, stopped := uuid.New(), uuid.New()

	var fired int
	cd.schedule(kept, time.Second, func() { fired++ })
	cd.schedule(stopped, time.Second, func() { t.Fatal("stopped countdown fired") })
	cd.stop(stopped)
	cd.stop(uuid.New())

	assert.False(t, cd.isPending(stopped))
	assert.True(t, cd.isPending(kept))
	assert.Equal(t, 1, sched.fireAll())
	assert.Equal(t, 1, fired)
}

func TestRealSchedulerFires(t *testing.T) {
	cd := newCountdowns(realScheduler)
	done := make(chan struct{})
	cd.schedule(uuid.New(), 10*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("countdown did not fire")
	}
}
