package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	payloads []interface{}
	fail     bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("write failed")
	}
	f.payloads = append(f.payloads, v)
	return nil
}

func (f *fakeConn) received() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(f.payloads))
	copy(out, f.payloads)
	return out
}

func TestPublishReachesAllSubscribersOnce(t *testing.T) {
	h := New(time.Second)
	c1, c2, c3 := &fakeConn{}, &fakeConn{}, &fakeConn{}

	s1 := h.Register(c1)
	s2 := h.Register(c2)
	h.Register(c3) // never subscribed

	h.Subscribe(s1, "111-222")
	h.Subscribe(s2, "111-222")
	h.Subscribe(s2, "111-222") // idempotent

	h.Publish("111-222", "hello")

	assert.Len(t, c1.received(), 1)
	assert.Len(t, c2.received(), 1)
	assert.Empty(t, c3.received())
}

func TestPublishPreservesOrderPerSession(t *testing.T) {
	h := New(time.Second)
	c := &fakeConn{}
	s := h.Register(c)
	h.Subscribe(s, "111-222")

	for _, p := range []string{"a", "b", "c"} {
		h.Publish("111-222", p)
	}

	assert.Equal(t, []interface{}{"a", "b", "c"}, c.received())
}

func TestPublishFailureDoesNotAffectOthers(t *testing.T) {
	h := New(time.Second)
	bad, good := &fakeConn{fail: true}, &fakeConn{}

	s1 := h.Register(bad)
	s2 := h.Register(good)
	h.Subscribe(s1, "111-222")
	h.Subscribe(s2, "111-222")

	h.Publish("111-222", "hello")

	assert.Len(t, good.received(), 1)
}

func TestSessionMayJoinMultipleRooms(t *testing.T) {
	h := New(time.Second)
	c := &fakeConn{}
	s := h.Register(c)

	h.Subscribe(s, "111-222")
	h.Subscribe(s, "111-333")

	assert.ElementsMatch(t, []string{"111-222", "111-333"}, h.Subscriptions(s))

	h.Publish("111-222", "one")
	h.Publish("111-333", "two")
	assert.Len(t, c.received(), 2)
}

func TestReconnectWithinGraceWindowIsNotEvicted(t *testing.T) {
	h := New(50 * time.Millisecond)
	c := &fakeConn{}
	s := h.Register(c)
	h.Subscribe(s, "111-222")

	before := h.LiveCount()
	h.ScheduleDisconnect(s)

	// Resume before the timer fires.
	c2 := &fakeConn{}
	require.True(t, h.Resume(s, c2))

	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, before, h.LiveCount())
	assert.ElementsMatch(t, []string{"111-222"}, h.Subscriptions(s))

	h.Publish("111-222", "hello")
	assert.Len(t, c2.received(), 1)
}

func TestEvictionAfterGraceWindow(t *testing.T) {
	h := New(20 * time.Millisecond)
	c := &fakeConn{}
	s := h.Register(c)
	h.Subscribe(s, "111-222")

	h.ScheduleDisconnect(s)
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 0, h.LiveCount())
	assert.False(t, h.Resume(s, &fakeConn{}))
	assert.Nil(t, h.Subscriptions(s))
}

func TestPendingSessionDropsBroadcasts(t *testing.T) {
	h := New(time.Minute)
	c := &fakeConn{}
	s := h.Register(c)
	h.Subscribe(s, "111-222")

	h.ScheduleDisconnect(s)
	h.Publish("111-222", "while away")

	// Still counted as live, but nothing was written to the dead conn.
	assert.Equal(t, 1, h.LiveCount())
	assert.Empty(t, c.received())
}

func TestSendToUnknownSession(t *testing.T) {
	h := New(time.Second)
	assert.ErrorIs(t, h.SendTo("nope", "x"), ErrSessionNotFound)
}

func TestStaleGraceTimerDoesNotEvictRescheduledSession(t *testing.T) {
	// A timer that fires concurrently with Resume stays queued even after
	// Stop misses it. It must not evict the session once a later
	// ScheduleDisconnect has armed a fresh, much longer window.
	for i := 0; i < 200; i++ {
		h := New(time.Millisecond)
		s := h.Register(&fakeConn{})
		h.Subscribe(s, "111-222")

		h.ScheduleDisconnect(s)
		time.Sleep(time.Millisecond) // let the short timer fire or queue
		if !h.Resume(s, &fakeConn{}) {
			continue // evicted before the resume landed; not this race
		}

		h.grace = time.Minute
		h.ScheduleDisconnect(s)
		time.Sleep(5 * time.Millisecond)

		require.Equal(t, 1, h.LiveCount(), "iteration %d: evicted early by stale timer", i)
		require.True(t, h.Resume(s, &fakeConn{}), "iteration %d", i)
	}
}

func TestSendToDuringDisconnectAndResume(t *testing.T) {
	// SendTo reads the conn outside the hub lock; swapping the conn during
	// a disconnect/resume cycle must not race it. Run under -race.
	h := New(time.Minute)
	s := h.Register(&fakeConn{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			h.ScheduleDisconnect(s)
			h.Resume(s, &fakeConn{})
		}
	}()
	for i := 0; i < 500; i++ {
		_ = h.SendTo(s, "x")
	}
	<-done
}
