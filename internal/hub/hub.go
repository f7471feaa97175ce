// Package hub tracks live websocket sessions, their room subscriptions and
// fans messages out to subscribers.
package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"pairchat/internal/logger"
	"pairchat/internal/metrics"
)

// ErrSessionNotFound is returned when a direct send targets a session the
// hub no longer tracks.
var ErrSessionNotFound = errors.New("session not found")

// Conn is the transport side of a session. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
}

type session struct {
	id      string
	conn    Conn
	writeMu sync.Mutex
	rooms   map[string]struct{}

	// pending is set while the session waits out the disconnect grace
	// window; timer fires the eviction. gen invalidates timers that were
	// already queued when a resume or a newer disconnect came in.
	pending bool
	timer   *time.Timer
	gen     uint64
}

// setConn swaps the transport under writeMu so in-flight writes on the old
// connection never race the swap.
func (s *session) setConn(conn Conn) {
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
}

// Hub owns every session. A transport drop does not evict immediately: the
// session enters a pending state and is only removed when the grace timer
// fires without a resume, so rapid reconnects never flap presence.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]*session
	grace    time.Duration
}

func New(grace time.Duration) *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]*session),
		grace:    grace,
	}
}

// Register creates a session for a new connection and returns its id.
func (h *Hub) Register(conn Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	h.sessions[id] = &session{
		id:    id,
		conn:  conn,
		rooms: make(map[string]struct{}),
	}
	metrics.ConnectionsLive.Inc()
	return id
}

// Resume reattaches a connection to a session that is still tracked,
// cancelling any pending eviction. Subscriptions are kept. It reports
// whether the session was known; callers fall back to Register otherwise.
func (h *Hub) Resume(sessionID string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[sessionID]
	if !ok {
		return false
	}
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	sess.pending = false
	sess.gen++
	sess.setConn(conn)
	return true
}

// Subscribe adds the session to a room. Idempotent; a session may hold any
// number of subscriptions.
func (h *Hub) Subscribe(sessionID, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	sess.rooms[roomKey] = struct{}{}

	if _, ok := h.rooms[roomKey]; !ok {
		h.rooms[roomKey] = make(map[string]*session)
	}
	h.rooms[roomKey][sessionID] = sess
}

// ScheduleDisconnect marks the session pending and starts the grace timer.
// If the session is resumed before the timer fires, nothing happens.
func (h *Hub) ScheduleDisconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	if sess.timer != nil {
		sess.timer.Stop()
	}
	sess.pending = true
	sess.gen++
	sess.setConn(nil)
	gen := sess.gen
	sess.timer = time.AfterFunc(h.grace, func() { h.expire(sessionID, gen) })
}

// expire evicts the session only if the firing timer is still the current
// one. A Stop that misses a timer already queued behind h.mu leaves a stale
// callback; the generation check makes it a no-op.
func (h *Hub) expire(sessionID string, gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[sessionID]
	if !ok || !sess.pending || sess.gen != gen {
		return
	}
	for roomKey := range sess.rooms {
		delete(h.rooms[roomKey], sessionID)
		if len(h.rooms[roomKey]) == 0 {
			delete(h.rooms, roomKey)
		}
	}
	delete(h.sessions, sessionID)
	metrics.ConnectionsLive.Dec()
}

// LiveCount is derived from the session set rather than kept as a separate
// counter, so it cannot drift under reconnect races.
func (h *Hub) LiveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish delivers payload to every session subscribed to roomKey, once per
// session. Delivery is best effort: a failed write is counted and logged,
// never retried, since the receiver catches up from the store on reconnect.
func (h *Hub) Publish(roomKey string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sess := range h.rooms[roomKey] {
		if err := sess.write(payload); err != nil {
			metrics.BroadcastFailures.Inc()
			logger.Get().WithError(err).
				WithField("room", roomKey).
				WithField("session", sess.id).
				Warn("broadcast write failed")
		}
	}
}

// SendTo writes payload to a single session. Used for requester-only
// responses such as fetch results and error events.
func (h *Hub) SendTo(sessionID string, payload interface{}) error {
	h.mu.RLock()
	sess, ok := h.sessions[sessionID]
	h.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}
	return sess.write(payload)
}

// Subscriptions returns the room keys the session is subscribed to.
func (h *Hub) Subscriptions(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sess, ok := h.sessions[sessionID]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(sess.rooms))
	for k := range sess.rooms {
		keys = append(keys, k)
	}
	return keys
}

// write serializes writes per session; the websocket conn is not safe for
// concurrent writers. A pending session has no conn and drops the payload.
func (s *session) write(payload interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return nil
	}
	return s.conn.WriteJSON(payload)
}
