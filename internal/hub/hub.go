package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"quizclash-service/internal/domain"
)

// Conn is a live client connection. Send must not block: it returns false when the
// connection is closed or its buffer is full, and the hub then drops it.
type Conn interface {
	ID() string
	Send(msg []byte) bool
	Close()
}

// Hub maps room codes to their live connections. Membership is independent of the
// session roster; a dropped connection only leaves the hub.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

func New() *Hub {
	return &Hub{rooms: make(map[string]map[string]Conn)}
}

// Join adds conn to code. Joining twice is a no-op.
func (h *Hub) Join(code string, conn Conn) {
	h.mu.Lock()
	members, ok := h.rooms[code]
	if !ok {
		members = make(map[string]Conn)
		h.rooms[code] = members
	}
	if _, dup := members[conn.ID()]; dup {
		h.mu.Unlock()
		return
	}
	members[conn.ID()] = conn
	count := len(members)
	h.mu.Unlock()

	log.Debug().Str("code", code).Str("conn", conn.ID()).Int("members", count).Msg("connection joined room")
	h.Broadcast(code, domain.Event{Type: domain.EventPlayerCount, Payload: domain.PlayerCountPayload{Count: count}})
}

// Leave removes conn from code. Leaving a room it is not in is a no-op.
func (h *Hub) Leave(code string, conn Conn) {
	h.mu.Lock()
	members, ok := h.rooms[code]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := members[conn.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(members, conn.ID())
	count := len(members)
	if count == 0 {
		delete(h.rooms, code)
	}
	h.mu.Unlock()

	log.Debug().Str("code", code).Str("conn", conn.ID()).Int("members", count).Msg("connection left room")
	if count > 0 {
		h.Broadcast(code, domain.Event{Type: domain.EventPlayerCount, Payload: domain.PlayerCountPayload{Count: count}})
	}
}

// Broadcast encodes event once and offers it to every member of code. Members that
// cannot take it are removed and closed; the rest still receive it.
func (h *Hub) Broadcast(code string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("code", code).Str("event", string(event.Type)).Msg("encode broadcast")
		return
	}

	h.mu.RLock()
	members := make([]Conn, 0, len(h.rooms[code]))
	for _, conn := range h.rooms[code] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	var dead []Conn
	for _, conn := range members {
		if !conn.Send(data) {
			dead = append(dead, conn)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	for _, conn := range dead {
		if room, ok := h.rooms[code]; ok {
			delete(room, conn.ID())
			if len(room) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	h.mu.Unlock()
	for _, conn := range dead {
		conn.Close()
		log.Debug().Str("code", code).Str("conn", conn.ID()).Msg("dropped unresponsive connection")
	}
}

// MemberCount returns the number of live connections for code.
func (h *Hub) MemberCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Release forgets every connection of code without closing them.
func (h *Hub) Release(code string) {
	h.mu.Lock()
	delete(h.rooms, code)
	h.mu.Unlock()
}
