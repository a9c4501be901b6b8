package hub

import (
	"encoding/json"
	"sync"
	"testing"

	"quizclash-service/internal/domain"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	msgs   [][]byte
	broken bool
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken || c.closed {
		return false
	}
	c.msgs = append(c.msgs, msg)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) events(t *testing.T) []domain.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, 0, len(c.msgs))
	for _, raw := range c.msgs {
		var ev domain.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func TestJoinBroadcastsCountAndIsIdempotent(t *testing.T) {
	h := New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	h.Join("ROOM01", a)
	h.Join("ROOM01", b)
	h.Join("ROOM01", b)

	if n := h.MemberCount("ROOM01"); n != 2 {
		t.Fatalf("expected 2 members, got %d", n)
	}
	events := a.events(t)
	if len(events) != 2 {
		t.Fatalf("expected 2 count updates for a, got %d", len(events))
	}
	last := events[1]
	if last.Type != domain.EventPlayerCount {
		t.Fatalf("unexpected event %s", last.Type)
	}
	if count := last.Payload.(map[string]any)["count"].(float64); count != 2 {
		t.Fatalf("expected count 2, got %v", count)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	h.Join("ROOM01", a)
	h.Join("ROOM01", b)

	h.Leave("ROOM01", b)
	h.Leave("ROOM01", b)
	h.Leave("NOROOM", b)

	if n := h.MemberCount("ROOM01"); n != 1 {
		t.Fatalf("expected 1 member, got %d", n)
	}
	h.Leave("ROOM01", a)
	if n := h.MemberCount("ROOM01"); n != 0 {
		t.Fatalf("expected empty room, got %d", n)
	}
}

func TestBroadcastSkipsBrokenConnections(t *testing.T) {
	h := New()
	good := &fakeConn{id: "good"}
	bad := &fakeConn{id: "bad"}
	other := &fakeConn{id: "other"}
	h.Join("ROOM01", good)
	h.Join("ROOM01", bad)
	h.Join("ROOM02", other)

	bad.mu.Lock()
	bad.broken = true
	bad.mu.Unlock()

	h.Broadcast("ROOM01", domain.Event{Type: domain.EventTimerUpdate, Payload: domain.TimerUpdatePayload{TimeLeft: 7}})

	events := good.events(t)
	if events[len(events)-1].Type != domain.EventTimerUpdate {
		t.Fatalf("healthy connection missed the broadcast")
	}
	if !bad.closed {
		t.Fatalf("broken connection should be closed")
	}
	if n := h.MemberCount("ROOM01"); n != 1 {
		t.Fatalf("expected broken connection removed, got %d members", n)
	}
	for _, ev := range other.events(t) {
		if ev.Type == domain.EventTimerUpdate {
			t.Fatalf("broadcast leaked into another room")
		}
	}
}

func TestReleaseForgetsRoom(t *testing.T) {
	h := New()
	a := &fakeConn{id: "a"}
	h.Join("ROOM01", a)

	h.Release("ROOM01")
	if n := h.MemberCount("ROOM01"); n != 0 {
		t.Fatalf("expected released room to be empty, got %d", n)
	}
	if a.closed {
		t.Fatalf("release must not close connections")
	}
	h.Broadcast("ROOM01", domain.Event{Type: domain.EventHostLeft})
}
