package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizclash-service/internal/app"
	"quizclash-service/internal/domain"
	"quizclash-service/internal/hub"
	"quizclash-service/internal/infra/memory"
)

type testServer struct {
	service *app.GameService
	server  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	rooms := hub.New()
	service := app.NewGameService(memory.NewSessionStore(), nil, rooms, app.DefaultSettings())
	router := NewRouter(NewGameHandler(service), NewWSHandler(service, rooms), nil)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		service.Close()
	})
	return &testServer{service: service, server: server}
}

func (s *testServer) readyGame(t *testing.T, host string) string {
	t.Helper()
	ctx := context.Background()
	snap, err := s.service.CreateGame(ctx, app.CreateGameRequest{HostName: host, TimePerQuestion: 30, NumQuestions: 1})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if err := s.service.CompleteGeneration(ctx, snap.Code, sampleQuestions()); err != nil {
		t.Fatalf("complete generation: %v", err)
	}
	return snap.Code
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	u := "ws" + s.server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketGameFlow(t *testing.T) {
	s := newTestServer(t)
	code := s.readyGame(t, "Alice")

	host := s.dial(t)
	send(t, host, "join_game", map[string]any{"code": code, "playerName": "Alice"})
	joined := readUntil(t, host, "joined")
	if joined["joined"] != false {
		t.Fatalf("host should attach to the existing roster entry, got %v", joined)
	}
	readUntil(t, host, "player_count")

	guest := s.dial(t)
	send(t, guest, "join_game", map[string]any{"code": code, "playerName": "Bob"})
	if payload := readUntil(t, guest, "joined"); payload["joined"] != true {
		t.Fatalf("guest should be a new roster entry, got %v", payload)
	}
	roster := readUntil(t, host, "players_updated")
	if players := roster["players"].([]any); len(players) != 2 {
		t.Fatalf("expected 2 players, got %v", players)
	}

	send(t, host, "start_game", map[string]any{"code": code})
	readUntil(t, host, "game_started")
	started := readUntil(t, guest, "game_started")
	if qs := started["questions"].([]any); len(qs) != 1 {
		t.Fatalf("expected 1 question, got %v", qs)
	}

	send(t, host, "submit_answer", map[string]any{"code": code, "playerName": "Alice", "answer": "4"})
	result := readUntil(t, host, "answer_result")
	if result["accepted"] != true || result["isCorrect"] != true {
		t.Fatalf("unexpected answer result %v", result)
	}

	send(t, guest, "submit_answer", map[string]any{"code": code, "playerName": "Bob", "answer": "3"})
	reveal := readUntil(t, guest, "show_answer")
	if reveal["correctAnswer"] != "4" {
		t.Fatalf("unexpected reveal %v", reveal)
	}
	readUntil(t, host, "show_answer")

	send(t, host, "next_question", map[string]any{"code": code, "nextIndex": 1})
	done := readUntil(t, guest, "game_completed")
	standings := done["finalStandings"].([]any)
	if first := standings[0].(map[string]any); first["name"] != "Alice" || first["correctCount"].(float64) != 1 {
		t.Fatalf("unexpected final standings %v", standings)
	}
}

func TestWebSocketHostLeaveNotifiesGuests(t *testing.T) {
	s := newTestServer(t)
	code := s.readyGame(t, "Alice")

	host := s.dial(t)
	send(t, host, "join_game", map[string]any{"code": code, "playerName": "Alice"})
	readUntil(t, host, "joined")
	guest := s.dial(t)
	send(t, guest, "join_game", map[string]any{"code": code, "playerName": "Bob"})
	readUntil(t, guest, "joined")

	send(t, host, "leave", map[string]any{"code": code, "playerName": "Alice"})
	readUntil(t, guest, "host_left")

	send(t, guest, "start_game", map[string]any{"code": code})
	if errPayload := readUntil(t, guest, "error"); errPayload["code"] != "not_found" {
		t.Fatalf("expected not_found after teardown, got %v", errPayload)
	}
}

func TestWebSocketRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)
	code := s.readyGame(t, "Alice")
	conn := s.dial(t)

	send(t, conn, "start_game", map[string]any{"code": code})
	if p := readUntil(t, conn, "error"); p["code"] != "not_joined" {
		t.Fatalf("expected not_joined, got %v", p)
	}

	send(t, conn, "join_game", map[string]any{"code": "NOPE99", "playerName": "Bob"})
	if p := readUntil(t, conn, "error"); p["code"] != "not_found" {
		t.Fatalf("expected not_found, got %v", p)
	}

	send(t, conn, "dance", map[string]any{})
	if p := readUntil(t, conn, "error"); p["code"] != "unsupported" {
		t.Fatalf("expected unsupported, got %v", p)
	}

	send(t, conn, "join_game", map[string]any{"code": code, "playerName": "Bob"})
	readUntil(t, conn, "joined")
	send(t, conn, "start_game", map[string]any{"code": code})
	if p := readUntil(t, conn, "error"); p["code"] != "not_host" {
		t.Fatalf("expected not_host, got %v", p)
	}
	send(t, conn, "submit_answer", map[string]any{"code": code, "playerName": "Alice", "answer": "4"})
	if p := readUntil(t, conn, "error"); p["code"] != "not_allowed" {
		t.Fatalf("expected not_allowed, got %v", p)
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips other events until one of type expect arrives.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message within 20 reads", expect)
	return nil
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4", Context: "Addition."},
	}
}

func TestEnterRoomRejectsDestroyedSession(t *testing.T) {
	ctx := context.Background()
	rooms := hub.New()
	service := app.NewGameService(memory.NewSessionStore(), nil, rooms, app.DefaultSettings())
	t.Cleanup(service.Close)
	h := NewWSHandler(service, rooms)

	snap, err := service.CreateGame(ctx, app.CreateGameRequest{HostName: "Alice", TimePerQuestion: 30, NumQuestions: 1})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	live := &client{id: "live", send: make(chan []byte, sendBuffer), code: snap.Code, player: "Alice"}
	if err := h.enterRoom(ctx, live, snap.Code); err != nil {
		t.Fatalf("enter live room: %v", err)
	}
	if rooms.MemberCount(snap.Code) != 1 {
		t.Fatalf("expected the connection in the room")
	}

	// the host leaves after a late connection attached but before it reached the hub
	if err := service.Leave(ctx, snap.Code, "Alice"); err != nil {
		t.Fatalf("host leave: %v", err)
	}
	late := &client{id: "late", send: make(chan []byte, sendBuffer), code: snap.Code, player: "Bob"}
	err = h.enterRoom(ctx, late, snap.Code)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if n := rooms.MemberCount(snap.Code); n != 0 {
		t.Fatalf("expected no room left for a destroyed session, got %d members", n)
	}
	if late.code != "" || late.player != "" {
		t.Fatalf("connection must be unbound, got %q/%q", late.code, late.player)
	}
}
