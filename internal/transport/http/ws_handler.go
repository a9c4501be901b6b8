package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizclash-service/internal/app"
	"quizclash-service/internal/domain"
	"quizclash-service/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

type WSHandler struct {
	service  *app.GameService
	rooms    *hub.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, rooms *hub.Hub) *WSHandler {
	return &WSHandler{
		service: service,
		rooms:   rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

type codePayload struct {
	Code string `json:"code"`
}

type answerPayload struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
	Answer     string `json:"answer"`
}

type nextPayload struct {
	Code      string `json:"code"`
	NextIndex int    `json:"nextIndex"`
}

type leaderboardPayload struct {
	Code string `json:"code"`
	Show bool   `json:"show"`
}

type joinedPayload struct {
	PlayerName string                 `json:"playerName"`
	Joined     bool                   `json:"joined"`
	Session    domain.SessionSnapshot `json:"session"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// client is one websocket connection. code and player are only touched by the read loop.
type client struct {
	id     string
	send   chan []byte
	mu     sync.Mutex
	closed bool

	code   string
	player string
}

func (c *client) ID() string { return c.id }

func (c *client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) reply(typ string, payload any) {
	data, err := json.Marshal(outboundMessage[any]{Type: typ, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("encode reply")
		return
	}
	if !c.Send(data) {
		log.Debug().Str("conn", c.id).Str("type", typ).Msg("reply dropped")
	}
}

func (c *client) replyError(code, message string) {
	c.reply("error", errorPayload{Code: code, Message: message})
}

func (c *client) replyDomainError(err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("conn", c.id).Msg("ws request failed")
		c.replyError(code, "internal error")
		return
	}
	c.replyError(code, err.Error())
}

// ServeWS upgrades HTTP requests to websockets and dispatches inbound control messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	writerDone := make(chan struct{})
	go h.writePump(conn, c, writerDone)

	log.Debug().Str("conn", c.id).Msg("ws connected")
	h.readPump(r.Context(), conn, c)

	// an abrupt disconnect only drops hub membership; the roster keeps the player
	if c.code != "" {
		h.rooms.Leave(c.code, c)
	}
	c.Close()
	<-writerDone
	log.Debug().Str("conn", c.id).Msg("ws disconnected")
}

func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, c *client) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", c.id).Msg("ws read")
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.replyError("bad_request", "invalid message")
			continue
		}
		h.dispatch(ctx, c, msg)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, c *client, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("ws write")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, msg inboundMessage) {
	switch msg.Type {
	case "join_game":
		h.handleJoin(ctx, c, msg.Payload)
	case "start_game":
		h.handleStart(ctx, c, msg.Payload)
	case "submit_answer":
		h.handleAnswer(ctx, c, msg.Payload)
	case "next_question":
		h.handleNext(ctx, c, msg.Payload)
	case "show_leaderboard":
		h.handleLeaderboard(ctx, c, msg.Payload)
	case "reset_game":
		h.handleReset(ctx, c, msg.Payload)
	case "leave":
		h.handleLeave(ctx, c, msg.Payload)
	default:
		c.replyError("unsupported", "unsupported message type "+msg.Type)
	}
}

func (h *WSHandler) handleJoin(ctx context.Context, c *client, raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.replyError("bad_request", "invalid join_game payload")
		return
	}
	code := normalizeCode(p.Code)
	name := strings.TrimSpace(p.PlayerName)

	snapshot, joined, err := h.service.Attach(ctx, code, name)
	if err != nil {
		c.replyDomainError(err)
		return
	}
	if c.code != "" && c.code != code {
		h.rooms.Leave(c.code, c)
	}
	c.code, c.player = code, name

	c.reply("joined", joinedPayload{PlayerName: name, Joined: joined, Session: snapshot})
	if err := h.enterRoom(ctx, c, code); err != nil {
		c.replyDomainError(err)
	}
}

// enterRoom joins the hub room, then confirms the session is still registered and undoes
// the join if it was torn down in between.
func (h *WSHandler) enterRoom(ctx context.Context, c *client, code string) error {
	h.rooms.Join(code, c)
	if _, err := h.service.Status(ctx, code); err != nil {
		h.rooms.Leave(code, c)
		c.code, c.player = "", ""
		return err
	}
	return nil
}

func (h *WSHandler) handleStart(ctx context.Context, c *client, raw json.RawMessage) {
	var p codePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.replyError("bad_request", "invalid start_game payload")
		return
	}
	code, player, ok := h.bound(c, p.Code)
	if !ok {
		return
	}
	if err := h.service.StartGame(ctx, code, player); err != nil {
		c.replyDomainError(err)
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, c *client, raw json.RawMessage) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.replyError("bad_request", "invalid submit_answer payload")
		return
	}
	code, player, ok := h.bound(c, p.Code)
	if !ok {
		return
	}
	if p.PlayerName != "" && strings.TrimSpace(p.PlayerName) != player {
		c.replyError("not_allowed", "connection is bound to another player")
		return
	}
	result, err := h.service.SubmitAnswer(ctx, code, player, p.Answer)
	if err != nil {
		c.replyDomainError(err)
		return
	}
	c.reply("answer_result", result)
}

func (h *WSHandler) handleNext(ctx context.Context, c *client, raw json.RawMessage) {
	var p nextPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.replyError("bad_request", "invalid next_question payload")
		return
	}
	code, player, ok := h.bound(c, p.Code)
	if !ok {
		return
	}
	advanced, err := h.service.NextQuestion(ctx, code, player, p.NextIndex)
	if err != nil {
		c.replyDomainError(err)
		return
	}
	if !advanced {
		log.Debug().Str("code", code).Int("nextIndex", p.NextIndex).Msg("next_question ignored")
	}
}

func (h *WSHandler) handleLeaderboard(ctx context.Context, c *client, raw json.RawMessage) {
	var p leaderboardPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.replyError("bad_request", "invalid show_leaderboard payload")
		return
	}
	code, player, ok := h.bound(c, p.Code)
	if !ok {
		return
	}
	if err := h.service.ShowLeaderboard(ctx, code, player, p.Show); err != nil {
		c.replyDomainError(err)
	}
}

func (h *WSHandler) handleReset(ctx context.Context, c *client, raw json.RawMessage) {
	var p codePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.replyError("bad_request", "invalid reset_game payload")
		return
	}
	code, player, ok := h.bound(c, p.Code)
	if !ok {
		return
	}
	if err := h.service.ResetGame(ctx, code, player); err != nil {
		c.replyDomainError(err)
	}
}

func (h *WSHandler) handleLeave(ctx context.Context, c *client, raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.replyError("bad_request", "invalid leave payload")
		return
	}
	code, player, ok := h.bound(c, p.Code)
	if !ok {
		return
	}
	if err := h.service.Leave(ctx, code, player); err != nil {
		c.replyDomainError(err)
		return
	}
	h.rooms.Leave(code, c)
	c.code, c.player = "", ""
	c.reply("left", codePayload{Code: code})
}

// bound resolves the player identity a connection acts as for code.
func (h *WSHandler) bound(c *client, rawCode string) (string, string, bool) {
	code := normalizeCode(rawCode)
	if c.player == "" || c.code != code {
		c.replyError("not_joined", "join the game before sending commands")
		return "", "", false
	}
	return code, c.player, true
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
