package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"quizclash-service/internal/app"
	"quizclash-service/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	maxStatusWait   = 30 * time.Second
)

// GameHandler is the REST surface: discovery, roster and status queries, and the
// question collaborator's progress calls.
type GameHandler struct {
	service *app.GameService
}

func NewGameHandler(service *app.GameService) *GameHandler {
	return &GameHandler{service: service}
}

type createGameRequest struct {
	HostName        string `json:"hostName"`
	TimePerQuestion int    `json:"timePerQuestion"`
	NumQuestions    int    `json:"numQuestions"`
	IsPrivate       bool   `json:"isPrivate"`
	QuestionSetID   string `json:"questionSetId"`
}

type joinGameRequest struct {
	PlayerName string `json:"playerName"`
}

type questionsRequest struct {
	Questions []domain.Question `json:"questions"`
}

type generationRequest struct {
	Status domain.Status `json:"status"`
	Error  string        `json:"error"`
}

type listResponse struct {
	Games    []domain.SessionSummary `json:"games"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
}

type playersResponse struct {
	Players []domain.Player `json:"players"`
}

// Create handles POST /v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	snapshot, err := h.service.CreateGame(r.Context(), app.CreateGameRequest{
		HostName:        req.HostName,
		TimePerQuestion: req.TimePerQuestion,
		NumQuestions:    req.NumQuestions,
		IsPrivate:       req.IsPrivate,
		QuestionSetID:   req.QuestionSetID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// List handles GET /v1/games?page=&pageSize=
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	games, total := h.service.ListPublic(r.Context(), page, pageSize)
	writeJSON(w, http.StatusOK, listResponse{Games: games, Total: total, Page: page, PageSize: pageSize})
}

// Get handles GET /v1/games/{code}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context(), codeVar(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Join handles POST /v1/games/{code}/players
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	snapshot, err := h.service.JoinGame(r.Context(), codeVar(r), req.PlayerName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// Leave handles DELETE /v1/games/{code}/players/{name}
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Leave(r.Context(), codeVar(r), mux.Vars(r)["name"]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Players handles GET /v1/games/{code}/players
func (h *GameHandler) Players(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.Players(r.Context(), codeVar(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playersResponse{Players: players})
}

// Status handles GET /v1/games/{code}/status?wait=25s. With wait, the request is held
// until the status changes or the wait elapses, then the current status is returned.
func (h *GameHandler) Status(w http.ResponseWriter, r *http.Request) {
	code := codeVar(r)
	wait, err := parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid wait duration")
		return
	}

	if wait > 0 {
		updates, cancel, err := h.service.SubscribeStatus(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-updates:
		case <-timer.C:
		case <-r.Context().Done():
		}
		timer.Stop()
		cancel()
	}

	info, err := h.service.Status(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Questions handles PUT /v1/games/{code}/questions: the collaborator delivers the list.
func (h *GameHandler) Questions(w http.ResponseWriter, r *http.Request) {
	var req questionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	code := codeVar(r)
	if err := h.service.CompleteGeneration(r.Context(), code, req.Questions); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeStatus(w, r, code)
}

// Generation handles POST /v1/games/{code}/generation with status generating or error.
func (h *GameHandler) Generation(w http.ResponseWriter, r *http.Request) {
	var req generationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	code := codeVar(r)
	var err error
	switch req.Status {
	case domain.StatusGenerating:
		err = h.service.BeginGeneration(r.Context(), code)
	case domain.StatusError:
		err = h.service.FailGeneration(r.Context(), code, req.Error)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "status must be generating or error")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeStatus(w, r, code)
}

func (h *GameHandler) writeStatus(w http.ResponseWriter, r *http.Request, code string) {
	info, err := h.service.Status(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func codeVar(r *http.Request) string {
	return normalizeCode(mux.Vars(r)["code"])
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d > maxStatusWait {
		d = maxStatusWait
	}
	return d, nil
}
