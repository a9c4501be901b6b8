package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"quizclash-service/internal/domain"
)

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestRESTGameLifecycle(t *testing.T) {
	s := newTestServer(t)
	base := s.server.URL + "/v1/games"

	var created domain.SessionSnapshot
	status := doJSON(t, http.MethodPost, base, map[string]any{
		"hostName": "Alice", "timePerQuestion": 15, "numQuestions": 1,
	}, &created)
	if status != http.StatusCreated || len(created.Code) != 6 || created.Status != domain.StatusProcessing {
		t.Fatalf("unexpected create response %d %+v", status, created)
	}
	gameURL := base + "/" + created.Code

	if status := doJSON(t, http.MethodPost, gameURL+"/players", map[string]any{"playerName": "Bob"}, nil); status != http.StatusCreated {
		t.Fatalf("join status %d", status)
	}
	var dup errorPayload
	if status := doJSON(t, http.MethodPost, gameURL+"/players", map[string]any{"playerName": "Bob"}, &dup); status != http.StatusConflict || dup.Code != "duplicate_name" {
		t.Fatalf("expected duplicate_name conflict, got %d %+v", status, dup)
	}

	var roster playersResponse
	doJSON(t, http.MethodGet, gameURL+"/players", nil, &roster)
	if len(roster.Players) != 2 || !roster.Players[0].IsHost {
		t.Fatalf("unexpected roster %+v", roster.Players)
	}

	var generating domain.StatusInfo
	if status := doJSON(t, http.MethodPost, gameURL+"/generation", map[string]any{"status": "generating"}, &generating); status != http.StatusOK || generating.Status != domain.StatusGenerating {
		t.Fatalf("unexpected generation response %d %+v", status, generating)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		raw, _ := json.Marshal(map[string]any{"questions": sampleQuestions()})
		req, err := http.NewRequest(http.MethodPut, gameURL+"/questions", bytes.NewReader(raw))
		if err != nil {
			return
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}()
	var polled domain.StatusInfo
	if status := doJSON(t, http.MethodGet, gameURL+"/status?wait=5s", nil, &polled); status != http.StatusOK {
		t.Fatalf("status poll %d", status)
	}
	if polled.Status != domain.StatusReady || polled.QuestionCount != 1 {
		t.Fatalf("long poll should return the ready status, got %+v", polled)
	}

	var list listResponse
	doJSON(t, http.MethodGet, base+"?page=1&pageSize=5", nil, &list)
	if list.Total != 1 || list.Games[0].Code != created.Code || list.Games[0].PlayerCount != 2 {
		t.Fatalf("unexpected listing %+v", list)
	}

	if status := doJSON(t, http.MethodDelete, gameURL+"/players/Bob", nil, nil); status != http.StatusNoContent {
		t.Fatalf("leave status %d", status)
	}
	if status := doJSON(t, http.MethodDelete, gameURL+"/players/Alice", nil, nil); status != http.StatusNoContent {
		t.Fatalf("host leave status %d", status)
	}
	var gone errorPayload
	if status := doJSON(t, http.MethodGet, gameURL+"/status", nil, &gone); status != http.StatusNotFound || gone.Code != "not_found" {
		t.Fatalf("expected not_found after host left, got %d %+v", status, gone)
	}
}

func TestRESTRejectsInvalidInput(t *testing.T) {
	s := newTestServer(t)
	base := s.server.URL + "/v1/games"

	var bad errorPayload
	if status := doJSON(t, http.MethodPost, base, map[string]any{"hostName": "Alice", "timePerQuestion": 1, "numQuestions": 1}, &bad); status != http.StatusBadRequest || bad.Code != "invalid_configuration" {
		t.Fatalf("expected invalid_configuration, got %d %+v", status, bad)
	}

	code := s.readyGame(t, "Alice")
	if status := doJSON(t, http.MethodGet, base+"/"+code+"/status?wait=soon", nil, &bad); status != http.StatusBadRequest {
		t.Fatalf("expected bad wait to be rejected, got %d", status)
	}
	if status := doJSON(t, http.MethodPost, base+"/"+code+"/generation", map[string]any{"status": "ready"}, &bad); status != http.StatusBadRequest {
		t.Fatalf("expected bad generation status to be rejected, got %d", status)
	}
	if status := doJSON(t, http.MethodPut, base+"/"+code+"/questions", map[string]any{"questions": sampleQuestions()}, &bad); status != http.StatusConflict || bad.Code != "invalid_transition" {
		t.Fatalf("questions for a ready game should conflict, got %d %+v", status, bad)
	}
	if status := doJSON(t, http.MethodGet, base+"/zzzzzz", nil, &bad); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}

	var health map[string]string
	if status := doJSON(t, http.MethodGet, s.server.URL+"/healthz", nil, &health); status != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("health check failed: %d %v", status, health)
	}
}
