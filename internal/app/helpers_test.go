package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quizclash-service/internal/app"
	"quizclash-service/internal/domain"
	"quizclash-service/internal/infra/memory"
)

type recorded struct {
	code  string
	event domain.Event
}

// recorder is a Broadcaster that keeps every event.
type recorder struct {
	mu       sync.Mutex
	events   []recorded
	released []string
}

func (r *recorder) Broadcast(code string, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{code: code, event: event})
}

func (r *recorder) Release(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, code)
}

func (r *recorder) count(typ domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.events {
		if rec.event.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ domain.EventType) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].event.Type == typ {
			return r.events[i].event, true
		}
	}
	return domain.Event{}, false
}

func (r *recorder) waitFor(t *testing.T, typ domain.EventType, n int) domain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count(typ) >= n {
			ev, _ := r.last(typ)
			return ev
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s events, saw %d", n, typ, r.count(typ))
	return domain.Event{}
}

type cleanerSpy struct {
	mu    sync.Mutex
	codes []string
}

func (c *cleanerSpy) CleanupSession(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, code)
	return nil
}

func (c *cleanerSpy) cleaned() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.codes...)
}

type harness struct {
	service *app.GameService
	store   *memory.SessionStore
	hub     *recorder
	clock   *clockwork.FakeClock
	cleaner *cleanerSpy
}

func newHarness(t *testing.T, mutate func(*app.Settings), questions app.QuestionSetRepository) *harness {
	t.Helper()
	settings := app.DefaultSettings()
	if mutate != nil {
		mutate(&settings)
	}
	h := &harness{
		store:   memory.NewSessionStore(),
		hub:     &recorder{},
		clock:   clockwork.NewFakeClock(),
		cleaner: &cleanerSpy{},
	}
	h.service = app.NewGameService(h.store, questions, h.hub, settings,
		app.WithClock(h.clock),
		app.WithCleaner(h.cleaner),
	)
	t.Cleanup(h.service.Close)
	return h
}

// readyGame creates a game hosted by "host", joins guests and installs questions.
func (h *harness) readyGame(t *testing.T, timePerQuestion int, questions []domain.Question, guests ...string) string {
	t.Helper()
	ctx := context.Background()
	snap, err := h.service.CreateGame(ctx, app.CreateGameRequest{
		HostName:        "host",
		TimePerQuestion: timePerQuestion,
		NumQuestions:    len(questions),
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	for _, name := range guests {
		if _, err := h.service.JoinGame(ctx, snap.Code, name); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
	if err := h.service.CompleteGeneration(ctx, snap.Code, questions); err != nil {
		t.Fatalf("complete generation: %v", err)
	}
	return snap.Code
}

// tick advances one second and waits for the resulting countdown broadcast.
func (h *harness) tick(t *testing.T, seen int) {
	t.Helper()
	h.clock.Advance(time.Second)
	h.hub.waitFor(t, domain.EventTimerUpdate, seen)
}

func sampleQuestions(n int) []domain.Question {
	all := []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4", Context: "Addition."},
		{Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris", Context: "Geography."},
		{Text: "Largest planet?", Options: []string{"Mars", "Jupiter"}, CorrectAnswer: "Jupiter", Context: "Astronomy."},
		{Text: "Water boils at?", Options: []string{"90C", "100C"}, CorrectAnswer: "100C"},
	}
	return all[:n]
}
