package app

import (
	"strings"
	"sync"
	"time"

	"quizclash-service/internal/domain"
)

// Session is the authoritative in-memory state of one game. Every field is guarded by mu;
// methods with a Locked suffix expect the caller to hold it.
type Session struct {
	mu sync.Mutex

	code            string
	host            string
	players         []*domain.Player
	status          domain.Status
	phase           domain.Phase
	failure         string
	questions       []domain.Question
	currentIndex    int
	timePerQuestion int
	timeLeft        int
	numQuestions    int
	answered        map[string]int
	isPrivate       bool
	createdAt       time.Time
	lastActivity    time.Time

	timer  *questionTimer
	closed bool
}

func newSession(code, host string, timePerQuestion, numQuestions int, isPrivate bool, now time.Time) *Session {
	return &Session{
		code:            code,
		host:            host,
		players:         []*domain.Player{{Name: host, IsHost: true}},
		status:          domain.StatusProcessing,
		phase:           domain.PhaseLobby,
		timePerQuestion: timePerQuestion,
		numQuestions:    numQuestions,
		answered:        make(map[string]int),
		isPrivate:       isPrivate,
		createdAt:       now,
		lastActivity:    now,
	}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(code, host string, timePerQuestion, numQuestions int, now time.Time) *Session {
	return newSession(code, host, timePerQuestion, numQuestions, false, now)
}

// Code returns the session's room code.
func (s *Session) Code() string {
	return s.code
}

// LastActivity returns the time of the most recent player action.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) touchLocked(now time.Time) {
	s.lastActivity = now
}

func (s *Session) playerLocked(name string) *domain.Player {
	for _, p := range s.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *Session) requireHostLocked(name string) error {
	p := s.playerLocked(name)
	if p == nil {
		return domain.ErrPlayerNotFound
	}
	if !p.IsHost {
		return domain.ErrNotHost
	}
	return nil
}

func (s *Session) removePlayerLocked(name string) {
	for i, p := range s.players {
		if p.Name == name {
			s.players = append(s.players[:i], s.players[i+1:]...)
			break
		}
	}
	delete(s.answered, name)
}

func (s *Session) rosterLocked() []domain.Player {
	out := make([]domain.Player, len(s.players))
	for i, p := range s.players {
		out[i] = *p
	}
	return out
}

func (s *Session) standingsLocked() []domain.Standing {
	out := make([]domain.Standing, len(s.players))
	for i, p := range s.players {
		out[i] = domain.Standing{Name: p.Name, IsHost: p.IsHost, Score: p.Score, CorrectCount: p.CorrectCount}
	}
	domain.SortStandings(out)
	return out
}

func (s *Session) answeredCountLocked() int {
	n := 0
	for _, p := range s.players {
		if _, ok := s.answered[p.Name]; ok {
			n++
		}
	}
	return n
}

func (s *Session) allAnsweredLocked() bool {
	return len(s.players) > 0 && s.answeredCountLocked() == len(s.players)
}

func (s *Session) currentContextLocked() string {
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return ""
	}
	return s.questions[s.currentIndex].Context
}

func (s *Session) resetProgressLocked() {
	s.status = domain.StatusReady
	s.phase = domain.PhaseLobby
	s.currentIndex = 0
	s.timeLeft = 0
	s.answered = make(map[string]int)
	for _, p := range s.players {
		p.Score = 0
		p.CorrectCount = 0
	}
}

func (s *Session) statusInfoLocked(now time.Time) domain.StatusInfo {
	return domain.StatusInfo{
		Code:          s.code,
		Status:        s.status,
		Phase:         s.phase,
		Error:         s.failure,
		PlayerCount:   len(s.players),
		QuestionCount: len(s.questions),
		UpdatedAt:     now,
	}
}

func (s *Session) summaryLocked() domain.SessionSummary {
	return domain.SessionSummary{
		Code:            s.code,
		Host:            s.host,
		Status:          s.status,
		PlayerCount:     len(s.players),
		NumQuestions:    s.numQuestions,
		TimePerQuestion: s.timePerQuestion,
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	return domain.SessionSnapshot{
		Code:                 s.code,
		Host:                 s.host,
		Status:               s.status,
		Phase:                s.phase,
		Error:                s.failure,
		Players:              s.rosterLocked(),
		Questions:            domain.Views(s.questions),
		CurrentQuestionIndex: s.currentIndex,
		TimePerQuestion:      s.timePerQuestion,
		TimeLeft:             s.timeLeft,
		NumQuestions:         s.numQuestions,
		AnsweredCount:        s.answeredCountLocked(),
		IsPrivate:            s.isPrivate,
		LastActivity:         s.lastActivity,
	}
}

const maxNameLength = 32

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLength {
		return "", domain.ErrInvalidPlayerName
	}
	return name, nil
}
