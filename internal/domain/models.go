package domain

import (
	"sort"
	"time"
)

// Status is the externally visible lifecycle status of a session.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusStarted    Status = "started"
	StatusError      Status = "error"
)

// Phase is the sub-state of a session. Only lobby is used outside StatusStarted.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseQuestion    Phase = "question"
	PhaseReveal      Phase = "reveal"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseCompleted   Phase = "completed"
)

// Player is a member of a session's roster.
type Player struct {
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
}

// Question is a multiple choice question; CorrectAnswer must match one of Options exactly.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Context       string   `json:"context,omitempty"`
}

// Valid reports whether the question can be played.
func (q Question) Valid() bool {
	if q.Text == "" || len(q.Options) < 2 {
		return false
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return true
		}
	}
	return false
}

// QuestionView is what players see of a question before it is revealed.
type QuestionView struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Context string   `json:"context,omitempty"`
}

// View drops the correct answer.
func (q Question) View() QuestionView {
	return QuestionView{Text: q.Text, Options: append([]string(nil), q.Options...), Context: q.Context}
}

// Views returns the player-facing form of questions.
func Views(questions []Question) []QuestionView {
	out := make([]QuestionView, len(questions))
	for i, q := range questions {
		out[i] = q.View()
	}
	return out
}

// QuestionSet is the raw material a game's questions are drawn from.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Standing is one row of a score snapshot.
type Standing struct {
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
}

// SortStandings orders by score desc, then correct count desc, then name.
func SortStandings(entries []Standing) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].CorrectCount != entries[j].CorrectCount {
			return entries[i].CorrectCount > entries[j].CorrectCount
		}
		return entries[i].Name < entries[j].Name
	})
}

// StatusInfo is the progress view exposed to the generation collaborator and pollers.
type StatusInfo struct {
	Code          string    `json:"code"`
	Status        Status    `json:"status"`
	Phase         Phase     `json:"phase"`
	Error         string    `json:"error,omitempty"`
	PlayerCount   int       `json:"playerCount"`
	QuestionCount int       `json:"questionCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SessionSummary is a discovery listing row.
type SessionSummary struct {
	Code            string `json:"code"`
	Host            string `json:"host"`
	Status          Status `json:"status"`
	PlayerCount     int    `json:"playerCount"`
	NumQuestions    int    `json:"numQuestions"`
	TimePerQuestion int    `json:"timePerQuestion"`
}

// SessionSnapshot is a consistent copy of a session's observable state.
type SessionSnapshot struct {
	Code                 string         `json:"code"`
	Host                 string         `json:"host"`
	Status               Status         `json:"status"`
	Phase                Phase          `json:"phase"`
	Error                string         `json:"error,omitempty"`
	Players              []Player       `json:"players"`
	Questions            []QuestionView `json:"questions,omitempty"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	TimePerQuestion      int            `json:"timePerQuestion"`
	TimeLeft             int            `json:"timeLeft"`
	NumQuestions         int            `json:"numQuestions"`
	AnsweredCount        int            `json:"answeredCount"`
	IsPrivate            bool           `json:"isPrivate"`
	LastActivity         time.Time      `json:"lastActivity"`
}

// SubmitResult summarizes an answer submission. Accepted is false for duplicates and late answers.
type SubmitResult struct {
	Accepted      bool `json:"accepted"`
	IsCorrect     bool `json:"isCorrect"`
	PointsAwarded int  `json:"pointsAwarded"`
	TotalScore    int  `json:"totalScore"`
}
