package domain

// EventType names an outbound broadcast event.
type EventType string

const (
	EventPlayerCount     EventType = "player_count"
	EventPlayersUpdated  EventType = "players_updated"
	EventStatusChanged   EventType = "status_changed"
	EventGameStarted     EventType = "game_started"
	EventTimerUpdate     EventType = "timer_update"
	EventPlayerAnswered  EventType = "player_answered"
	EventShowAnswer      EventType = "show_answer"
	EventNextQuestion    EventType = "next_question"
	EventShowLeaderboard EventType = "show_leaderboard"
	EventGameCompleted   EventType = "game_completed"
	EventResetGame       EventType = "reset_game"
	EventHostLeft        EventType = "host_left"
)

// Event is the envelope fanned out to a room's connections.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type PlayerCountPayload struct {
	Count int `json:"count"`
}

type PlayersUpdatedPayload struct {
	Players []Player `json:"players"`
}

type StatusChangedPayload struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GameStartedPayload carries the question list without answers; show_answer reveals each one.
type GameStartedPayload struct {
	Questions       []QuestionView `json:"questions"`
	QuestionIndex   int            `json:"questionIndex"`
	TimePerQuestion int            `json:"timePerQuestion"`
}

type TimerUpdatePayload struct {
	TimeLeft      int `json:"timeLeft"`
	QuestionIndex int `json:"questionIndex"`
}

type PlayerAnsweredPayload struct {
	AnsweredCount int `json:"answeredCount"`
	TotalPlayers  int `json:"totalPlayers"`
}

type ShowAnswerPayload struct {
	CorrectAnswer string     `json:"correctAnswer"`
	QuestionIndex int        `json:"questionIndex"`
	ScoreSnapshot []Standing `json:"scoreSnapshot"`
}

type NextQuestionPayload struct {
	QuestionIndex   int    `json:"questionIndex"`
	Context         string `json:"context,omitempty"`
	TimePerQuestion int    `json:"timePerQuestion"`
}

type ShowLeaderboardPayload struct {
	Show      bool       `json:"show"`
	Standings []Standing `json:"standings"`
	Context   string     `json:"context,omitempty"`
}

type GameCompletedPayload struct {
	FinalStandings []Standing `json:"finalStandings"`
	TotalQuestions int        `json:"totalQuestions"`
}

type ResetGamePayload struct{}

type HostLeftPayload struct{}
