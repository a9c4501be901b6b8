package app

import (
	"fmt"
	"time"

	"quizclash-service/internal/domain"
)

// Settings bounds game configuration and drives eviction.
type Settings struct {
	MinTimePerQuestion int
	MaxTimePerQuestion int
	MinQuestions       int
	MaxQuestions       int
	MaxPlayersPerGame  int
	MaxSessions        int
	IdleTimeout        time.Duration
	SweepInterval      time.Duration
	GenerationTimeout  time.Duration
	ScoreBand          domain.ScoreBand
}

func DefaultSettings() Settings {
	return Settings{
		MinTimePerQuestion: 3,
		MaxTimePerQuestion: 300,
		MinQuestions:       1,
		MaxQuestions:       20,
		MaxPlayersPerGame:  50,
		MaxSessions:        500,
		IdleTimeout:        30 * time.Minute,
		SweepInterval:      5 * time.Minute,
		GenerationTimeout:  2 * time.Minute,
		ScoreBand:          domain.DefaultScoreBand,
	}
}

// Validate rejects settings that would make games unplayable.
func (s Settings) Validate() error {
	switch {
	case s.MinTimePerQuestion < 1 || s.MaxTimePerQuestion < s.MinTimePerQuestion:
		return fmt.Errorf("%w: time per question bounds %d..%d", domain.ErrInvalidConfiguration, s.MinTimePerQuestion, s.MaxTimePerQuestion)
	case s.MinQuestions < 1 || s.MaxQuestions < s.MinQuestions:
		return fmt.Errorf("%w: question count bounds %d..%d", domain.ErrInvalidConfiguration, s.MinQuestions, s.MaxQuestions)
	case s.MaxPlayersPerGame < 1:
		return fmt.Errorf("%w: max players per game %d", domain.ErrInvalidConfiguration, s.MaxPlayersPerGame)
	case s.MaxSessions < 1:
		return fmt.Errorf("%w: max sessions %d", domain.ErrInvalidConfiguration, s.MaxSessions)
	case s.IdleTimeout <= 0 || s.SweepInterval <= 0 || s.GenerationTimeout <= 0:
		return fmt.Errorf("%w: durations must be positive", domain.ErrInvalidConfiguration)
	case s.ScoreBand.Min < 0 || s.ScoreBand.Max < s.ScoreBand.Min:
		return fmt.Errorf("%w: score band %d..%d", domain.ErrInvalidConfiguration, s.ScoreBand.Min, s.ScoreBand.Max)
	}
	return nil
}

func (s Settings) validateGame(timePerQuestion, numQuestions int) error {
	if timePerQuestion < s.MinTimePerQuestion || timePerQuestion > s.MaxTimePerQuestion {
		return fmt.Errorf("%w: timePerQuestion must be between %d and %d", domain.ErrInvalidConfiguration, s.MinTimePerQuestion, s.MaxTimePerQuestion)
	}
	if numQuestions < s.MinQuestions || numQuestions > s.MaxQuestions {
		return fmt.Errorf("%w: numQuestions must be between %d and %d", domain.ErrInvalidConfiguration, s.MinQuestions, s.MaxQuestions)
	}
	return nil
}
