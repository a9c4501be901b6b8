package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a room code is unknown or has expired.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrSessionFull is returned when a join would exceed the per-game player cap.
	ErrSessionFull = errors.New("game session is full")
	// ErrDuplicatePlayerName is returned when the name is already taken in the session.
	ErrDuplicatePlayerName = errors.New("player name already taken")
	// ErrQuestionGenerationFailed marks a session whose question generation failed or produced nothing.
	ErrQuestionGenerationFailed = errors.New("question generation failed")
	// ErrInvalidConfiguration is returned for out-of-range game settings.
	ErrInvalidConfiguration = errors.New("invalid game configuration")
	// ErrNotHost is returned when a host-only command comes from a guest.
	ErrNotHost = errors.New("only the host can do that")
	// ErrInvalidTransition is returned when a command does not apply to the session's current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrPlayerNotFound is returned when a player acts on a session they have not joined.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrInvalidPlayerName is returned for empty or oversized player names.
	ErrInvalidPlayerName = errors.New("invalid player name")
	// ErrGameInProgress is returned when joining a session mid play-through.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrCodeTaken is returned by registries when a room code is already in use.
	ErrCodeTaken = errors.New("room code already in use")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
)
