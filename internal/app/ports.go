package app

import (
	"context"

	"quizclash-service/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-claimed, etc).
// Create returns domain.ErrCodeTaken when the code is already in use.
type SessionRepository interface {
	Create(code string, session *Session) error
	Get(code string) (*Session, bool)
	Delete(code string)
	All() []*Session
}

// QuestionSetRepository loads question sets (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// Broadcaster fans events out to a room's live connections. Implementations must not block.
type Broadcaster interface {
	Broadcast(code string, event domain.Event)
	Release(code string)
}

// StatusNotifier is told about every session status change.
type StatusNotifier interface {
	StatusChanged(info domain.StatusInfo)
}

// ResourceCleaner releases per-session resources held outside this process.
type ResourceCleaner interface {
	CleanupSession(ctx context.Context, code string) error
}
