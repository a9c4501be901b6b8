package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quizclash-service/internal/app"
	"quizclash-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions themselves stay in a local map; timers and broadcasts are in-process.
//   - Each code is claimed with SETNX so instances sharing a Redis never hand out the
//     same room code. Claims expire after ttl unless KeepAlive refreshes them.
//   - Redis being unreachable degrades to the local collision check.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	timeout  time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

// claimTimeout bounds each claim and release round trip.
const claimTimeout = 2 * time.Second

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		timeout:  claimTimeout,
		sessions: make(map[string]*app.Session),
	}
}

// Create claims code in Redis without holding the registry lock, then registers the
// session locally if the code is still free.
func (s *SessionStore) Create(code string, session *app.Session) error {
	s.mu.RLock()
	_, taken := s.sessions[code]
	s.mu.RUnlock()
	if taken {
		return domain.ErrCodeTaken
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	claimed, err := s.client.SetNX(ctx, s.key(code), "1", s.ttl).Result()
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("redis claim failed, using local registry only")
	} else if !claimed {
		return domain.ErrCodeTaken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[code]; ok {
		return domain.ErrCodeTaken
	}
	s.sessions[code] = session
	return nil
}

func (s *SessionStore) Get(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	return session, ok
}

func (s *SessionStore) Delete(code string) {
	s.mu.Lock()
	_, ok := s.sessions[code]
	delete(s.sessions, code)
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key(code)).Err(); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("redis claim release failed")
	}
}

func (s *SessionStore) All() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// Refresh extends the claim of every local session.
func (s *SessionStore) Refresh(ctx context.Context) error {
	s.mu.RLock()
	codes := make([]string, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	s.mu.RUnlock()
	if len(codes) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, code := range codes {
		pipe.Expire(ctx, s.key(code), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// KeepAlive refreshes claims every interval until ctx is done.
func (s *SessionStore) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("redis claim refresh failed")
			}
		}
	}
}

func (s *SessionStore) key(code string) string {
	return "quiz:session:" + code
}
