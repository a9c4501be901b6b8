package app

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

type activity struct {
	sess *Session
	last time.Time
}

// Sweep evicts sessions idle longer than the idle timeout, then the least recently active
// sessions beyond the session cap. Each session is locked only while it is inspected or
// closed. It returns the evicted codes.
func (s *GameService) Sweep(_ context.Context) []string {
	now := s.clock.Now()

	var (
		evicted []string
		alive   []activity
	)
	for _, sess := range s.sessions.All() {
		last := sess.LastActivity()
		if now.Sub(last) > s.settings.IdleTimeout {
			if s.evict(sess, "idle") {
				evicted = append(evicted, sess.code)
			}
			continue
		}
		alive = append(alive, activity{sess: sess, last: last})
	}
	evicted = append(evicted, s.evictOldest(alive)...)

	if len(evicted) > 0 {
		log.Info().Int("evicted", len(evicted)).Int("remaining", len(s.sessions.All())).Msg("session sweep")
	}
	return evicted
}

// RunJanitor sweeps on every interval tick until ctx is cancelled or the service closes.
func (s *GameService) RunJanitor(ctx context.Context) {
	ticker := s.clock.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

func (s *GameService) evictOverCap() {
	all := s.sessions.All()
	if len(all) <= s.settings.MaxSessions {
		return
	}
	rows := make([]activity, 0, len(all))
	for _, sess := range all {
		rows = append(rows, activity{sess: sess, last: sess.LastActivity()})
	}
	s.evictOldest(rows)
}

func (s *GameService) evictOldest(rows []activity) []string {
	over := len(rows) - s.settings.MaxSessions
	if over <= 0 {
		return nil
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].last.Before(rows[j].last) })

	var evicted []string
	for _, row := range rows[:over] {
		if s.evict(row.sess, "session cap") {
			evicted = append(evicted, row.sess.code)
		}
	}
	return evicted
}

func (s *GameService) evict(sess *Session, reason string) bool {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return false
	}
	s.closeLocked(sess)
	sess.mu.Unlock()

	s.teardown(sess.code, reason)
	return true
}
