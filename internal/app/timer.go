package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quizclash-service/internal/domain"
)

// questionTimer is one countdown. A session holds at most one; starting another cancels it.
type questionTimer struct {
	stop chan struct{}
	once sync.Once
}

func (t *questionTimer) cancel() {
	t.once.Do(func() { close(t.stop) })
}

func (s *GameService) startTimerLocked(sess *Session) {
	s.stopTimerLocked(sess)
	if s.ctx.Err() != nil {
		return
	}

	t := &questionTimer{stop: make(chan struct{})}
	sess.timer = t
	ticker := s.clock.NewTicker(time.Second)

	s.workers.Add(1)
	go s.runTimer(sess, t, ticker)
}

func (s *GameService) stopTimerLocked(sess *Session) {
	if sess.timer != nil {
		sess.timer.cancel()
		sess.timer = nil
	}
}

func (s *GameService) runTimer(sess *Session, t *questionTimer, ticker clockwork.Ticker) {
	defer s.workers.Done()
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			if !s.tick(sess, t) {
				return
			}
		}
	}
}

// tick decrements the countdown once. It returns false when the timer should exit:
// the session was destroyed or replaced, the timer was superseded, or time ran out.
func (s *GameService) tick(sess *Session, t *questionTimer) bool {
	if live, ok := s.sessions.Get(sess.code); !ok || live != sess {
		t.cancel()
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed || sess.timer != t || sess.phase != domain.PhaseQuestion {
		return false
	}

	sess.timeLeft--
	if sess.timeLeft > 0 {
		s.broadcastLocked(sess, domain.EventTimerUpdate, domain.TimerUpdatePayload{
			TimeLeft:      sess.timeLeft,
			QuestionIndex: sess.currentIndex,
		})
		return true
	}

	sess.timeLeft = 0
	s.revealLocked(sess)
	return false
}
