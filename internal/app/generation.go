package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"quizclash-service/internal/domain"
)

// BeginGeneration marks that the question collaborator has picked the session up.
func (s *GameService) BeginGeneration(_ context.Context, code string) error {
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.ErrSessionNotFound
	}
	if sess.status == domain.StatusGenerating {
		return nil
	}
	if sess.status != domain.StatusProcessing {
		return fmt.Errorf("%w: cannot generate from status %s", domain.ErrInvalidTransition, sess.status)
	}
	s.setStatusLocked(sess, domain.StatusGenerating, "")
	return nil
}

// CompleteGeneration installs the session's questions. Invalid questions are dropped and the
// list is cut to the configured count; an empty result moves the session to error.
func (s *GameService) CompleteGeneration(_ context.Context, code string, questions []domain.Question) error {
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.ErrSessionNotFound
	}
	if sess.status != domain.StatusProcessing && sess.status != domain.StatusGenerating {
		return fmt.Errorf("%w: cannot complete generation from status %s", domain.ErrInvalidTransition, sess.status)
	}

	selected := selectQuestions(questions, sess.numQuestions)
	if len(selected) == 0 {
		s.setStatusLocked(sess, domain.StatusError, "no playable questions were generated")
		log.Warn().Str("code", code).Int("received", len(questions)).Msg("question generation produced nothing playable")
		return domain.ErrQuestionGenerationFailed
	}

	sess.questions = selected
	s.setStatusLocked(sess, domain.StatusReady, "")
	log.Info().Str("code", code).Int("questions", len(selected)).Msg("questions ready")
	return nil
}

// FailGeneration records a collaborator failure. The session stays queryable but unplayable.
func (s *GameService) FailGeneration(_ context.Context, code, reason string) error {
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.ErrSessionNotFound
	}
	if sess.status != domain.StatusProcessing && sess.status != domain.StatusGenerating {
		return fmt.Errorf("%w: cannot fail generation from status %s", domain.ErrInvalidTransition, sess.status)
	}
	if reason == "" {
		reason = domain.ErrQuestionGenerationFailed.Error()
	}
	s.setStatusLocked(sess, domain.StatusError, reason)
	log.Warn().Str("code", code).Str("reason", reason).Msg("question generation failed")
	return nil
}

func (s *GameService) setStatusLocked(sess *Session, status domain.Status, failure string) {
	sess.status = status
	sess.failure = failure
	s.broadcastLocked(sess, domain.EventStatusChanged, domain.StatusChangedPayload{Status: status, Error: failure})
	s.notifyLocked(sess)
}

// runGeneration drives the three collaborator calls from a stored question set.
// No session lock is held while the set loads.
func (s *GameService) runGeneration(code, setID string) {
	if s.ctx.Err() != nil {
		return
	}
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.settings.GenerationTimeout)
		defer cancel()

		set, err := s.questions.GetQuestionSet(ctx, setID)
		if err != nil {
			if failErr := s.FailGeneration(ctx, code, fmt.Sprintf("load question set %s: %v", setID, err)); failErr != nil {
				log.Debug().Err(failErr).Str("code", code).Msg("generation failure not recorded")
			}
			return
		}
		if err := s.BeginGeneration(ctx, code); err != nil {
			log.Debug().Err(err).Str("code", code).Msg("generation abandoned")
			return
		}
		if err := s.CompleteGeneration(ctx, code, set.Questions); err != nil {
			log.Debug().Err(err).Str("code", code).Str("set", setID).Msg("generation did not complete")
		}
	}()
}

func selectQuestions(questions []domain.Question, limit int) []domain.Question {
	out := make([]domain.Question, 0, limit)
	for _, q := range questions {
		if len(out) == limit {
			break
		}
		if !q.Valid() {
			continue
		}
		q.Options = append([]string(nil), q.Options...)
		out = append(out, q)
	}
	return out
}
