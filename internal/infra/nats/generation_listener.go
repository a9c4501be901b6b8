package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"quizclash-service/internal/domain"
)

// GenerationSink receives the question collaborator's progress.
type GenerationSink interface {
	BeginGeneration(ctx context.Context, code string) error
	CompleteGeneration(ctx context.Context, code string, questions []domain.Question) error
	FailGeneration(ctx context.Context, code, reason string) error
}

// GenerationUpdate is the message an external generator publishes to <prefix>.<code>.generation.
type GenerationUpdate struct {
	Status    domain.Status     `json:"status"`
	Questions []domain.Question `json:"questions,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// ListenGeneration subscribes to generation updates for every code.
// The returned function unsubscribes.
func (b *Bus) ListenGeneration(ctx context.Context, sink GenerationSink) (func(), error) {
	sub, err := b.conn.Subscribe(b.prefix+".*.generation", func(msg *nats.Msg) {
		if err := b.handleGeneration(ctx, sink, msg.Subject, msg.Data); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("generation update rejected")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe generation updates: %w", err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Msg("unsubscribe generation updates")
		}
	}, nil
}

func (b *Bus) handleGeneration(ctx context.Context, sink GenerationSink, subject string, data []byte) error {
	code, ok := b.codeFromSubject(subject)
	if !ok {
		return fmt.Errorf("unexpected subject %q", subject)
	}
	var update GenerationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return fmt.Errorf("decode generation update: %w", err)
	}

	switch update.Status {
	case domain.StatusGenerating:
		return sink.BeginGeneration(ctx, code)
	case domain.StatusReady:
		return sink.CompleteGeneration(ctx, code, update.Questions)
	case domain.StatusError:
		return sink.FailGeneration(ctx, code, update.Error)
	default:
		return fmt.Errorf("%w: generation status %q", domain.ErrInvalidTransition, update.Status)
	}
}

func (b *Bus) codeFromSubject(subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, b.prefix+".")
	if !ok {
		return "", false
	}
	code, ok := strings.CutSuffix(rest, ".generation")
	if !ok || code == "" || strings.Contains(code, ".") {
		return "", false
	}
	return code, true
}
