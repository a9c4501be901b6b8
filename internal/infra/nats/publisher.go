package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"quizclash-service/internal/domain"
)

// msgConn is the part of *nats.Conn the bus needs.
type msgConn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// CleanupRequest asks the question pipeline to drop per-session artifacts.
type CleanupRequest struct {
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Bus publishes session status and cleanup requests under <prefix>.<code>.status and
// <prefix>.<code>.cleanup, and listens for generation results on <prefix>.*.generation.
type Bus struct {
	conn   msgConn
	nc     *nats.Conn
	prefix string
	now    func() time.Time
}

// Connect dials NATS with infinite reconnects.
func Connect(url, prefix string) (*Bus, error) {
	opts := []nats.Option{
		nats.Name("quizclash-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	bus := newBus(nc, prefix)
	bus.nc = nc
	return bus, nil
}

func newBus(conn msgConn, prefix string) *Bus {
	return &Bus{conn: conn, prefix: prefix, now: time.Now}
}

// StatusChanged implements app.StatusNotifier. Publish failures are logged, never returned.
func (b *Bus) StatusChanged(info domain.StatusInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		log.Error().Err(err).Str("code", info.Code).Msg("encode status")
		return
	}
	if err := b.conn.Publish(b.subject(info.Code, "status"), raw); err != nil {
		log.Warn().Err(err).Str("code", info.Code).Msg("publish status")
	}
}

// CleanupSession implements app.ResourceCleaner.
func (b *Bus) CleanupSession(_ context.Context, code string) error {
	raw, err := json.Marshal(CleanupRequest{Code: code, RequestedAt: b.now()})
	if err != nil {
		return fmt.Errorf("encode cleanup request: %w", err)
	}
	if err := b.conn.Publish(b.subject(code, "cleanup"), raw); err != nil {
		return fmt.Errorf("publish cleanup request: %w", err)
	}
	return nil
}

// Close drains the connection when the bus owns one.
func (b *Bus) Close() {
	if b.nc == nil {
		return
	}
	if err := b.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("NATS drain")
	}
}

func (b *Bus) subject(code, kind string) string {
	return b.prefix + "." + code + "." + kind
}
