package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// FixStream holds every accepted fix for an hour.
const FixStream = "LOCATION_FIXES"

// Publisher implements ports.FixPublisher and ports.FramePublisher using
// NATS. Fixes go through JetStream; frames are fire-and-forget.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := nats.StreamConfig{
		Name:      FixStream,
		Subjects:  []string{fixSubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist — try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

func (p *Publisher) PublishFix(ctx context.Context, fix *domain.Fix) error {
	data, err := EncodeFix(fix)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(FixSubject(fix.DeviceID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishFrame(ctx context.Context, frame *domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return p.conn.Publish(FrameSubject(frame.SessionID), data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
