package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// DefaultConsumer is the durable consumer applying fixes to sessions.
const DefaultConsumer = "fix-applier"

// Subscriber implements ports.FixSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection. An empty
// durable name selects DefaultConsumer.
func NewSubscriber(url, durable string) (*Subscriber, error) {
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
	if durable == "" {
		durable = DefaultConsumer
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeFixes registers handler for every fix. Malformed payloads are
// terminated; handler errors are redelivered up to three times.
func (s *Subscriber) SubscribeFixes(ctx context.Context, handler func(ctx context.Context, fix *domain.Fix) error) error {
	sub, err := s.js.Subscribe(fixSubjectPrefix+">", func(msg *nats.Msg) {
		fix, err := DecodeFix(msg.Data)
		if err != nil {
			slog.Warn("dropping malformed fix", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, fix); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.DeliverNew(),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
