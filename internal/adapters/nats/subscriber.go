package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber opens its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeSamples delivers fixes from one source in publish order. Only one
// message is in flight at a time because the trail depends on sample order.
func (s *Subscriber) SubscribeSamples(ctx context.Context, sourceID string, handler func(ctx context.Context, sample *domain.Sample) error) error {
	sub, err := s.js.Subscribe(SampleSubject(sourceID), func(msg *nats.Msg) {
		var sample domain.Sample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			slog.Warn("malformed sample message", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if sample.SourceID == "" {
			sample.SourceID = sourceID
		}
		if err := handler(ctx, &sample); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("trail-"+token(sourceID)),
		nats.ManualAck(),
		nats.MaxAckPending(1),
		nats.MaxDeliver(3),
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
