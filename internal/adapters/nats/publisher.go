package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
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

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "TRAIL_SAMPLES",
			Subjects:  []string{sampleSubjectPrefix + ">"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "TRAIL_CHANGES",
			Subjects:  []string{ChangeSubjects},
			Retention: nats.InterestPolicy,
			MaxAge:    10 * time.Minute,
			Storage:   nats.MemoryStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishSample(ctx context.Context, s *domain.Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SampleSubject(s.SourceID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishTrailChange(ctx context.Context, ev *domain.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ChangeSubject(ev.SessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the connection for the readiness check and the WebSocket relay.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn dials NATS with unlimited reconnects. Publisher and Subscriber
// each own one connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
