// Package natspub publishes gameplay events to a NATS JetStream stream.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/stuartshay/geo-session-engine/internal/engine"
)

// SubjectPrefix is the root token of every event subject
const SubjectPrefix = "geosession"

// DefaultStream is the JetStream stream that captures SubjectPrefix.>
const DefaultStream = "GEOSESSION_EVENTS"

// Publisher publishes engine events using NATS JetStream
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// StreamConfig returns the stream definition for the given name
func StreamConfig(name string) nats.StreamConfig {
	if name == "" {
		name = DefaultStream
	}
	return nats.StreamConfig{
		Name:       name,
		Subjects:   []string{SubjectPrefix + ".>"},
		Retention:  nats.InterestPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
}

// NewPublisher connects to NATS and makes sure the event stream exists
func NewPublisher(url, stream string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("geo-session-engine"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := StreamConfig(stream)
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// Publish sends one event. The event id doubles as the JetStream message id so
// redelivered publishes are deduplicated by the server.
func (p *Publisher) Publish(ctx context.Context, ev engine.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.js.Publish(Subject(ev), data, nats.Context(ctx), nats.MsgId(ev.ID.String()))
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Close drains and closes the connection
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Subject returns geosession.<kind>.<player>
func Subject(ev engine.Event) string {
	return SubjectPrefix + "." + string(ev.Kind) + "." + token(ev.PlayerID)
}

// token makes s safe to use as a single subject token
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
