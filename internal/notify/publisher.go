// Package notify publishes ledger change events for downstream consumers.
// Publishing is synchronous and best-effort: a failed publish is logged by
// the caller, never surfaced to the replicating client.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ChangeEvent describes one revision appended to the ledger.
type ChangeEvent struct {
	Tenant    string `json:"tenant"`
	Dataset   string `json:"dataset"`
	DocID     string `json:"docId"`
	Rev       string `json:"rev"`
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher defines the interface for publishing change events.
type Publisher interface {
	Publish(ctx context.Context, event *ChangeEvent) error
}

// NatsPublisher implements Publisher using NATS JetStream.
type NatsPublisher struct {
	js jetstream.JetStream
}

func NewNatsPublisher(nc *nats.Conn) (*NatsPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{js: js}, nil
}

// EnsureStream creates the CHANGES stream if it does not exist yet.
// In production, streams should be managed by IaC or migration tools.
func (p *NatsPublisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     "CHANGES",
		Subjects: []string{"changes.>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}
	return nil
}

func (p *NatsPublisher) Publish(ctx context.Context, event *ChangeEvent) error {
	// Subject format: changes.<tenant>.<dataset>
	subject := fmt.Sprintf("changes.%s.%s", event.Tenant, event.Dataset)

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// Noop is the publisher used when no NATS URL is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *ChangeEvent) error { return nil }
