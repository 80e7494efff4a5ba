// Package coordination fans events out across server instances through
// Redis pub/sub. A single-instance deployment runs without it; the relay
// is only wired when a Redis URL is configured.
package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pscheid92/signcast/internal/domain"
	"github.com/pscheid92/signcast/internal/metrics"
)

const eventsChannel = "signcast:events"

// envelope wraps a relayed event with the publishing instance's identity
// so each instance can skip its own messages. Assigned carries the
// assignment snapshot for events whose triggering mutation already cleared
// the live assignments.
type envelope struct {
	Instance uuid.UUID    `json:"instance"`
	Event    domain.Event `json:"event"`
	Assigned []string     `json:"assigned,omitempty"`
}

// EventRelay mirrors published events to sibling instances over Redis.
type EventRelay struct {
	redis    *redis.Client
	instance uuid.UUID
}

func NewEventRelay(client *redis.Client) *EventRelay {
	return &EventRelay{
		redis:    client,
		instance: uuid.New(),
	}
}

// Relay publishes the event for sibling instances to deliver locally.
func (r *EventRelay) Relay(ctx context.Context, evt domain.Event, assigned []string) error {
	payload, err := json.Marshal(envelope{Instance: r.instance, Event: evt, Assigned: assigned})
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}

	if err := r.redis.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish relay message: %w", err)
	}

	metrics.RelayMessages.WithLabelValues("published").Inc()
	return nil
}

// Start listens for relayed events and hands them to deliver. Messages
// published by this instance are skipped. Blocks until ctx is cancelled.
func (r *EventRelay) Start(ctx context.Context, deliver func(ctx context.Context, evt domain.Event, assigned []string) error) {
	pubsub := r.redis.Subscribe(ctx, eventsChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			r.handleMessage(ctx, msg.Payload, deliver)
		case <-ctx.Done():
			return
		}
	}
}

func (r *EventRelay) handleMessage(ctx context.Context, payload string, deliver func(ctx context.Context, evt domain.Event, assigned []string) error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("Invalid relay message", "error", err)
		return
	}

	if env.Instance == r.instance {
		metrics.RelayMessages.WithLabelValues("skipped").Inc()
		return
	}

	metrics.RelayMessages.WithLabelValues("received").Inc()
	if err := deliver(ctx, env.Event, env.Assigned); err != nil {
		slog.Warn("Failed to deliver relayed event",
			"type", env.Event.Type,
			"error", err)
	}
}
