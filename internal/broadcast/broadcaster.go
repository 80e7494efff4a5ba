package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/signcast/internal/domain"
	"github.com/pscheid92/signcast/internal/metrics"
	"github.com/pscheid92/signcast/internal/registry"
)

// AssignmentResolver answers which display identities currently reference a
// slideshow. Satisfied by the display repository.
type AssignmentResolver interface {
	NamesForSlideshow(ctx context.Context, slideshowID int64) ([]string, error)
}

// Relay forwards events to other server processes. assigned carries a
// pre-resolved assignment snapshot when the triggering mutation already
// cleared the live assignments. Optional; nil means single-process
// delivery only.
type Relay interface {
	Relay(ctx context.Context, evt domain.Event, assigned []string) error
}

// Broadcaster routes change events to the matching subset of registered
// connections. Routing is resolved through the table in internal/domain;
// this is the only code path that consults it.
type Broadcaster struct {
	registry *registry.Registry
	resolver AssignmentResolver
	clock    clockwork.Clock
	relay    Relay
}

func New(reg *registry.Registry, resolver AssignmentResolver, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{
		registry: reg,
		resolver: resolver,
		clock:    clock,
	}
}

// SetRelay attaches a cross-process relay. Must be called before the
// server starts accepting connections.
func (b *Broadcaster) SetRelay(r Relay) { b.relay = r }

// Publish delivers evt to every local connection its route selects, then
// hands it to the relay (if any) for other processes. Delivery to each
// connection is an enqueue, never a blocking write, so callers do not wait
// on slow clients. A failure on one connection never aborts the rest.
func (b *Broadcaster) Publish(ctx context.Context, evt domain.Event) error {
	return b.publish(ctx, evt, nil)
}

// PublishWithAssignments publishes evt against a pre-resolved assignment
// snapshot instead of the live resolver. Needed when the triggering
// mutation has already cleared the assignments, as a slideshow deletion
// does.
func (b *Broadcaster) PublishWithAssignments(ctx context.Context, evt domain.Event, assigned []string) error {
	return b.publish(ctx, evt, assigned)
}

func (b *Broadcaster) publish(ctx context.Context, evt domain.Event, assigned []string) error {
	if err := b.DeliverLocal(ctx, evt, assigned); err != nil {
		return err
	}

	route, _ := domain.RouteFor(evt.Type)
	if b.relay != nil && !route.OriginOnly {
		if err := b.relay.Relay(ctx, evt, assigned); err != nil {
			// Local delivery already succeeded; a relay outage degrades to
			// single-process behavior.
			slog.Warn("Failed to relay event", "type", evt.Type, "error", err)
		}
	}
	return nil
}

// DeliverLocal routes evt to connections registered in this process. Also
// the entry point for events arriving from the relay. A non-nil assigned
// slice overrides the resolver for assignment-routed events.
func (b *Broadcaster) DeliverLocal(ctx context.Context, evt domain.Event, assigned []string) error {
	targets, err := b.targets(ctx, evt, assigned)
	if err != nil {
		return err
	}

	metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	for _, conn := range targets {
		if conn.Sender.TrySend(data) {
			conn.MarkSent(b.clock.Now())
			metrics.EventsDelivered.WithLabelValues(string(evt.Type)).Inc()
			continue
		}

		// Buffer full or writer already stopped: the client is either slow
		// or gone. Evict it; remaining targets are unaffected.
		slog.Warn("Evicting unresponsive push connection",
			"connection_id", conn.ID.String(),
			"scope", conn.Scope,
			"display", conn.Display,
		)
		metrics.SlowClientsEvicted.Inc()
		b.registry.Unregister(conn.ID)
		conn.Sender.Stop()
	}

	return nil
}

// targets resolves the routing table row for evt into concrete
// connections. Exactly one routing decision is made here, per event type.
func (b *Broadcaster) targets(ctx context.Context, evt domain.Event, assigned []string) ([]*registry.Connection, error) {
	route, err := domain.RouteFor(evt.Type)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", evt.Type, err)
	}

	if route.OriginOnly {
		if evt.Origin == uuid.Nil {
			return nil, fmt.Errorf("event %q requires an originating connection", evt.Type)
		}
		conn, ok := b.registry.Get(evt.Origin)
		if !ok {
			// Origin disconnected between request and publish.
			return nil, nil
		}
		return []*registry.Connection{conn}, nil
	}

	seen := make(map[uuid.UUID]struct{})
	var targets []*registry.Connection
	add := func(conns []*registry.Connection) {
		for _, c := range conns {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			targets = append(targets, c)
		}
	}

	if route.AllConsoles {
		add(b.registry.List(registry.Filter{Scope: registry.ScopeConsole}))
	}

	if route.NamedDisplay {
		if evt.Display == "" {
			return nil, fmt.Errorf("event %q requires a display identity", evt.Type)
		}
		add(b.registry.List(registry.Filter{Display: evt.Display}))
	}

	if route.AssignedDisplays {
		if evt.Slideshow == nil {
			return nil, fmt.Errorf("event %q requires a slideshow reference", evt.Type)
		}
		names := assigned
		if names == nil {
			var err error
			names, err = b.resolver.NamesForSlideshow(ctx, evt.Slideshow.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve assigned displays: %w", err)
			}
		}
		for _, name := range names {
			add(b.registry.List(registry.Filter{Display: name}))
		}
	}

	return targets, nil
}
