// Package broadcast implements event fan-out over WebSocket push connections.
//
// The Broadcaster resolves an event's audience from the routing table in
// internal/domain and enqueues the serialized event on each target connection.
// Per-connection write goroutines (Writer) drain those queues, so a slow or
// broken client never blocks publishing to the rest.
package broadcast
