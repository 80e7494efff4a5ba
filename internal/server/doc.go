// Package server exposes the HTTP and websocket surface: push streams for
// consoles and displays, the management API that publishes change events,
// liveness ingestion, the feed cache endpoints, and observability routes.
package server
