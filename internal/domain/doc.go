// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (display.go, slideshow.go, feed.go, event.go)
// with shared types and cross-cutting interfaces. No implementation code - just contracts
// plus the pure functions (liveness classification, effective duration, event routing)
// that every other package must agree on. Prevents circular imports by keeping interfaces
// on the consumer side.
package domain
