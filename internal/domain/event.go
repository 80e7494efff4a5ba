package domain

import "github.com/google/uuid"

// EventType identifies a change notification pushed to open connections.
type EventType string

const (
	EventDisplayConfigChanged     EventType = "display.configuration_changed"
	EventDisplayAssignmentChanged EventType = "display.assignment_changed"
	EventSlideshowUpdated         EventType = "slideshow.updated"
	EventSlideshowDeleted         EventType = "slideshow.deleted"
	EventSystemTest               EventType = "system.test"
)

// SlideshowRef identifies a slideshow in an event payload. The name travels
// with the event so a receiving UI can render a message without a follow-up
// lookup.
type SlideshowRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Event is a routed change notification. Display is the identity of the
// affected display for display-scoped events. Origin is the connection
// that triggered the event and is only meaningful for origin-routed types;
// it is never serialized.
type Event struct {
	Type      EventType     `json:"type"`
	Display   string        `json:"display,omitempty"`
	Slideshow *SlideshowRef `json:"slideshow,omitempty"`
	Message   string        `json:"message,omitempty"`
	Origin    uuid.UUID     `json:"-"`
}

// Route describes which connections an event type is delivered to. Exactly
// one route exists per event type; routing is decided here, once, and never
// re-derived at call sites.
type Route struct {
	// AllConsoles delivers to every console connection.
	AllConsoles bool
	// NamedDisplay delivers to the one display connection matching
	// Event.Display.
	NamedDisplay bool
	// AssignedDisplays delivers to every display connection whose display
	// currently references Event.Slideshow.
	AssignedDisplays bool
	// OriginOnly delivers solely to the connection that triggered the
	// event. Origin-routed events are process-local and never relayed.
	OriginOnly bool
}

// routes is the exhaustive routing table. Every EventType constant must
// have a row; RouteFor fails loudly for anything else.
var routes = map[EventType]Route{
	EventDisplayConfigChanged:     {NamedDisplay: true},
	EventDisplayAssignmentChanged: {NamedDisplay: true, AllConsoles: true},
	EventSlideshowUpdated:         {AllConsoles: true, AssignedDisplays: true},
	EventSlideshowDeleted:         {AllConsoles: true, AssignedDisplays: true},
	EventSystemTest:               {OriginOnly: true},
}

// RouteFor returns the routing rule for an event type.
func RouteFor(t EventType) (Route, error) {
	route, ok := routes[t]
	if !ok {
		return Route{}, ErrUnknownEventType
	}
	return route, nil
}

// EventTypes returns every routable event type. Used by tests to verify
// the routing table is exhaustive.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(routes))
	for t := range routes {
		types = append(types, t)
	}
	return types
}
