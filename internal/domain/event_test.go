package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteForKnownTypes(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      Route
	}{
		{EventDisplayConfigChanged, Route{NamedDisplay: true}},
		{EventDisplayAssignmentChanged, Route{NamedDisplay: true, AllConsoles: true}},
		{EventSlideshowUpdated, Route{AllConsoles: true, AssignedDisplays: true}},
		{EventSlideshowDeleted, Route{AllConsoles: true, AssignedDisplays: true}},
		{EventSystemTest, Route{OriginOnly: true}},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			route, err := RouteFor(tt.eventType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, route)
		})
	}
}

func TestRouteForUnknownType(t *testing.T) {
	_, err := RouteFor(EventType("display.exploded"))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestRoutingTableComplete(t *testing.T) {
	// Every declared event type constant must have a routing row.
	declared := []EventType{
		EventDisplayConfigChanged,
		EventDisplayAssignmentChanged,
		EventSlideshowUpdated,
		EventSlideshowDeleted,
		EventSystemTest,
	}

	assert.Len(t, EventTypes(), len(declared))
	for _, et := range declared {
		_, err := RouteFor(et)
		assert.NoError(t, err, "event type %q has no route", et)
	}
}

func TestRouteTargetsAreMutuallyCoherent(t *testing.T) {
	// An origin-only route must not also fan out; a display-scoped route
	// must name exactly one audience resolution strategy for displays.
	for _, et := range EventTypes() {
		route, err := RouteFor(et)
		require.NoError(t, err)

		if route.OriginOnly {
			assert.False(t, route.AllConsoles, "%s: origin-only routes cannot fan out", et)
			assert.False(t, route.NamedDisplay, "%s: origin-only routes cannot fan out", et)
			assert.False(t, route.AssignedDisplays, "%s: origin-only routes cannot fan out", et)
		}
		assert.False(t, route.NamedDisplay && route.AssignedDisplays,
			"%s: a route resolves displays by name or by assignment, never both", et)
	}
}
