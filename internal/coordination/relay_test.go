package coordination

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/signcast/internal/domain"
)

func TestHandleMessageDeliversForeignEvents(t *testing.T) {
	relay := &EventRelay{instance: uuid.New()}

	payload, err := json.Marshal(envelope{
		Instance: uuid.New(),
		Event: domain.Event{
			Type:    domain.EventDisplayConfigChanged,
			Display: "lobby",
		},
		Assigned: []string{"lobby", "cafeteria"},
	})
	require.NoError(t, err)

	var delivered []domain.Event
	var snapshot []string
	relay.handleMessage(context.Background(), string(payload), func(_ context.Context, evt domain.Event, assigned []string) error {
		delivered = append(delivered, evt)
		snapshot = assigned
		return nil
	})

	require.Len(t, delivered, 1)
	assert.Equal(t, domain.EventDisplayConfigChanged, delivered[0].Type)
	assert.Equal(t, "lobby", delivered[0].Display)
	assert.Equal(t, []string{"lobby", "cafeteria"}, snapshot)
}

func TestHandleMessageSkipsOwnInstance(t *testing.T) {
	relay := &EventRelay{instance: uuid.New()}

	payload, err := json.Marshal(envelope{
		Instance: relay.instance,
		Event:    domain.Event{Type: domain.EventSlideshowUpdated},
	})
	require.NoError(t, err)

	relay.handleMessage(context.Background(), string(payload), func(_ context.Context, _ domain.Event, _ []string) error {
		t.Fatal("must not deliver own messages")
		return nil
	})
}

func TestHandleMessageIgnoresMalformedPayload(t *testing.T) {
	relay := &EventRelay{instance: uuid.New()}

	relay.handleMessage(context.Background(), "{not json", func(_ context.Context, _ domain.Event, _ []string) error {
		t.Fatal("must not deliver malformed messages")
		return nil
	})
}
