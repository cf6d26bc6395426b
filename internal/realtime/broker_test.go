package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
)

func TestBrokerRoutesByCollection(t *testing.T) {
	broker := NewBroker()
	activities := broker.Subscribe(gateway.CollectionActivities, "")
	defer activities.Close()
	messages := broker.Subscribe(gateway.CollectionMessages, "")
	defer messages.Close()

	broker.Publish(gateway.Event{
		Collection: gateway.CollectionActivities,
		Activity:   &domain.Activity{ID: "a"},
	})

	evt := <-activities.Events()
	require.Equal(t, "a", evt.Activity.ID)

	select {
	case <-messages.Events():
		t.Fatal("message subscriber received an activity event")
	default:
	}
}

func TestBrokerFiltersMessagesByActivity(t *testing.T) {
	broker := NewBroker()
	room1 := broker.Subscribe(gateway.CollectionMessages, "act-1")
	defer room1.Close()
	room2 := broker.Subscribe(gateway.CollectionMessages, "act-2")
	defer room2.Close()
	all := broker.Subscribe(gateway.CollectionMessages, "")
	defer all.Close()

	broker.Publish(gateway.Event{
		Collection: gateway.CollectionMessages,
		Message:    &domain.Message{ID: "m1", ActivityID: "act-1"},
	})

	evt := <-room1.Events()
	require.Equal(t, "m1", evt.Message.ID)
	evt = <-all.Events()
	require.Equal(t, "m1", evt.Message.ID)

	select {
	case <-room2.Events():
		t.Fatal("filtered subscriber received another room's message")
	default:
	}
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe(gateway.CollectionActivities, "")
	defer sub.Close()

	for i := 0; i < subscriptionBuffer+10; i++ {
		broker.Publish(gateway.Event{
			Collection: gateway.CollectionActivities,
			Activity:   &domain.Activity{ID: "a"},
		})
	}

	require.Len(t, sub.events, subscriptionBuffer)
}

func TestSubscriptionCloseIdempotent(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe(gateway.CollectionActivities, "")

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, open := <-sub.Events()
	require.False(t, open)

	// Publishing after close must not panic.
	broker.Publish(gateway.Event{
		Collection: gateway.CollectionActivities,
		Activity:   &domain.Activity{ID: "a"},
	})
}
