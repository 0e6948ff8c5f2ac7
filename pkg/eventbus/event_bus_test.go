package eventbus_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/pkg/eventbus"
)

type roleApproved struct{ Name string }
type roleRejected struct{ Name string }

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := eventbus.NewEventPublisher(logrus.New())

	var approved []string
	bus.Subscribe(func(e roleApproved) { approved = append(approved, e.Name) })
	bus.Subscribe(func(e roleRejected) { t.Fatal("wrong handler invoked") })

	bus.Publish(roleApproved{Name: "auditor"})
	require.Equal(t, []string{"auditor"}, approved)
}

func TestUnsubscribe(t *testing.T) {
	bus := eventbus.NewEventPublisher(logrus.New())

	calls := 0
	handler := func(e roleApproved) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Publish(roleApproved{})
	bus.Unsubscribe(handler)
	require.Zero(t, bus.SubscribersCount())

	bus.Publish(roleApproved{})
	require.Equal(t, 1, calls)
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := eventbus.NewEventPublisher(logrus.New())

	delivered := false
	bus.Subscribe(func(e roleApproved) { panic("boom") })
	bus.Subscribe(func(e roleApproved) { delivered = true })

	require.NotPanics(t, func() { bus.Publish(roleApproved{}) })
	require.True(t, delivered)
}
