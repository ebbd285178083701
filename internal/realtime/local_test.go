package realtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_FilterAndTable(t *testing.T) {
	bus := NewLocal()
	ctx := context.Background()
	self := uuid.New()
	other := uuid.New()

	var got []ChangeEvent
	sub, err := bus.Subscribe(ctx, TableProfiles, ExceptUser(self), func(ev ChangeEvent) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	defer sub.Close()

	// ACT: one event for self, one for other, one on another table
	require.NoError(t, bus.Publish(ctx, ChangeEvent{Table: TableProfiles, Type: EventUpdate, UserID: self}))
	require.NoError(t, bus.Publish(ctx, ChangeEvent{Table: TableProfiles, Type: EventUpdate, UserID: other}))
	require.NoError(t, bus.Publish(ctx, ChangeEvent{Table: TableConnections, Type: EventInsert, UserID: other}))

	// ASSERT: only the other user's profile change is delivered
	require.Len(t, got, 1)
	assert.Equal(t, other, got[0].UserID)
}

func TestLocal_CloseStopsDelivery(t *testing.T) {
	bus := NewLocal()
	ctx := context.Background()
	user := uuid.New()

	count := 0
	sub, err := bus.Subscribe(ctx, TableNotifications, ForUser(user), func(ChangeEvent) { count++ })
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers())

	require.NoError(t, bus.Publish(ctx, ChangeEvent{Table: TableNotifications, UserID: user}))
	require.NoError(t, sub.Close())
	require.NoError(t, bus.Publish(ctx, ChangeEvent{Table: TableNotifications, UserID: user}))

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.Subscribers())
}
