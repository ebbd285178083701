package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/models"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPresenceService_WritePresence(t *testing.T) {
	userID := uuid.New()
	at := time.Now()
	var stored models.PresenceStatus
	profiles := &fakeProfileRepo{
		updatePresenceFn: func(_ context.Context, id uuid.UUID, status models.PresenceStatus, _ time.Time) error {
			stored = status
			return nil
		},
	}
	cache := &fakePresenceRepo{}
	svc := NewPresenceService(profiles, cache, zap.NewNop())

	// ACT
	err := svc.WritePresence(context.Background(), userID, models.StatusOffline, at)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, stored)
	cached, err := svc.GetPresence(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, cached.Status)
	assert.Equal(t, at, cached.LastSeen)
}

func TestPresenceService_CacheFailureIsNotFatal(t *testing.T) {
	cache := &fakePresenceRepo{
		setFn: func(context.Context, *models.Presence) error { return errors.New("redis down") },
	}
	svc := NewPresenceService(&fakeProfileRepo{}, cache, zap.NewNop())

	err := svc.WritePresence(context.Background(), uuid.New(), models.StatusOnline, time.Now())

	assert.NoError(t, err)
}

func TestPresenceService_ProfileFailureIsReturned(t *testing.T) {
	profiles := &fakeProfileRepo{
		updatePresenceFn: func(context.Context, uuid.UUID, models.PresenceStatus, time.Time) error {
			return repositories.ErrNotFound
		},
	}
	cache := &fakePresenceRepo{}
	svc := NewPresenceService(profiles, cache, zap.NewNop())

	err := svc.WritePresence(context.Background(), uuid.New(), models.StatusOnline, time.Now())

	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, cache.set)
}

func TestLinkService_ListLinks(t *testing.T) {
	me := uuid.New()
	peer := &models.Profile{ID: uuid.New(), Username: "peer"}
	connections := &fakeConnectionRepo{
		listLinkedFn: func(context.Context, uuid.UUID) ([]uuid.UUID, error) {
			return []uuid.UUID{peer.ID}, nil
		},
	}
	profiles := &fakeProfileRepo{
		listByIDsFn: func(_ context.Context, ids []uuid.UUID) ([]*models.Profile, error) {
			assert.Equal(t, []uuid.UUID{peer.ID}, ids)
			return []*models.Profile{peer}, nil
		},
	}
	svc := NewLinkService(profiles, connections, zap.NewNop())

	links, err := svc.ListLinks(context.Background(), me)

	require.NoError(t, err)
	assert.Equal(t, []*models.Profile{peer}, links)
}

func TestLinkService_ListLinksEmpty(t *testing.T) {
	svc := NewLinkService(&fakeProfileRepo{}, &fakeConnectionRepo{}, zap.NewNop())

	links, err := svc.ListLinks(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestLinkService_UnlinkNotifiesBothSides(t *testing.T) {
	me, peer := uuid.New(), uuid.New()
	var notes []*models.Notification
	connections := &fakeConnectionRepo{
		unlinkFn: func(_ context.Context, userID, peerID uuid.UUID, n []*models.Notification) error {
			assert.Equal(t, me, userID)
			assert.Equal(t, peer, peerID)
			notes = n
			return nil
		},
	}
	svc := NewLinkService(&fakeProfileRepo{}, connections, zap.NewNop())

	// ACT
	err := svc.Unlink(context.Background(), me, peer)

	// ASSERT
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, peer, notes[0].UserID)
	assert.Equal(t, me, notes[0].SenderID)
	assert.Equal(t, "has unlinked with you", notes[0].Content)
	assert.Equal(t, me, notes[1].UserID)
	assert.Equal(t, peer, notes[1].SenderID)
	assert.Equal(t, "You have unlinked with this user", notes[1].Content)
	for _, n := range notes {
		assert.Equal(t, models.NotificationConnectionRequest, n.Type)
	}
}

func TestLinkService_UnlinkErrors(t *testing.T) {
	me := uuid.New()
	notLinked := NewLinkService(&fakeProfileRepo{}, &fakeConnectionRepo{
		unlinkFn: func(context.Context, uuid.UUID, uuid.UUID, []*models.Notification) error {
			return repositories.ErrNotFound
		},
	}, zap.NewNop())
	plain := NewLinkService(&fakeProfileRepo{}, &fakeConnectionRepo{}, zap.NewNop())

	assert.ErrorIs(t, notLinked.Unlink(context.Background(), me, uuid.New()), ErrNotLinked)
	assert.ErrorIs(t, plain.Unlink(context.Background(), me, me), ErrInvalidInput)
}

func TestNotificationService_AcceptRequest(t *testing.T) {
	me, requester, notificationID := uuid.New(), uuid.New(), uuid.New()
	var note *models.Notification
	var markedRead uuid.UUID
	connections := &fakeConnectionRepo{
		acceptFn: func(_ context.Context, from, to uuid.UUID, n *models.Notification) error {
			assert.Equal(t, requester, from)
			assert.Equal(t, me, to)
			note = n
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		markReadFn: func(_ context.Context, id, userID uuid.UUID) error {
			assert.Equal(t, me, userID)
			markedRead = id
			return nil
		},
	}
	svc := NewNotificationService(notifications, connections, zap.NewNop())

	// ACT
	err := svc.RespondToRequest(context.Background(), me, notificationID, requester, true)

	// ASSERT
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, requester, note.UserID)
	assert.Equal(t, me, note.SenderID)
	assert.Equal(t, models.NotificationConnectionAccepted, note.Type)
	assert.Equal(t, "accepted your connection request", note.Content)
	assert.Equal(t, notificationID, markedRead)
}

func TestNotificationService_AcceptHandledRequestStillMarksRead(t *testing.T) {
	marked := false
	connections := &fakeConnectionRepo{
		acceptFn: func(context.Context, uuid.UUID, uuid.UUID, *models.Notification) error {
			return repositories.ErrNotFound
		},
	}
	notifications := &fakeNotificationRepo{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			marked = true
			return nil
		},
	}
	svc := NewNotificationService(notifications, connections, zap.NewNop())

	err := svc.RespondToRequest(context.Background(), uuid.New(), uuid.New(), uuid.New(), true)

	require.NoError(t, err)
	assert.True(t, marked)
}

func TestNotificationService_DeclineRequest(t *testing.T) {
	me, requester := uuid.New(), uuid.New()
	declined := false
	connections := &fakeConnectionRepo{
		declineFn: func(_ context.Context, from, to uuid.UUID, n *models.Notification) (bool, error) {
			assert.Equal(t, requester, from)
			assert.Equal(t, me, to)
			assert.Nil(t, n)
			declined = true
			return true, nil
		},
	}
	svc := NewNotificationService(&fakeNotificationRepo{}, connections, zap.NewNop())

	err := svc.RespondToRequest(context.Background(), me, uuid.New(), requester, false)

	require.NoError(t, err)
	assert.True(t, declined)
}

func TestNotificationService_RespondFailureSkipsMarkRead(t *testing.T) {
	marked := false
	connections := &fakeConnectionRepo{
		declineFn: func(context.Context, uuid.UUID, uuid.UUID, *models.Notification) (bool, error) {
			return false, errors.New("db down")
		},
	}
	notifications := &fakeNotificationRepo{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			marked = true
			return nil
		},
	}
	svc := NewNotificationService(notifications, connections, zap.NewNop())

	err := svc.RespondToRequest(context.Background(), uuid.New(), uuid.New(), uuid.New(), false)

	require.Error(t, err)
	assert.False(t, marked)
}

func TestNotificationService_MissingNotification(t *testing.T) {
	notifications := &fakeNotificationRepo{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID) error { return repositories.ErrNotFound },
		deleteFn:   func(context.Context, uuid.UUID, uuid.UUID) error { return repositories.ErrNotFound },
	}
	svc := NewNotificationService(notifications, &fakeConnectionRepo{}, zap.NewNop())

	assert.ErrorIs(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()), ErrNotificationNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), uuid.New(), uuid.New()), ErrNotificationNotFound)
}

func TestMessageService_Send(t *testing.T) {
	me, peer := uuid.New(), uuid.New()
	var note *models.Notification
	messages := &fakeMessageRepo{
		sendFn: func(_ context.Context, msg *models.Message, n *models.Notification) error {
			msg.ID = uuid.New()
			note = n
			return nil
		},
	}
	svc := NewMessageService(messages)

	msg, err := svc.Send(context.Background(), me, peer, "  hello  ")

	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	require.NotNil(t, note)
	assert.Equal(t, peer, note.UserID)
	assert.Equal(t, me, note.SenderID)
	assert.Equal(t, models.NotificationMessage, note.Type)
	assert.Equal(t, "sent you a message", note.Content)
}

func TestMessageService_SendRejectsInvalid(t *testing.T) {
	me := uuid.New()
	svc := NewMessageService(&fakeMessageRepo{})

	_, err := svc.Send(context.Background(), me, uuid.New(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Send(context.Background(), me, me, "hi")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMessageService_ListConversationNeverNil(t *testing.T) {
	svc := NewMessageService(&fakeMessageRepo{})

	messages, err := svc.ListConversation(context.Background(), uuid.New(), uuid.New())

	require.NoError(t, err)
	assert.NotNil(t, messages)
}
