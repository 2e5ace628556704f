package service

import (
	"context"
	"testing"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_Inbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.notifications.Enqueue(ctx, &domain.Notification{UserID: ownerActor.UserID, Type: domain.NotificationObituaryPublished})
		require.NoError(t, err)
	}
	_, err := f.notifications.Enqueue(ctx, &domain.Notification{UserID: strangerActor.UserID, Type: domain.NotificationObituaryPublished})
	require.NoError(t, err)

	list, err := f.notifSvc.GetList(ctx, ownerActor, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	assert.Equal(t, int64(3), list.UnreadCount)
	require.Len(t, list.Items, 2)

	err = f.notifSvc.MarkAsRead(ctx, strangerActor, list.Items[0].ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	require.NoError(t, f.notifSvc.MarkAsRead(ctx, ownerActor, list.Items[0].ID))
	unread, err := f.notifSvc.GetUnreadCount(ctx, ownerActor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, f.notifSvc.MarkAllAsRead(ctx, ownerActor))
	unread, _ = f.notifSvc.GetUnreadCount(ctx, ownerActor)
	assert.Equal(t, int64(0), unread)

	// other inboxes are untouched
	unread, _ = f.notifSvc.GetUnreadCount(ctx, strangerActor)
	assert.Equal(t, int64(1), unread)

	assert.ErrorIs(t, f.notifSvc.MarkAsRead(ctx, ownerActor, 999), ErrNotificationNotFound)
	_, err = f.notifSvc.GetList(ctx, domain.Actor{}, 1, 20)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
