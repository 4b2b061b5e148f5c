package inmemdb

import (
	"context"
	"sort"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/notification"
)

type notificationRepository struct {
	db  *notificationTable
	bus *feed.Broker
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB, bus *feed.Broker) notification.Repository {
	return &notificationRepository{db: db.notification, bus: bus}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	repo.db.table[n.ID] = &n
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: notification.Collection}, Doc: n})
	return n, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, recipient string) ([]notification.Notification, error) {
	repo.db.RLock()
	var notifs []notification.Notification
	for _, n := range repo.db.table {
		if n.Recipient == recipient {
			notifs = append(notifs, *n)
		}
	}
	repo.db.RUnlock()

	sort.SliceStable(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	if _, ok := repo.db.table[n.ID]; !ok {
		repo.db.Unlock()
		return notification.Notification{}, notification.ErrNotFound
	}
	repo.db.table[n.ID] = &n
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: notification.Collection}, Doc: n})
	return n, nil
}

func (repo *notificationRepository) DeleteNotification(ctx context.Context, id string) error {
	repo.db.Lock()
	n, ok := repo.db.table[id]
	if !ok {
		repo.db.Unlock()
		return notification.ErrNotFound
	}
	deleted := *n
	delete(repo.db.table, id)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: notification.Collection}, Doc: deleted})
	return nil
}
