package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/notification"
)

type notificationRepository struct {
	db  *sqlx.DB
	bus *feed.Broker
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB, bus *feed.Broker) notification.Repository {
	return &notificationRepository{db: db, bus: bus}
}

type notificationRow struct {
	ID        string    `db:"id"`
	Recipient string    `db:"recipient"`
	Message   string    `db:"message"`
	Kind      string    `db:"kind"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) notification() notification.Notification {
	return notification.Notification(r)
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	query := `
		INSERT INTO notifications (id, recipient, message, kind, read, created_at)
		VALUES (:id, :recipient, :message, :kind, :read, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, notificationRow(n)); err != nil {
		return notification.Notification{}, errors.Wrap(err, "creating notification")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: notification.Collection}, Doc: n})
	return n, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM notifications WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return notification.Notification{}, notification.ErrNotFound
	case err != nil:
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.notification(), nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, recipient string) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM notifications WHERE recipient = $1 ORDER BY created_at DESC`, recipient)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.notification())
	}
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	query := `UPDATE notifications SET message = :message, kind = :kind, read = :read WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, notificationRow(n))
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: notification.Collection}, Doc: n})
	return n, nil
}

func (repo *notificationRepository) DeleteNotification(ctx context.Context, id string) error {
	n, err := repo.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: notification.Collection}, Doc: n})
	return nil
}
