package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/user"
)

type pointsRepository struct {
	db   *sqlx.DB
	bus  *feed.Broker
	urep user.Repository
}

var _ points.Repository = (*pointsRepository)(nil) // interface compliance check

func NewPointsRepository(db *sqlx.DB, bus *feed.Broker, urep user.Repository) points.Repository {
	return &pointsRepository{db: db, bus: bus, urep: urep}
}

// IncrementStarPoints moves the total with one relative UPDATE so concurrent
// awards always sum.
func (repo *pointsRepository) IncrementStarPoints(ctx context.Context, uid string, delta int) (user.User, error) {
	var total int
	err := repo.db.GetContext(ctx, &total,
		`UPDATE users SET star_points = star_points + $1 WHERE id = $2 RETURNING star_points`, delta, uid)
	switch {
	case err == sql.ErrNoRows:
		return user.User{}, user.ErrNotFound
	case err != nil:
		return user.User{}, errors.Wrap(err, "incrementing star points")
	}

	usr, err := repo.urep.GetUserByID(ctx, uid)
	if err != nil {
		return user.User{}, err
	}
	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: user.Collection}, Doc: usr})
	return usr, nil
}

func (repo *pointsRepository) CreateEntry(ctx context.Context, e points.Entry) (points.Entry, error) {
	query := `
		INSERT INTO point_entries (id, uid, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, query, e.ID, e.UID, e.Amount, e.Reason, e.CreatedAt); err != nil {
		return points.Entry{}, errors.Wrap(err, "creating point entry")
	}
	return e, nil
}

type entryRow struct {
	ID        string    `db:"id"`
	UID       string    `db:"uid"`
	Amount    int       `db:"amount"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo *pointsRepository) QueryEntries(ctx context.Context, uid string) ([]points.Entry, error) {
	var rows []entryRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM point_entries WHERE uid = $1 ORDER BY id DESC`, uid)
	if err != nil {
		return nil, errors.Wrap(err, "querying point entries")
	}
	entries := make([]points.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, points.Entry(row))
	}
	return entries, nil
}
