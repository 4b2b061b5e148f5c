package inmemdb

import (
	"context"
	"sort"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/user"
)

type pointsRepository struct {
	users *userTable
	db    *pointsTable
	bus   *feed.Broker
}

var _ points.Repository = (*pointsRepository)(nil) // interface compliance check

func NewPointsRepository(db *DB, bus *feed.Broker) points.Repository {
	return &pointsRepository{users: db.user, db: db.points, bus: bus}
}

func (repo *pointsRepository) IncrementStarPoints(ctx context.Context, uid string, delta int) (user.User, error) {
	repo.users.Lock()
	usr, ok := repo.users.table[uid]
	if !ok {
		repo.users.Unlock()
		return user.User{}, user.ErrNotFound
	}
	usr.StarPoints += delta
	updated := *usr
	repo.users.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: user.Collection}, Doc: updated})
	return updated, nil
}

func (repo *pointsRepository) CreateEntry(ctx context.Context, e points.Entry) (points.Entry, error) {
	repo.db.Lock()
	repo.db.entries = append(repo.db.entries, e)
	repo.db.Unlock()
	return e, nil
}

func (repo *pointsRepository) QueryEntries(ctx context.Context, uid string) ([]points.Entry, error) {
	repo.db.RLock()
	var entries []points.Entry
	for _, e := range repo.db.entries {
		if e.UID == uid {
			entries = append(entries, e)
		}
	}
	repo.db.RUnlock()

	// ULIDs sort lexicographically by creation time
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}
