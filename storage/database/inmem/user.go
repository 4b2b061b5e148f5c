package inmemdb

import (
	"context"
	"sort"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/user"
)

type userRepository struct {
	db  *userTable
	bus *feed.Broker
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB, bus *feed.Broker) user.Repository {
	return &userRepository{db: db.user, bus: bus}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}
	for _, usr := range repo.query() {
		if usr.Email == email && !excluded[usr.ID] {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	repo.db.table[usr.ID] = &usr
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: user.Collection}, Doc: usr})
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.RLock()
	users := repo.query()
	repo.db.RUnlock()

	if filter.Role != "" {
		var filtered []user.User
		for _, u := range users {
			if u.Role == filter.Role {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users != nil && filter.Approved != nil {
		var filtered []user.User
		for _, u := range users {
			if u.Approved == *filter.Approved {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users != nil && filter.Section != "" {
		var filtered []user.User
		for _, u := range users {
			if u.Section == filter.Section {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	if filter.OrderByPoints {
		sort.SliceStable(users, func(i, j int) bool {
			if users[i].StarPoints != users[j].StarPoints {
				return users[i].StarPoints > users[j].StarPoints
			}
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		})
	} else {
		sort.SliceStable(users, func(i, j int) bool {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		})
	}
	if filter.Limit > 0 && len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	orig, ok := repo.db.table[usr.ID]
	if !ok {
		repo.db.Unlock()
		return user.User{}, user.ErrNotFound
	}
	usr.StarPoints = orig.StarPoints // totals only move through the ledger
	repo.db.table[usr.ID] = &usr
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: user.Collection}, Doc: usr})
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	repo.db.Lock()
	usr, ok := repo.db.table[id]
	if !ok {
		repo.db.Unlock()
		return user.ErrNotFound
	}
	deleted := *usr
	delete(repo.db.table, id)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: user.Collection}, Doc: deleted})
	return nil
}
