package inmemdb

import (
	"context"

	"github.com/arkibo/backend/core/user"
)

type configRepository struct {
	db *configTable
}

var _ user.ConfigRepository = (*configRepository)(nil)

func NewConfigRepository(db *DB) user.ConfigRepository {
	return &configRepository{db: db.config}
}

func (repo *configRepository) GetApprovedTeachers(ctx context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	emails := make([]string, len(repo.db.approvedTeachers))
	copy(emails, repo.db.approvedTeachers)
	return emails, nil
}

func (repo *configRepository) SetApprovedTeachers(ctx context.Context, emails []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.approvedTeachers = make([]string, len(emails))
	copy(repo.db.approvedTeachers, emails)
	return nil
}
