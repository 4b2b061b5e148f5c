package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/user"
)

const approvedTeachersKey = "approved_teachers"

// configRepository stores portal-wide settings as JSON values keyed by name.
type configRepository struct {
	db *sqlx.DB
}

var _ user.ConfigRepository = (*configRepository)(nil)

func NewConfigRepository(db *sqlx.DB) user.ConfigRepository {
	return &configRepository{db: db}
}

func (repo *configRepository) GetApprovedTeachers(ctx context.Context) ([]string, error) {
	var raw []byte
	err := repo.db.GetContext(ctx, &raw, `SELECT value FROM app_config WHERE key = $1`, approvedTeachersKey)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "getting approved teachers")
	}

	var emails []string
	if err = json.Unmarshal(raw, &emails); err != nil {
		return nil, errors.Wrap(err, "decoding approved teachers")
	}
	return emails, nil
}

func (repo *configRepository) SetApprovedTeachers(ctx context.Context, emails []string) error {
	raw, err := json.Marshal(emails)
	if err != nil {
		return errors.Wrap(err, "encoding approved teachers")
	}
	query := `
		INSERT INTO app_config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err = repo.db.ExecContext(ctx, query, approvedTeachersKey, raw); err != nil {
		return errors.Wrap(err, "setting approved teachers")
	}
	return nil
}
