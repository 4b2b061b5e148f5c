package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/user"
)

type userRepository struct {
	db  *sqlx.DB
	bus *feed.Broker
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB, bus *feed.Broker) user.Repository {
	return &userRepository{db: db, bus: bus}
}

// userRow mirrors the "users" table; core models stay free of db tags.
type userRow struct {
	ID               string    `db:"id"`
	FullName         string    `db:"full_name"`
	Email            string    `db:"email"`
	Role             string    `db:"role"`
	Approved         bool      `db:"approved"`
	ApprovedAt       null.Time `db:"approved_at"`
	LRN              string    `db:"lrn"`
	Section          string    `db:"section"`
	GradeLevel       string    `db:"grade_level"`
	StarPoints       int       `db:"star_points"`
	GuidelinesAgreed bool      `db:"guidelines_agreed"`
	PasswordHash     []byte    `db:"password_hash"`
	CreatedAt        time.Time `db:"created_at"`
	LastLogin        null.Time `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:               r.ID,
		FullName:         r.FullName,
		Email:            r.Email,
		Role:             r.Role,
		Approved:         r.Approved,
		ApprovedAt:       r.ApprovedAt,
		LRN:              r.LRN,
		Section:          r.Section,
		GradeLevel:       r.GradeLevel,
		StarPoints:       r.StarPoints,
		GuidelinesAgreed: r.GuidelinesAgreed,
		PasswordHash:     r.PasswordHash,
		CreatedAt:        r.CreatedAt,
		LastLogin:        r.LastLogin,
	}
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:               usr.ID,
		FullName:         usr.FullName,
		Email:            usr.Email,
		Role:             usr.Role,
		Approved:         usr.Approved,
		ApprovedAt:       usr.ApprovedAt,
		LRN:              usr.LRN,
		Section:          usr.Section,
		GradeLevel:       usr.GradeLevel,
		StarPoints:       usr.StarPoints,
		GuidelinesAgreed: usr.GuidelinesAgreed,
		PasswordHash:     usr.PasswordHash,
		CreatedAt:        usr.CreatedAt,
		LastLogin:        usr.LastLogin,
	}
}

const userColumns = `id, full_name, email, role, approved, approved_at, lrn, section,
	grade_level, star_points, guidelines_agreed, password_hash, created_at, last_login`

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT COUNT(*) FROM users WHERE email = $1`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q, inArgs, err := sqlx.In(`SELECT COUNT(*) FROM users WHERE email = ? AND id NOT IN (?)`, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query = repo.db.Rebind(q)
		args = inArgs
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :full_name, :email, :role, :approved, :approved_at, :lrn, :section,
			:grade_level, :star_points, :guidelines_agreed, :password_hash, :created_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, query, newUserRow(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: user.Collection}, Doc: usr})
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return user.User{}, user.ErrNotFound
	case err != nil:
		return user.User{}, errors.Wrap(err, "getting user by id")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	switch {
	case err == sql.ErrNoRows:
		return user.User{}, user.ErrNotFound
	case err != nil:
		return user.User{}, errors.Wrap(err, "getting user by email")
	}
	return row.user(), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []interface{}

	if filter.Role != "" {
		args = append(args, filter.Role)
		query += ` AND role = ?`
	}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		query += ` AND approved = ?`
	}
	if filter.Section != "" {
		args = append(args, filter.Section)
		query += ` AND section = ?`
	}
	if filter.OrderByPoints {
		query += ` ORDER BY star_points DESC, created_at ASC`
	} else {
		query += ` ORDER BY created_at DESC`
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT ?`
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
		UPDATE users SET full_name = :full_name, email = :email, role = :role,
			approved = :approved, approved_at = :approved_at, lrn = :lrn, section = :section,
			grade_level = :grade_level, guidelines_agreed = :guidelines_agreed,
			password_hash = :password_hash, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, newUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}

	// re-read: star_points may have moved underneath via IncrementStarPoints
	usr, err = repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}
	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: user.Collection}, Doc: usr})
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	usr, err := repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: user.Collection}, Doc: usr})
	return nil
}
