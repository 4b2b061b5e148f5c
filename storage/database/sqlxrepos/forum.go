package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/forum"
)

type forumRepository struct {
	db  *sqlx.DB
	bus *feed.Broker
}

var _ forum.Repository = (*forumRepository)(nil) // interface compliance check

func NewForumRepository(db *sqlx.DB, bus *feed.Broker) forum.Repository {
	return &forumRepository{db: db, bus: bus}
}

type forumPostRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	AuthorName  string    `db:"author_name"`
	AuthorEmail string    `db:"author_email"`
	Likes       int       `db:"likes"`
	Dislikes    int       `db:"dislikes"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r forumPostRow) post() forum.Post {
	return forum.Post(r)
}

type forumCommentRow struct {
	ID        string    `db:"id"`
	ParentID  string    `db:"parent_id"`
	UID       string    `db:"uid"`
	ByName    string    `db:"by_name"`
	ByEmail   string    `db:"by_email"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

func (r forumCommentRow) comment() forum.Comment {
	return forum.Comment{ID: r.ID, UID: r.UID, ByName: r.ByName, ByEmail: r.ByEmail, Body: r.Body, CreatedAt: r.CreatedAt}
}

func (repo *forumRepository) CreatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	query := `
		INSERT INTO forum_posts (id, title, body, author_name, author_email, likes, dislikes, created_at)
		VALUES (:id, :title, :body, :author_name, :author_email, :likes, :dislikes, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, forumPostRow(p)); err != nil {
		return forum.Post{}, errors.Wrap(err, "creating forum post")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: forum.Collection}, Doc: p})
	return p, nil
}

func (repo *forumRepository) GetPost(ctx context.Context, id string) (forum.Post, error) {
	var row forumPostRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM forum_posts WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return forum.Post{}, forum.ErrNotFound
	case err != nil:
		return forum.Post{}, errors.Wrap(err, "getting forum post")
	}
	return row.post(), nil
}

func (repo *forumRepository) QueryPosts(ctx context.Context) ([]forum.Post, error) {
	var rows []forumPostRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM forum_posts ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying forum posts")
	}
	posts := make([]forum.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.post())
	}
	return posts, nil
}

func (repo *forumRepository) DeletePost(ctx context.Context, id string) error {
	p, err := repo.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM forum_posts WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting forum post")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: forum.Collection}, Doc: p})
	return nil
}

// IncrementCounter applies a single relative UPDATE so concurrent votes never
// lose increments to a read-modify-write race.
func (repo *forumRepository) IncrementCounter(ctx context.Context, id, field string, delta int) (forum.Post, error) {
	if field != forum.CounterLikes && field != forum.CounterDislikes {
		return forum.Post{}, errors.Errorf("unknown counter field %q", field)
	}

	var row forumPostRow
	query := fmt.Sprintf(`UPDATE forum_posts SET %s = %s + $1 WHERE id = $2 RETURNING *`, field, field)
	err := repo.db.GetContext(ctx, &row, query, delta, id)
	switch {
	case err == sql.ErrNoRows:
		return forum.Post{}, forum.ErrNotFound
	case err != nil:
		return forum.Post{}, errors.Wrap(err, "incrementing counter")
	}

	p := row.post()
	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: forum.Collection}, Doc: p})
	return p, nil
}

func (repo *forumRepository) CreateComment(ctx context.Context, postID string, c forum.Comment) (forum.Comment, error) {
	query := `
		INSERT INTO forum_comments (id, parent_id, uid, by_name, by_email, body, created_at)
		VALUES (:id, :parent_id, :uid, :by_name, :by_email, :body, :created_at)`
	row := forumCommentRow{ID: c.ID, ParentID: postID, UID: c.UID, ByName: c.ByName, ByEmail: c.ByEmail, Body: c.Body, CreatedAt: c.CreatedAt}
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return forum.Comment{}, errors.Wrap(err, "creating forum comment")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: forum.CommentsCollection, Parent: postID}, Doc: c})
	return c, nil
}

func (repo *forumRepository) QueryComments(ctx context.Context, postID string) ([]forum.Comment, error) {
	var rows []forumCommentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM forum_comments WHERE parent_id = $1 ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, errors.Wrap(err, "querying forum comments")
	}
	comments := make([]forum.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.comment())
	}
	return comments, nil
}
