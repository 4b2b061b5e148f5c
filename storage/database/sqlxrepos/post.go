package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/post"
)

type postRepository struct {
	db  *sqlx.DB
	bus *feed.Broker
}

var _ post.Repository = (*postRepository)(nil) // interface compliance check

func NewPostRepository(db *sqlx.DB, bus *feed.Broker) post.Repository {
	return &postRepository{db: db, bus: bus}
}

type announcementRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	AuthorName  string    `db:"author_name"`
	AuthorEmail string    `db:"author_email"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r announcementRow) announcement() post.Announcement {
	return post.Announcement(r)
}

type postCommentRow struct {
	ID        string    `db:"id"`
	ParentID  string    `db:"parent_id"`
	UID       string    `db:"uid"`
	ByName    string    `db:"by_name"`
	ByEmail   string    `db:"by_email"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

func (r postCommentRow) comment() post.Comment {
	return post.Comment{ID: r.ID, UID: r.UID, ByName: r.ByName, ByEmail: r.ByEmail, Body: r.Body, CreatedAt: r.CreatedAt}
}

func (r postCommentRow) reply() post.Reply {
	return post.Reply{ID: r.ID, UID: r.UID, ByName: r.ByName, ByEmail: r.ByEmail, Body: r.Body, CreatedAt: r.CreatedAt}
}

type reactionRow struct {
	PostID string    `db:"post_id"`
	UserID string    `db:"user_id"`
	Type   string    `db:"type"`
	At     time.Time `db:"at"`
}

func (r reactionRow) reaction() post.Reaction {
	return post.Reaction{By: r.UserID, Type: r.Type, At: r.At}
}

// announcements

func (repo *postRepository) CreateAnnouncement(ctx context.Context, ann post.Announcement) (post.Announcement, error) {
	query := `
		INSERT INTO announcements (id, title, body, author_name, author_email, created_at)
		VALUES (:id, :title, :body, :author_name, :author_email, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, announcementRow(ann)); err != nil {
		return post.Announcement{}, errors.Wrap(err, "creating announcement")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: post.Collection}, Doc: ann})
	return ann, nil
}

func (repo *postRepository) GetAnnouncement(ctx context.Context, id string) (post.Announcement, error) {
	var row announcementRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM announcements WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return post.Announcement{}, post.ErrNotFound
	case err != nil:
		return post.Announcement{}, errors.Wrap(err, "getting announcement")
	}
	return row.announcement(), nil
}

func (repo *postRepository) QueryAnnouncements(ctx context.Context) ([]post.Announcement, error) {
	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM announcements ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	anns := make([]post.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, row.announcement())
	}
	return anns, nil
}

func (repo *postRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	ann, err := repo.GetAnnouncement(ctx, id)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.Collection}, Doc: ann})
	return nil
}

// comments

func (repo *postRepository) CreateComment(ctx context.Context, postID string, c post.Comment) (post.Comment, error) {
	query := `
		INSERT INTO post_comments (id, parent_id, uid, by_name, by_email, body, created_at)
		VALUES (:id, :parent_id, :uid, :by_name, :by_email, :body, :created_at)`
	row := postCommentRow{ID: c.ID, ParentID: postID, UID: c.UID, ByName: c.ByName, ByEmail: c.ByEmail, Body: c.Body, CreatedAt: c.CreatedAt}
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return post.Comment{}, errors.Wrap(err, "creating comment")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: post.CommentsCollection, Parent: postID}, Doc: c})
	return c, nil
}

func (repo *postRepository) GetComment(ctx context.Context, postID, id string) (post.Comment, error) {
	var row postCommentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM post_comments WHERE parent_id = $1 AND id = $2`, postID, id)
	switch {
	case err == sql.ErrNoRows:
		return post.Comment{}, post.ErrNotFound
	case err != nil:
		return post.Comment{}, errors.Wrap(err, "getting comment")
	}
	return row.comment(), nil
}

func (repo *postRepository) QueryComments(ctx context.Context, postID string) ([]post.Comment, error) {
	var rows []postCommentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM post_comments WHERE parent_id = $1 ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]post.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.comment())
	}
	return comments, nil
}

func (repo *postRepository) DeleteComment(ctx context.Context, postID, id string) error {
	c, err := repo.GetComment(ctx, postID, id)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM post_comments WHERE parent_id = $1 AND id = $2`, postID, id); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.CommentsCollection, Parent: postID}, Doc: c})
	return nil
}

// replies

func (repo *postRepository) CreateReply(ctx context.Context, commentID string, r post.Reply) (post.Reply, error) {
	query := `
		INSERT INTO post_replies (id, parent_id, uid, by_name, by_email, body, created_at)
		VALUES (:id, :parent_id, :uid, :by_name, :by_email, :body, :created_at)`
	row := postCommentRow{ID: r.ID, ParentID: commentID, UID: r.UID, ByName: r.ByName, ByEmail: r.ByEmail, Body: r.Body, CreatedAt: r.CreatedAt}
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return post.Reply{}, errors.Wrap(err, "creating reply")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: post.RepliesCollection, Parent: commentID}, Doc: r})
	return r, nil
}

func (repo *postRepository) GetReply(ctx context.Context, commentID, id string) (post.Reply, error) {
	var row postCommentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM post_replies WHERE parent_id = $1 AND id = $2`, commentID, id)
	switch {
	case err == sql.ErrNoRows:
		return post.Reply{}, post.ErrNotFound
	case err != nil:
		return post.Reply{}, errors.Wrap(err, "getting reply")
	}
	return row.reply(), nil
}

func (repo *postRepository) QueryReplies(ctx context.Context, commentID string) ([]post.Reply, error) {
	var rows []postCommentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM post_replies WHERE parent_id = $1 ORDER BY created_at ASC`, commentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying replies")
	}
	replies := make([]post.Reply, 0, len(rows))
	for _, row := range rows {
		replies = append(replies, row.reply())
	}
	return replies, nil
}

func (repo *postRepository) DeleteReply(ctx context.Context, commentID, id string) error {
	r, err := repo.GetReply(ctx, commentID, id)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM post_replies WHERE parent_id = $1 AND id = $2`, commentID, id); err != nil {
		return errors.Wrap(err, "deleting reply")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.RepliesCollection, Parent: commentID}, Doc: r})
	return nil
}

// reactions

func (repo *postRepository) GetReaction(ctx context.Context, postID, userID string) (post.Reaction, error) {
	var row reactionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM post_reactions WHERE post_id = $1 AND user_id = $2`, postID, userID)
	switch {
	case err == sql.ErrNoRows:
		return post.Reaction{}, post.ErrNotFound
	case err != nil:
		return post.Reaction{}, errors.Wrap(err, "getting reaction")
	}
	return row.reaction(), nil
}

// SetReaction upserts on (post_id, user_id): one reaction per user per post.
func (repo *postRepository) SetReaction(ctx context.Context, postID string, r post.Reaction) error {
	_, err := repo.GetReaction(ctx, postID, r.By)
	existed := err == nil
	if err != nil && err != post.ErrNotFound {
		return err
	}

	query := `
		INSERT INTO post_reactions (post_id, user_id, type, at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id, user_id) DO UPDATE SET type = EXCLUDED.type, at = EXCLUDED.at`
	if _, err = repo.db.ExecContext(ctx, query, postID, r.By, r.Type, r.At); err != nil {
		return errors.Wrap(err, "setting reaction")
	}

	op := feed.OpAdded
	if existed {
		op = feed.OpModified
	}
	repo.bus.Publish(feed.Change{Op: op, Ref: feed.Ref{Collection: post.ReactionsCollection, Parent: postID}, Doc: r})
	return nil
}

func (repo *postRepository) DeleteReaction(ctx context.Context, postID, userID string) error {
	r, err := repo.GetReaction(ctx, postID, userID)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM post_reactions WHERE post_id = $1 AND user_id = $2`, postID, userID); err != nil {
		return errors.Wrap(err, "deleting reaction")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.ReactionsCollection, Parent: postID}, Doc: r})
	return nil
}

func (repo *postRepository) QueryReactions(ctx context.Context, postID string) ([]post.Reaction, error) {
	var rows []reactionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM post_reactions WHERE post_id = $1 ORDER BY at ASC`, postID)
	if err != nil {
		return nil, errors.Wrap(err, "querying reactions")
	}
	reactions := make([]post.Reaction, 0, len(rows))
	for _, row := range rows {
		reactions = append(reactions, row.reaction())
	}
	return reactions, nil
}
