package forum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("forum post not found")
	ErrNotAllowed         = errors.New("not allowed")
	ErrGuidelinesRequired = errors.New("community guidelines must be agreed to first")
)

type (
	Repository interface {
		CreatePost(ctx context.Context, p Post) (Post, error)
		GetPost(ctx context.Context, id string) (Post, error)
		QueryPosts(ctx context.Context) ([]Post, error)
		DeletePost(ctx context.Context, id string) error
		// IncrementCounter applies an atomic relative increment to a counter
		// field; the returned Post carries the resulting value.
		IncrementCounter(ctx context.Context, id, field string, delta int) (Post, error)

		CreateComment(ctx context.Context, postID string, c Comment) (Comment, error)
		QueryComments(ctx context.Context, postID string) ([]Comment, error)
	}

	Service interface {
		Publish(ctx context.Context, author user.User, np NewPost) (Post, error)
		Get(ctx context.Context, id string) (Post, error)
		Delete(ctx context.Context, viewer user.User, id string) error
		Like(ctx context.Context, id string) (Post, error)
		Dislike(ctx context.Context, id string) (Post, error)
		Comment(ctx context.Context, viewer user.User, postID string, nc NewComment) (Comment, error)

		PostsQuery() feed.Query
		CommentsQuery(postID string) feed.Query
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Publish creates a forum post. Unlike announcements the forum is open to
// everyone, but only after agreeing to the community guidelines.
func (svc *service) Publish(ctx context.Context, author user.User, np NewPost) (Post, error) {
	if !author.GuidelinesAgreed {
		return Post{}, ErrGuidelinesRequired
	}
	p := Post{
		ID:          uuid.New().String(),
		Title:       np.Title,
		Body:        np.Body,
		AuthorName:  author.FullName,
		AuthorEmail: author.Email,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreatePost(ctx, p)
}

func (svc *service) Get(ctx context.Context, id string) (Post, error) {
	return svc.repo.GetPost(ctx, id)
}

func (svc *service) Delete(ctx context.Context, viewer user.User, id string) error {
	p, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin() && viewer.Email != p.AuthorEmail {
		return ErrNotAllowed
	}
	return svc.repo.DeletePost(ctx, id)
}

func (svc *service) Like(ctx context.Context, id string) (Post, error) {
	return svc.repo.IncrementCounter(ctx, id, CounterLikes, 1)
}

func (svc *service) Dislike(ctx context.Context, id string) (Post, error) {
	return svc.repo.IncrementCounter(ctx, id, CounterDislikes, 1)
}

func (svc *service) Comment(ctx context.Context, viewer user.User, postID string, nc NewComment) (Comment, error) {
	if !viewer.GuidelinesAgreed {
		return Comment{}, ErrGuidelinesRequired
	}
	if _, err := svc.repo.GetPost(ctx, postID); err != nil {
		return Comment{}, err
	}
	body := nc.Body
	if nc.ReplyTo != "" {
		body = fmt.Sprintf("[Reply to %s] %s", nc.ReplyTo, body)
	}
	c := Comment{
		ID:        uuid.New().String(),
		UID:       viewer.ID,
		ByName:    viewer.FullName,
		ByEmail:   viewer.Email,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateComment(ctx, postID, c)
}

func (svc *service) PostsQuery() feed.Query {
	return feed.Query{
		Ref:  feed.Ref{Collection: Collection},
		Less: ByCreatedAtDesc,
		Load: func(ctx context.Context) ([]feed.Document, error) {
			posts, err := svc.repo.QueryPosts(ctx)
			if err != nil {
				return nil, err
			}
			docs := make([]feed.Document, 0, len(posts))
			for _, p := range posts {
				docs = append(docs, p)
			}
			return docs, nil
		},
	}
}

func (svc *service) CommentsQuery(postID string) feed.Query {
	return feed.Query{
		Ref:  feed.Ref{Collection: CommentsCollection, Parent: postID},
		Less: CommentsByCreatedAt,
		Load: func(ctx context.Context) ([]feed.Document, error) {
			comments, err := svc.repo.QueryComments(ctx, postID)
			if err != nil {
				return nil, err
			}
			docs := make([]feed.Document, 0, len(comments))
			for _, c := range comments {
				docs = append(docs, c)
			}
			return docs, nil
		},
	}
}
