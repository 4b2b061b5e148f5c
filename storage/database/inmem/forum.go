package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/forum"
)

type forumRepository struct {
	db  *forumTable
	bus *feed.Broker
}

var _ forum.Repository = (*forumRepository)(nil) // interface compliance check

func NewForumRepository(db *DB, bus *feed.Broker) forum.Repository {
	return &forumRepository{db: db.forum, bus: bus}
}

func (repo *forumRepository) CreatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	repo.db.Lock()
	repo.db.posts[p.ID] = &p
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: forum.Collection}, Doc: p})
	return p, nil
}

func (repo *forumRepository) GetPost(ctx context.Context, id string) (forum.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.posts[id]; ok {
		return *p, nil
	}
	return forum.Post{}, forum.ErrNotFound
}

func (repo *forumRepository) QueryPosts(ctx context.Context) ([]forum.Post, error) {
	repo.db.RLock()
	posts := make([]forum.Post, 0, len(repo.db.posts))
	for _, p := range repo.db.posts {
		posts = append(posts, *p)
	}
	repo.db.RUnlock()

	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (repo *forumRepository) DeletePost(ctx context.Context, id string) error {
	repo.db.Lock()
	p, ok := repo.db.posts[id]
	if !ok {
		repo.db.Unlock()
		return forum.ErrNotFound
	}
	deleted := *p
	delete(repo.db.posts, id)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: forum.Collection}, Doc: deleted})
	return nil
}

func (repo *forumRepository) IncrementCounter(ctx context.Context, id, field string, delta int) (forum.Post, error) {
	repo.db.Lock()
	p, ok := repo.db.posts[id]
	if !ok {
		repo.db.Unlock()
		return forum.Post{}, forum.ErrNotFound
	}
	switch field {
	case forum.CounterLikes:
		p.Likes += delta
	case forum.CounterDislikes:
		p.Dislikes += delta
	default:
		repo.db.Unlock()
		return forum.Post{}, errors.Errorf("unknown counter field %q", field)
	}
	updated := *p
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpModified, Ref: feed.Ref{Collection: forum.Collection}, Doc: updated})
	return updated, nil
}

func (repo *forumRepository) CreateComment(ctx context.Context, postID string, c forum.Comment) (forum.Comment, error) {
	repo.db.Lock()
	if repo.db.comments[postID] == nil {
		repo.db.comments[postID] = make(map[string]*forum.Comment)
	}
	repo.db.comments[postID][c.ID] = &c
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: forum.CommentsCollection, Parent: postID}, Doc: c})
	return c, nil
}

func (repo *forumRepository) QueryComments(ctx context.Context, postID string) ([]forum.Comment, error) {
	repo.db.RLock()
	comments := make([]forum.Comment, 0, len(repo.db.comments[postID]))
	for _, c := range repo.db.comments[postID] {
		comments = append(comments, *c)
	}
	repo.db.RUnlock()

	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}
