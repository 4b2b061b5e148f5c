package inmemdb

import (
	"context"
	"sort"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/post"
)

type postRepository struct {
	db  *postTable
	bus *feed.Broker
}

var _ post.Repository = (*postRepository)(nil) // interface compliance check

func NewPostRepository(db *DB, bus *feed.Broker) post.Repository {
	return &postRepository{db: db.post, bus: bus}
}

func (repo *postRepository) CreateAnnouncement(ctx context.Context, ann post.Announcement) (post.Announcement, error) {
	repo.db.Lock()
	repo.db.announcements[ann.ID] = &ann
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: post.Collection}, Doc: ann})
	return ann, nil
}

func (repo *postRepository) GetAnnouncement(ctx context.Context, id string) (post.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ann, ok := repo.db.announcements[id]; ok {
		return *ann, nil
	}
	return post.Announcement{}, post.ErrNotFound
}

func (repo *postRepository) QueryAnnouncements(ctx context.Context) ([]post.Announcement, error) {
	repo.db.RLock()
	anns := make([]post.Announcement, 0, len(repo.db.announcements))
	for _, ann := range repo.db.announcements {
		anns = append(anns, *ann)
	}
	repo.db.RUnlock()

	sort.SliceStable(anns, func(i, j int) bool { return anns[i].CreatedAt.After(anns[j].CreatedAt) })
	return anns, nil
}

func (repo *postRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	repo.db.Lock()
	ann, ok := repo.db.announcements[id]
	if !ok {
		repo.db.Unlock()
		return post.ErrNotFound
	}
	deleted := *ann
	delete(repo.db.announcements, id)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.Collection}, Doc: deleted})
	return nil
}

func (repo *postRepository) CreateComment(ctx context.Context, postID string, c post.Comment) (post.Comment, error) {
	repo.db.Lock()
	if repo.db.comments[postID] == nil {
		repo.db.comments[postID] = make(map[string]*post.Comment)
	}
	repo.db.comments[postID][c.ID] = &c
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: post.CommentsCollection, Parent: postID}, Doc: c})
	return c, nil
}

func (repo *postRepository) GetComment(ctx context.Context, postID, id string) (post.Comment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.comments[postID][id]; ok {
		return *c, nil
	}
	return post.Comment{}, post.ErrNotFound
}

func (repo *postRepository) QueryComments(ctx context.Context, postID string) ([]post.Comment, error) {
	repo.db.RLock()
	comments := make([]post.Comment, 0, len(repo.db.comments[postID]))
	for _, c := range repo.db.comments[postID] {
		comments = append(comments, *c)
	}
	repo.db.RUnlock()

	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (repo *postRepository) DeleteComment(ctx context.Context, postID, id string) error {
	repo.db.Lock()
	c, ok := repo.db.comments[postID][id]
	if !ok {
		repo.db.Unlock()
		return post.ErrNotFound
	}
	deleted := *c
	delete(repo.db.comments[postID], id)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.CommentsCollection, Parent: postID}, Doc: deleted})
	return nil
}

func (repo *postRepository) CreateReply(ctx context.Context, commentID string, r post.Reply) (post.Reply, error) {
	repo.db.Lock()
	if repo.db.replies[commentID] == nil {
		repo.db.replies[commentID] = make(map[string]*post.Reply)
	}
	repo.db.replies[commentID][r.ID] = &r
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: post.RepliesCollection, Parent: commentID}, Doc: r})
	return r, nil
}

func (repo *postRepository) GetReply(ctx context.Context, commentID, id string) (post.Reply, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.replies[commentID][id]; ok {
		return *r, nil
	}
	return post.Reply{}, post.ErrNotFound
}

func (repo *postRepository) QueryReplies(ctx context.Context, commentID string) ([]post.Reply, error) {
	repo.db.RLock()
	replies := make([]post.Reply, 0, len(repo.db.replies[commentID]))
	for _, r := range repo.db.replies[commentID] {
		replies = append(replies, *r)
	}
	repo.db.RUnlock()

	sort.SliceStable(replies, func(i, j int) bool { return replies[i].CreatedAt.Before(replies[j].CreatedAt) })
	return replies, nil
}

func (repo *postRepository) DeleteReply(ctx context.Context, commentID, id string) error {
	repo.db.Lock()
	r, ok := repo.db.replies[commentID][id]
	if !ok {
		repo.db.Unlock()
		return post.ErrNotFound
	}
	deleted := *r
	delete(repo.db.replies[commentID], id)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.RepliesCollection, Parent: commentID}, Doc: deleted})
	return nil
}

func (repo *postRepository) GetReaction(ctx context.Context, postID, userID string) (post.Reaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.reactions[postID][userID]; ok {
		return *r, nil
	}
	return post.Reaction{}, post.ErrNotFound
}

func (repo *postRepository) SetReaction(ctx context.Context, postID string, r post.Reaction) error {
	repo.db.Lock()
	if repo.db.reactions[postID] == nil {
		repo.db.reactions[postID] = make(map[string]*post.Reaction)
	}
	_, existed := repo.db.reactions[postID][r.By]
	repo.db.reactions[postID][r.By] = &r
	repo.db.Unlock()

	op := feed.OpAdded
	if existed {
		op = feed.OpModified
	}
	repo.bus.Publish(feed.Change{Op: op, Ref: feed.Ref{Collection: post.ReactionsCollection, Parent: postID}, Doc: r})
	return nil
}

func (repo *postRepository) DeleteReaction(ctx context.Context, postID, userID string) error {
	repo.db.Lock()
	r, ok := repo.db.reactions[postID][userID]
	if !ok {
		repo.db.Unlock()
		return post.ErrNotFound
	}
	deleted := *r
	delete(repo.db.reactions[postID], userID)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: post.ReactionsCollection, Parent: postID}, Doc: deleted})
	return nil
}

func (repo *postRepository) QueryReactions(ctx context.Context, postID string) ([]post.Reaction, error) {
	repo.db.RLock()
	reactions := make([]post.Reaction, 0, len(repo.db.reactions[postID]))
	for _, r := range repo.db.reactions[postID] {
		reactions = append(reactions, *r)
	}
	repo.db.RUnlock()

	sort.SliceStable(reactions, func(i, j int) bool { return reactions[i].At.Before(reactions[j].At) })
	return reactions, nil
}
