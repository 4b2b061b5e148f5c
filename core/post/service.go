package post

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("post not found")
	ErrNotAllowed = errors.New("not allowed")
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		GetAnnouncement(ctx context.Context, id string) (Announcement, error)
		QueryAnnouncements(ctx context.Context) ([]Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string) error

		CreateComment(ctx context.Context, postID string, c Comment) (Comment, error)
		GetComment(ctx context.Context, postID, id string) (Comment, error)
		QueryComments(ctx context.Context, postID string) ([]Comment, error)
		DeleteComment(ctx context.Context, postID, id string) error

		CreateReply(ctx context.Context, commentID string, r Reply) (Reply, error)
		GetReply(ctx context.Context, commentID, id string) (Reply, error)
		QueryReplies(ctx context.Context, commentID string) ([]Reply, error)
		DeleteReply(ctx context.Context, commentID, id string) error

		GetReaction(ctx context.Context, postID, userID string) (Reaction, error)
		SetReaction(ctx context.Context, postID string, r Reaction) error
		DeleteReaction(ctx context.Context, postID, userID string) error
		QueryReactions(ctx context.Context, postID string) ([]Reaction, error)
	}

	Service interface {
		Publish(ctx context.Context, author user.User, na NewAnnouncement) (Announcement, error)
		Get(ctx context.Context, id string) (Announcement, error)
		Delete(ctx context.Context, viewer user.User, id string) error

		Comment(ctx context.Context, viewer user.User, postID string, nc NewComment) (Comment, error)
		DeleteComment(ctx context.Context, viewer user.User, postID, id string) error
		Reply(ctx context.Context, viewer user.User, commentID string, nc NewComment) (Reply, error)
		DeleteReply(ctx context.Context, viewer user.User, commentID, id string) error

		// ToggleReaction sets, replaces or removes the viewer's reaction:
		// same type again removes it, a different type replaces it.
		ToggleReaction(ctx context.Context, viewer user.User, postID, reactionType string) error
		ReactionCounts(ctx context.Context, postID string) (map[string]int, error)

		AnnouncementsQuery() feed.Query
		CommentsQuery(postID string) feed.Query
		RepliesQuery(commentID string) feed.Query
		ReactionsQuery(postID string) feed.Query
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Publish(ctx context.Context, author user.User, na NewAnnouncement) (Announcement, error) {
	if !author.CanPost() {
		return Announcement{}, ErrNotAllowed
	}
	ann := Announcement{
		ID:          uuid.New().String(),
		Title:       na.Title,
		Body:        na.Body,
		AuthorName:  author.FullName,
		AuthorEmail: author.Email,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateAnnouncement(ctx, ann)
}

func (svc *service) Get(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, id)
}

func (svc *service) Delete(ctx context.Context, viewer user.User, id string) error {
	ann, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin() && viewer.Email != ann.AuthorEmail {
		return ErrNotAllowed
	}
	return svc.repo.DeleteAnnouncement(ctx, id)
}

func (svc *service) Comment(ctx context.Context, viewer user.User, postID string, nc NewComment) (Comment, error) {
	if _, err := svc.repo.GetAnnouncement(ctx, postID); err != nil {
		return Comment{}, err
	}
	c := Comment{
		ID:        uuid.New().String(),
		UID:       viewer.ID,
		ByName:    viewer.FullName,
		ByEmail:   viewer.Email,
		Body:      nc.Body,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateComment(ctx, postID, c)
}

// DeleteComment removes a comment; only its author or an admin may.
// The replies subcollection is left behind, matching the store's
// non-cascading deletes; its live watch is disposed by the reconciler.
func (svc *service) DeleteComment(ctx context.Context, viewer user.User, postID, id string) error {
	c, err := svc.repo.GetComment(ctx, postID, id)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin() && viewer.Email != c.ByEmail {
		return ErrNotAllowed
	}
	return svc.repo.DeleteComment(ctx, postID, id)
}

func (svc *service) Reply(ctx context.Context, viewer user.User, commentID string, nc NewComment) (Reply, error) {
	r := Reply{
		ID:        uuid.New().String(),
		UID:       viewer.ID,
		ByName:    viewer.FullName,
		ByEmail:   viewer.Email,
		Body:      nc.Body,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateReply(ctx, commentID, r)
}

func (svc *service) DeleteReply(ctx context.Context, viewer user.User, commentID, id string) error {
	r, err := svc.repo.GetReply(ctx, commentID, id)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin() && viewer.Email != r.ByEmail {
		return ErrNotAllowed
	}
	return svc.repo.DeleteReply(ctx, commentID, id)
}

func (svc *service) ToggleReaction(ctx context.Context, viewer user.User, postID, reactionType string) error {
	if !validReactionType(reactionType) {
		return ErrNotAllowed
	}
	existing, err := svc.repo.GetReaction(ctx, postID, viewer.ID)
	switch {
	case err == ErrNotFound:
		return svc.repo.SetReaction(ctx, postID, Reaction{By: viewer.ID, Type: reactionType, At: time.Now().UTC()})
	case err != nil:
		return err
	case existing.Type == reactionType:
		return svc.repo.DeleteReaction(ctx, postID, viewer.ID)
	default:
		return svc.repo.SetReaction(ctx, postID, Reaction{By: viewer.ID, Type: reactionType, At: time.Now().UTC()})
	}
}

func (svc *service) ReactionCounts(ctx context.Context, postID string) (map[string]int, error) {
	reactions, err := svc.repo.QueryReactions(ctx, postID)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{ReactionLike: 0, ReactionLove: 0, ReactionClap: 0}
	for _, r := range reactions {
		if _, ok := counts[r.Type]; ok {
			counts[r.Type]++
		}
	}
	return counts, nil
}

func (svc *service) AnnouncementsQuery() feed.Query {
	return feed.Query{
		Ref:  feed.Ref{Collection: Collection},
		Less: ByCreatedAtDesc,
		Load: func(ctx context.Context) ([]feed.Document, error) {
			anns, err := svc.repo.QueryAnnouncements(ctx)
			if err != nil {
				return nil, err
			}
			docs := make([]feed.Document, 0, len(anns))
			for _, a := range anns {
				docs = append(docs, a)
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

func (svc *service) RepliesQuery(commentID string) feed.Query {
	return feed.Query{
		Ref:  feed.Ref{Collection: RepliesCollection, Parent: commentID},
		Less: RepliesByCreatedAt,
		Load: func(ctx context.Context) ([]feed.Document, error) {
			replies, err := svc.repo.QueryReplies(ctx, commentID)
			if err != nil {
				return nil, err
			}
			docs := make([]feed.Document, 0, len(replies))
			for _, r := range replies {
				docs = append(docs, r)
			}
			return docs, nil
		},
	}
}

func (svc *service) ReactionsQuery(postID string) feed.Query {
	return feed.Query{
		Ref: feed.Ref{Collection: ReactionsCollection, Parent: postID},
		Less: func(a, b feed.Document) bool {
			return a.(Reaction).At.Before(b.(Reaction).At)
		},
		Load: func(ctx context.Context) ([]feed.Document, error) {
			reactions, err := svc.repo.QueryReactions(ctx, postID)
			if err != nil {
				return nil, err
			}
			docs := make([]feed.Document, 0, len(reactions))
			for _, r := range reactions {
				docs = append(docs, r)
			}
			return docs, nil
		},
	}
}

func validReactionType(typ string) bool {
	return core.ContainsString(ReactionTypes, typ)
}
