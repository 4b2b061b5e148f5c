package forum

import (
	"time"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/feed"
)

// Feed collection names.
const (
	Collection         = "askibo_posts"
	CommentsCollection = "askibo_comments" // parent: post ID
)

// Counter fields eligible for atomic increments.
const (
	CounterLikes    = "likes"
	CounterDislikes = "dislikes"
)

type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	Likes       int       `json:"likes"`
	Dislikes    int       `json:"dislikes"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

func (p Post) DocID() string { return p.ID }

// Comment is a flat forum comment. Replies are flattened into this same
// collection with a "[Reply to <comment>]" body prefix; this schema is
// distinct from the announcement one and deliberately not reconciled with it.
type Comment struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	ByName    string    `json:"by_name"`
	ByEmail   string    `json:"by_email"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (c Comment) DocID() string { return c.ID }

type NewPost struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

func (np *NewPost) Validate() error {
	np.Title = core.CleanString(np.Title)
	np.Body = core.CleanString(np.Body)
	return core.Validate.Struct(np)
}

type NewComment struct {
	Body string `json:"body" validate:"required"`
	// ReplyTo flattens the comment as a reply to another comment.
	ReplyTo string `json:"reply_to"`
}

func (nc *NewComment) Validate() error {
	nc.Body = core.CleanString(nc.Body)
	nc.ReplyTo = core.CleanString(nc.ReplyTo)
	return core.Validate.Struct(nc)
}

// Ordering keys.

func ByCreatedAtDesc(a, b feed.Document) bool {
	return a.(Post).CreatedAt.After(b.(Post).CreatedAt)
}

func CommentsByCreatedAt(a, b feed.Document) bool {
	return a.(Comment).CreatedAt.Before(b.(Comment).CreatedAt)
}
