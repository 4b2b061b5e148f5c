package post

import (
	"time"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/feed"
)

// Feed collection names.
const (
	Collection          = "announcements"
	CommentsCollection  = "comments"  // parent: announcement ID
	RepliesCollection   = "replies"   // parent: comment ID
	ReactionsCollection = "reactions" // parent: announcement ID
)

// Reaction types.
const (
	ReactionLike = "like"
	ReactionLove = "love"
	ReactionClap = "clap"
)

var ReactionTypes = []string{ReactionLike, ReactionLove, ReactionClap}

type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

func (a Announcement) DocID() string { return a.ID }

type Comment struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"` // author's user ID
	ByName    string    `json:"by_name"`
	ByEmail   string    `json:"by_email"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (c Comment) DocID() string { return c.ID }

// Reply is a second-level comment; replies do not nest further.
type Reply struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	ByName    string    `json:"by_name"`
	ByEmail   string    `json:"by_email"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (r Reply) DocID() string { return r.ID }

// Reaction is one user's reaction on one announcement; its ID is the user ID,
// which enforces the at-most-one-per-user invariant.
type Reaction struct {
	By   string    `json:"by"` // user ID, also the doc ID
	Type string    `json:"type"`
	At   time.Time `json:"at"` // UTC
}

func (r Reaction) DocID() string { return r.By }

// NewAnnouncement contains information needed to publish an Announcement.
type NewAnnouncement struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

func (na *NewAnnouncement) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Body = core.CleanString(na.Body)
	return core.Validate.Struct(na)
}

// NewComment contains information needed to post a Comment or a Reply.
type NewComment struct {
	Body string `json:"body" validate:"required"`
}

func (nc *NewComment) Validate() error {
	nc.Body = core.CleanString(nc.Body)
	return core.Validate.Struct(nc)
}

// Ordering keys.

func ByCreatedAtDesc(a, b feed.Document) bool {
	return a.(Announcement).CreatedAt.After(b.(Announcement).CreatedAt)
}

func CommentsByCreatedAt(a, b feed.Document) bool {
	return a.(Comment).CreatedAt.Before(b.(Comment).CreatedAt)
}

func RepliesByCreatedAt(a, b feed.Document) bool {
	return a.(Reply).CreatedAt.Before(b.(Reply).CreatedAt)
}
