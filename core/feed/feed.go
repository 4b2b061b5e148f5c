package feed

import "context"

// Op tags a single change delivered by a live subscription.
type Op string

const (
	OpAdded    Op = "added"
	OpModified Op = "modified"
	OpRemoved  Op = "removed"
)

// Document is a single record flowing through the feed.
// Each collection publishes its own concrete type.
type Document interface {
	DocID() string
}

// Ref identifies a collection or a subcollection scoped to a parent document.
type Ref struct {
	Collection string
	Parent     string // parent doc ID; empty for top-level collections
}

// Change is one discrete mutation of a collection.
// For OpRemoved, Doc may carry only its ID and last known fields.
type Change struct {
	Op  Op
	Ref Ref
	Doc Document
}

// Snapshot is a point-in-time ordered result set delivered by a live subscription.
type Snapshot struct {
	Docs []Document
}

func (s Snapshot) Empty() bool { return len(s.Docs) == 0 }

type (
	// LoadFunc fetches the initial result set of a query. Order is not required;
	// the subscription sorts and trims it.
	LoadFunc func(ctx context.Context) ([]Document, error)

	// LessFunc is the ordering key of a query: it reports whether a sorts
	// before b in the delivered result set.
	LessFunc func(a, b Document) bool

	// SnapshotFunc receives the complete current result set on every event
	// (full-snapshot delivery mode). It fires on the initial load too, even
	// when the result set is empty. Callbacks run with the subscription's
	// internal lock held: they must not synchronously publish to the watched
	// collection, or the delivery deadlocks. Hand off to a goroutine or a
	// channel to write back.
	SnapshotFunc func(Snapshot)

	// ChangesFunc receives discrete ordered changes (incremental delivery mode).
	// Callers must integrate them in the order given. The same locking
	// constraint as SnapshotFunc applies: no synchronous publish back into
	// the watched collection.
	ChangesFunc func([]Change)

	// ErrorFunc receives transport/load errors; the subscription stops after one.
	ErrorFunc func(error)

	// Disposer terminates a subscription and releases its resources.
	// Safe to call more than once.
	Disposer func()
)

// Query describes a standing watch over an ordered/filtered/limited collection.
type Query struct {
	Ref    Ref
	Filter func(Document) bool // optional predicate applied to every doc
	Less   LessFunc            // required ordering
	Limit  int                 // 0 = unlimited
	Load   LoadFunc
}

func (q Query) matches(doc Document) bool {
	if q.Filter == nil {
		return true
	}
	return q.Filter(doc)
}
