package feed

import (
	"sync"

	"github.com/arkibo/backend/core"
)

// Item is one reconciled entry of a live view: the latest document plus the
// derived UI state that must survive in-place patches.
type Item struct {
	ID   string
	Doc  Document
	Open bool // e.g. "comments panel open"
}

// Reconciler maps incremental subscription changes onto a stable ordered view.
// `added` inserts a new item at its sort position, `modified` patches the
// existing item in place (Open state survives), `removed` disposes any nested
// subscription owned by the item and drops it. A modified/removed for an
// unknown ID is a tolerated race and reconciles to a logged no-op.
type Reconciler struct {
	mu     sync.Mutex
	items  map[string]*Item
	order  []*Item
	less   LessFunc       // nil inserts new items at the head (newest-first feeds)
	nested *NestedManager // may be nil for flat views
	log    core.Logger
}

func NewReconciler(less LessFunc, nested *NestedManager, log core.Logger) *Reconciler {
	return &Reconciler{
		items:  make(map[string]*Item),
		less:   less,
		nested: nested,
		log:    log,
	}
}

// Apply integrates changes in the order given; reordering them can produce
// transient inconsistent views.
func (r *Reconciler) Apply(changes ...Change) {
	for _, ch := range changes {
		r.applyOne(ch)
	}
}

func (r *Reconciler) applyOne(ch Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ch.Doc.DocID()
	item, ok := r.items[id]

	switch ch.Op {
	case OpAdded:
		if ok {
			// duplicate add: patch instead of re-inserting so UI state survives
			item.Doc = ch.Doc
			return
		}
		item = &Item{ID: id, Doc: ch.Doc}
		r.items[id] = item
		r.insert(item)
	case OpModified:
		if !ok {
			r.log.Warn("feed: modified event for unknown item", map[string]interface{}{"id": id, "collection": ch.Ref.Collection})
			return
		}
		item.Doc = ch.Doc
	case OpRemoved:
		if !ok {
			r.log.Warn("feed: removed event for unknown item", map[string]interface{}{"id": id, "collection": ch.Ref.Collection})
			return
		}
		if r.nested != nil {
			r.nested.Close(id)
		}
		delete(r.items, id)
		for i, it := range r.order {
			if it.ID == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

func (r *Reconciler) insert(item *Item) {
	if r.less == nil {
		r.order = append([]*Item{item}, r.order...)
		return
	}
	pos := len(r.order)
	for i, it := range r.order {
		if r.less(item.Doc, it.Doc) {
			pos = i
			break
		}
	}
	r.order = append(r.order, nil)
	copy(r.order[pos+1:], r.order[pos:])
	r.order[pos] = item
}

// SetOpen toggles an item's panel state, opening or closing its nested
// subscription when a NestedManager is attached.
func (r *Reconciler) SetOpen(id string, open bool) error {
	r.mu.Lock()
	item, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		r.log.Warn("feed: SetOpen for unknown item", map[string]interface{}{"id": id})
		return nil
	}
	item.Open = open
	nested := r.nested
	r.mu.Unlock()

	if nested == nil {
		return nil
	}
	if open {
		return nested.Open(id)
	}
	nested.Close(id)
	return nil
}

// Items returns a copy of the current ordered view.
func (r *Reconciler) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, 0, len(r.order))
	for _, it := range r.order {
		out = append(out, *it)
	}
	return out
}

func (r *Reconciler) Get(id string) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[id]; ok {
		return *it, true
	}
	return Item{}, false
}

func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Reset drops every item and disposes all nested subscriptions.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.items = make(map[string]*Item)
	r.order = nil
	nested := r.nested
	r.mu.Unlock()

	if nested != nil {
		nested.CloseAll()
	}
}
