package feed

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/arkibo/backend/core"
)

// Broker is the in-process change bus. Repositories publish every mutation;
// standing subscriptions integrate matching changes into their result set and
// re-fire their callbacks, mirroring a hosted document store's live queries.
type Broker struct {
	mu     sync.RWMutex
	subs   map[Ref]map[uint64]*subscription
	nextID uint64
	log    core.Logger
}

func NewBroker(log core.Logger) *Broker {
	return &Broker{
		subs: make(map[Ref]map[uint64]*subscription),
		log:  log,
	}
}

// Publish fans a change out to every subscription watching its Ref.
// Delivery within one subscription is serialized; across subscriptions no
// ordering is guaranteed.
func (b *Broker) Publish(ch Change) {
	b.mu.RLock()
	matching := make([]*subscription, 0, len(b.subs[ch.Ref]))
	for _, sub := range b.subs[ch.Ref] {
		matching = append(matching, sub)
	}
	b.mu.RUnlock()

	// deliver outside the registry lock: callbacks may open nested watches
	for _, sub := range matching {
		sub.integrate(ch)
	}
}

// Watch establishes a standing watch in full-snapshot mode: every event
// delivers the complete current ordered result set.
func (b *Broker) Watch(q Query, onSnap SnapshotFunc, onErr ErrorFunc) Disposer {
	return b.watch(q, onSnap, nil, onErr)
}

// WatchChanges establishes a standing watch in incremental mode: every event
// delivers a list of discrete added|modified|removed changes.
func (b *Broker) WatchChanges(q Query, onChanges ChangesFunc, onErr ErrorFunc) Disposer {
	return b.watch(q, nil, onChanges, onErr)
}

func (b *Broker) watch(q Query, onSnap SnapshotFunc, onChanges ChangesFunc, onErr ErrorFunc) Disposer {
	sub := &subscription{
		q:         q,
		onSnap:    onSnap,
		onChanges: onChanges,
		onErr:     onErr,
		byID:      make(map[string]int),
		log:       b.log,
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	refSubs, ok := b.subs[q.Ref]
	if !ok {
		refSubs = make(map[uint64]*subscription)
		b.subs[q.Ref] = refSubs
	}
	refSubs[id] = sub
	b.mu.Unlock()

	go sub.load()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if refSubs, ok := b.subs[q.Ref]; ok {
				delete(refSubs, id)
				if len(refSubs) == 0 {
					delete(b.subs, q.Ref)
				}
			}
			b.mu.Unlock()
			sub.dispose()
		})
	}
}

// subscription holds the live ordered result set of one watch.
// All state is guarded by mu; callbacks are invoked while it is held so that
// deliveries stay serialized per subscription. A callback that synchronously
// publishes back to its own watched collection would re-enter integrate and
// deadlock; see the SnapshotFunc/ChangesFunc contract.
type subscription struct {
	q         Query
	onSnap    SnapshotFunc
	onChanges ChangesFunc
	onErr     ErrorFunc

	mu       sync.Mutex
	docs     []Document
	byID     map[string]int // doc ID -> index in docs
	loaded   bool
	failed   bool
	disposed int32 // atomic; checked without mu so a callback may dispose its own watch
	pending  []Change // changes published before the initial load settled

	log core.Logger
}

func (sub *subscription) load() {
	docs, err := sub.q.Load(context.Background())

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.isDisposed() {
		return
	}
	if err != nil {
		sub.failed = true
		if sub.onErr != nil {
			sub.onErr(err)
		}
		return
	}

	kept := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if sub.q.matches(doc) {
			kept = append(kept, doc)
		}
	}
	sub.docs = kept
	sub.sortAndTrim()
	sub.reindex()
	sub.loaded = true

	// initial delivery: the whole set as `added` changes, in result order.
	// It fires even when empty so callers can render their empty state.
	initial := make([]Change, 0, len(sub.docs))
	for _, doc := range sub.docs {
		initial = append(initial, Change{Op: OpAdded, Ref: sub.q.Ref, Doc: doc})
	}
	sub.deliver(initial)

	// changes that raced the initial load
	pending := sub.pending
	sub.pending = nil
	for _, ch := range pending {
		sub.integrateLocked(ch)
	}
}

func (sub *subscription) integrate(ch Change) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.isDisposed() || sub.failed {
		return
	}
	if !sub.loaded {
		sub.pending = append(sub.pending, ch)
		return
	}
	sub.integrateLocked(ch)
}

func (sub *subscription) integrateLocked(ch Change) {
	var out []Change

	idx, present := sub.byID[ch.Doc.DocID()]
	switch ch.Op {
	case OpAdded, OpModified:
		if !sub.q.matches(ch.Doc) {
			if present {
				// doc left the filtered window
				out = append(out, Change{Op: OpRemoved, Ref: sub.q.Ref, Doc: sub.docs[idx]})
				sub.removeAt(idx)
			}
			break
		}
		if present {
			sub.docs[idx] = ch.Doc
			out = append(out, Change{Op: OpModified, Ref: sub.q.Ref, Doc: ch.Doc})
			break
		}
		sub.insert(ch.Doc)
		out = append(out, Change{Op: OpAdded, Ref: sub.q.Ref, Doc: ch.Doc})
		if sub.q.Limit > 0 && len(sub.docs) > sub.q.Limit {
			// trim the doc falling out of the limited window
			dropped := sub.docs[len(sub.docs)-1]
			sub.removeAt(len(sub.docs) - 1)
			out = append(out, Change{Op: OpRemoved, Ref: sub.q.Ref, Doc: dropped})
		}
	case OpRemoved:
		if !present {
			return // tolerated race: removal of a doc we never saw
		}
		out = append(out, Change{Op: OpRemoved, Ref: sub.q.Ref, Doc: sub.docs[idx]})
		sub.removeAt(idx)
	}

	if len(out) > 0 {
		sub.deliver(out)
	}
}

func (sub *subscription) deliver(changes []Change) {
	if sub.onChanges != nil {
		sub.onChanges(changes)
	}
	if sub.onSnap != nil {
		docs := make([]Document, len(sub.docs))
		copy(docs, sub.docs)
		sub.onSnap(Snapshot{Docs: docs})
	}
}

func (sub *subscription) insert(doc Document) {
	i := sort.Search(len(sub.docs), func(i int) bool {
		return sub.before(doc, sub.docs[i])
	})
	sub.docs = append(sub.docs, nil)
	copy(sub.docs[i+1:], sub.docs[i:])
	sub.docs[i] = doc
	sub.reindex()
}

func (sub *subscription) removeAt(i int) {
	sub.docs = append(sub.docs[:i], sub.docs[i+1:]...)
	sub.reindex()
}

func (sub *subscription) sortAndTrim() {
	sort.SliceStable(sub.docs, func(i, j int) bool {
		return sub.before(sub.docs[i], sub.docs[j])
	})
	if sub.q.Limit > 0 && len(sub.docs) > sub.q.Limit {
		sub.docs = sub.docs[:sub.q.Limit]
	}
}

func (sub *subscription) before(a, b Document) bool {
	if sub.q.Less == nil {
		return false // keep publish order
	}
	return sub.q.Less(a, b)
}

func (sub *subscription) reindex() {
	for id := range sub.byID {
		delete(sub.byID, id)
	}
	for i, doc := range sub.docs {
		sub.byID[doc.DocID()] = i
	}
}

func (sub *subscription) dispose() {
	atomic.StoreInt32(&sub.disposed, 1)
}

func (sub *subscription) isDisposed() bool {
	return atomic.LoadInt32(&sub.disposed) == 1
}
