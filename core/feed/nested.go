package feed

import "sync"

// OpenFunc lazily creates the child subscription for a parent document
// (e.g. the comments watch of a post) and returns its disposer.
type OpenFunc func(parentID string) (Disposer, error)

// NestedManager owns child subscriptions keyed by parent document ID.
// At most one child subscription exists per parent at any time:
// CLOSED -> (Open) -> OPEN -> (Close | parent removed) -> CLOSED.
// It is created per view and torn down with CloseAll on navigation.
type NestedManager struct {
	mu   sync.Mutex
	open OpenFunc
	subs map[string]Disposer
}

func NewNestedManager(open OpenFunc) *NestedManager {
	return &NestedManager{
		open: open,
		subs: make(map[string]Disposer),
	}
}

// Open creates the child subscription on first call for a parent ID.
// Calling it while already open is a no-op.
func (m *NestedManager) Open(parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[parentID]; ok {
		return nil
	}
	disposer, err := m.open(parentID)
	if err != nil {
		return err
	}
	m.subs[parentID] = disposer
	return nil
}

// Close disposes the child subscription for a parent ID.
// Safe to call on an ID that was never opened.
func (m *NestedManager) Close(parentID string) {
	m.mu.Lock()
	disposer, ok := m.subs[parentID]
	delete(m.subs, parentID)
	m.mu.Unlock()

	if ok {
		disposer()
	}
}

// CloseAll disposes every child subscription. Must be called when the owning
// view goes away; leaked child watches accumulate over long sessions.
func (m *NestedManager) CloseAll() {
	m.mu.Lock()
	disposers := make([]Disposer, 0, len(m.subs))
	for id, d := range m.subs {
		disposers = append(disposers, d)
		delete(m.subs, id)
	}
	m.mu.Unlock()

	for _, d := range disposers {
		d()
	}
}

func (m *NestedManager) IsOpen(parentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[parentID]
	return ok
}

func (m *NestedManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
