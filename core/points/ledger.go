package points

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/user"
)

// Entry is one immutable audit record of the star points ledger.
// IDs are ULIDs so the log is sortable by creation time.
type Entry struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"` // UTC, server-assigned
}

func (e Entry) DocID() string { return e.ID }

type (
	Repository interface {
		// IncrementStarPoints applies an atomic relative increment to the
		// user's point total; implementations must not read-modify-write.
		// The returned User carries the resulting total.
		IncrementStarPoints(ctx context.Context, uid string, delta int) (user.User, error)
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		QueryEntries(ctx context.Context, uid string) ([]Entry, error)
	}

	// Ledger awards star points. Amounts are caller-supplied policy: call
	// sites use fixed grants or grade-proportional amounts as they see fit.
	Ledger interface {
		Award(ctx context.Context, uid string, amount int, reason string) error
		History(ctx context.Context, uid string) ([]Entry, error)
	}

	ledger struct {
		repo    Repository
		userSvc user.Service
		log     core.Logger
	}
)

var _ Ledger = (*ledger)(nil)

func NewLedger(repo Repository, userSvc user.Service, log core.Logger) Ledger {
	return &ledger{
		repo:    repo,
		userSvc: userSvc,
		log:     log,
	}
}

// Award increments a student's point total and appends an audit record.
// Only students earn points: any other role is a logged no-op, never an error
// surfaced to the caller.
func (l *ledger) Award(ctx context.Context, uid string, amount int, reason string) error {
	if amount == 0 {
		return nil
	}

	usr, err := l.userSvc.GetByID(ctx, uid)
	if err != nil {
		return err
	}
	if !usr.IsStudent() {
		l.log.Warn("points: only students earn star points", map[string]interface{}{"uid": uid, "role": usr.Role})
		return nil
	}

	usr, err = l.repo.IncrementStarPoints(ctx, uid, amount)
	if err != nil {
		return err
	}

	entry := Entry{
		ID:        newEntryID(),
		UID:       uid,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if _, err = l.repo.CreateEntry(ctx, entry); err != nil {
		return err
	}

	// the cached profile now carries a stale total
	l.userSvc.EvictProfile(ctx, uid)

	l.log.Info("points: awarded", map[string]interface{}{
		"uid": uid, "amount": amount, "reason": reason, "total": usr.StarPoints,
	})
	return nil
}

func (l *ledger) History(ctx context.Context, uid string) ([]Entry, error) {
	return l.repo.QueryEntries(ctx, uid)
}

// Process-wide monotonic entropy keeps entry IDs unique and strictly
// increasing even for awards landing on the same millisecond. The reader is
// not safe for concurrent use, hence the lock.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newEntryID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}
