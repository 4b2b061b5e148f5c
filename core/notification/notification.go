package notification

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/user"
)

// Collection is the feed collection name of notifications.
const Collection = "notifications"

var ErrNotFound = errors.New("notification not found")

// Notification is a one-shot, per-recipient message. Recipients are addressed
// by email, matching the profile's identity rather than its volatile ID.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"` // email
	Message   string    `json:"message"`
	Kind      string    `json:"kind"` // free-form tag: "grade", "submission", ...
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (n Notification) DocID() string { return n.ID }

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		// QueryNotifications returns the recipient's notifications, newest first.
		QueryNotifications(ctx context.Context, recipient string) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
		DeleteNotification(ctx context.Context, id string) error
	}

	Service interface {
		Notify(ctx context.Context, recipient, kind, format string, args ...interface{}) (Notification, error)
		Get(ctx context.Context, id string) (Notification, error)
		ListFor(ctx context.Context, recipient string) ([]Notification, error)
		MarkRead(ctx context.Context, id string) (Notification, error)
		Dismiss(ctx context.Context, id string) error
		Query(recipient string) feed.Query

		// NotifyPendingApprovals mails admins a digest of accounts still
		// awaiting verification; a no-op when the queue is empty.
		NotifyPendingApprovals(ctx context.Context) error
	}

	service struct {
		repo    Repository
		userSvc user.Service
		mailSvc core.EmailService
		conf    *core.Config
		log     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, mailSvc core.EmailService, conf *core.Config, log core.Logger) Service {
	return &service{
		repo:    repo,
		userSvc: userSvc,
		mailSvc: mailSvc,
		conf:    conf,
		log:     log,
	}
}

func (svc *service) Notify(ctx context.Context, recipient, kind, format string, args ...interface{}) (Notification, error) {
	n := Notification{
		ID:        uuid.New().String(),
		Recipient: core.CleanString(recipient, true /* lower */),
		Message:   fmt.Sprintf(format, args...),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateNotification(ctx, n)
}

func (svc *service) Get(ctx context.Context, id string) (Notification, error) {
	return svc.repo.GetNotification(ctx, id)
}

func (svc *service) ListFor(ctx context.Context, recipient string) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, core.CleanString(recipient, true /* lower */))
}

func (svc *service) MarkRead(ctx context.Context, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	return svc.repo.UpdateNotification(ctx, n)
}

func (svc *service) Dismiss(ctx context.Context, id string) error {
	return svc.repo.DeleteNotification(ctx, id)
}

// Query is the recipient's live notification feed, newest first.
func (svc *service) Query(recipient string) feed.Query {
	recipient = core.CleanString(recipient, true /* lower */)
	return feed.Query{
		Ref: feed.Ref{Collection: Collection},
		Filter: func(doc feed.Document) bool {
			n, ok := doc.(Notification)
			return ok && n.Recipient == recipient
		},
		Less: ByCreatedAtDesc,
		Load: func(ctx context.Context) ([]feed.Document, error) {
			notifs, err := svc.repo.QueryNotifications(ctx, recipient)
			if err != nil {
				return nil, err
			}
			docs := make([]feed.Document, 0, len(notifs))
			for _, n := range notifs {
				docs = append(docs, n)
			}
			return docs, nil
		},
	}
}

func (svc *service) NotifyPendingApprovals(ctx context.Context) error {
	approved := false
	pending, err := svc.userSvc.Filter(ctx, user.QueryFilter{Approved: &approved})
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	admins, err := svc.userSvc.Filter(ctx, user.QueryFilter{Role: user.RoleAdmin})
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		svc.log.Warn("notification: pending approvals but no admin account to notify")
		return nil
	}

	body := fmt.Sprintf("There are %d account(s) awaiting verification:\n\n", len(pending))
	for _, usr := range pending {
		body += fmt.Sprintf("- %s (%s)\n", usr.FullName, usr.Email)
	}
	body += fmt.Sprintf("\nReview them at %s/admin.", svc.conf.FrontendBaseURL)

	messages := make([]*core.EmailMessage, 0, len(admins))
	for _, admin := range admins {
		messages = append(messages, &core.EmailMessage{
			To:      []mail.Address{{Name: admin.FullName, Address: admin.Email}},
			Subject: "Pending account verifications",
			BodyStr: body,
		})
	}
	svc.mailSvc.SendMessages(messages...)
	return nil
}

func ByCreatedAtDesc(a, b feed.Document) bool {
	return a.(Notification).CreatedAt.After(b.(Notification).CreatedAt)
}
