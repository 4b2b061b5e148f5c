package notification_test

import (
	"context"
	"strings"
	"testing"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/notification"
	"github.com/arkibo/backend/core/user"
	"github.com/arkibo/backend/services/cache"
	"github.com/arkibo/backend/services/email"
	"github.com/arkibo/backend/storage/database/inmem"
	"github.com/arkibo/backend/tests"
)

type notifFixture struct {
	svc     notification.Service
	usrRepo user.Repository
}

func setup(t *testing.T) notifFixture {
	t.Helper()
	emailsvc.ClearSentMessages()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	conf := testutil.NewConfig()
	log := testutil.NopLogger{}
	bus := feed.NewBroker(log)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrRepo := inmemdb.NewUserRepository(db, bus)
	userSvc := user.NewService(usrRepo, inmemdb.NewConfigRepository(db), cachesvc.NewInmemCache(), mailSvc, conf, log)

	return notifFixture{
		svc:     notification.NewService(inmemdb.NewNotificationRepository(db, bus), userSvc, mailSvc, conf, log),
		usrRepo: usrRepo,
	}
}

func TestService_notify(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	n, err := fx.svc.Notify(ctx, "Ana@Test.Arkibo.PH", "grade", "Your submission to %q was graded %d/100.", "Essay", 90)
	if err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if n.Recipient != "ana@test.arkibo.ph" {
		t.Errorf("Recipient = %q; want lowercased email", n.Recipient)
	}
	if n.Message != `Your submission to "Essay" was graded 90/100.` {
		t.Errorf("Message = %q", n.Message)
	}
	if n.Read {
		t.Error("Read = true; want false")
	}

	notifs, err := fx.svc.ListFor(ctx, "ana@test.arkibo.ph")
	if err != nil {
		t.Fatalf("ListFor() failed: %v", err)
	}
	if len(notifs) != 1 || notifs[0].ID != n.ID {
		t.Errorf("notifs = %+v", notifs)
	}

	// other recipients see nothing
	if notifs, _ = fx.svc.ListFor(ctx, "ben@test.arkibo.ph"); len(notifs) != 0 {
		t.Errorf("notifs = %+v; want none", notifs)
	}
}

func TestService_markReadAndDismiss(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	n, err := fx.svc.Notify(ctx, "ana@test.arkibo.ph", "submission", "hello")
	if err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}

	if _, err = fx.svc.MarkRead(ctx, "nope"); err != notification.ErrNotFound {
		t.Errorf("err = %v; want %v", err, notification.ErrNotFound)
	}

	n, err = fx.svc.MarkRead(ctx, n.ID)
	if err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	if !n.Read {
		t.Error("Read = false; want true")
	}
	// idempotent
	if n, err = fx.svc.MarkRead(ctx, n.ID); err != nil || !n.Read {
		t.Errorf("MarkRead() = %+v, %v", n, err)
	}

	if err = fx.svc.Dismiss(ctx, n.ID); err != nil {
		t.Fatalf("Dismiss() failed: %v", err)
	}
	if _, err = fx.svc.Get(ctx, n.ID); err != notification.ErrNotFound {
		t.Errorf("err = %v; want %v", err, notification.ErrNotFound)
	}
}

func TestService_notifyPendingApprovals(t *testing.T) {
	ctx := context.Background()

	t.Run("empty queue is a no-op", func(t *testing.T) {
		fx := setup(t)
		testutil.CreateUser(t, fx.usrRepo, "Dan Ong", "dan@test.arkibo.ph", "", user.RoleAdmin, true)

		if err := fx.svc.NotifyPendingApprovals(ctx); err != nil {
			t.Fatalf("NotifyPendingApprovals() failed: %v", err)
		}
		if len(emailsvc.SentMessages) != 0 {
			t.Errorf("len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
		}
	})

	t.Run("no admin to notify", func(t *testing.T) {
		fx := setup(t)
		testutil.CreateUser(t, fx.usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, false)

		if err := fx.svc.NotifyPendingApprovals(ctx); err != nil {
			t.Fatalf("NotifyPendingApprovals() failed: %v", err)
		}
		if len(emailsvc.SentMessages) != 0 {
			t.Errorf("len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
		}
	})

	t.Run("digest mails every admin", func(t *testing.T) {
		fx := setup(t)
		testutil.CreateUser(t, fx.usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, false)
		testutil.CreateUser(t, fx.usrRepo, "Ben Reyes", "ben@test.arkibo.ph", "", user.RoleTeacher, false) // unlisted teacher: in digest too
		testutil.CreateUser(t, fx.usrRepo, "Cita Lim", "cita@test.arkibo.ph", "", user.RoleStudent, true)  // approved: not in digest
		testutil.CreateUser(t, fx.usrRepo, "Dan Ong", "dan@test.arkibo.ph", "", user.RoleAdmin, true)
		testutil.CreateUser(t, fx.usrRepo, "Eva Sy", "eva@test.arkibo.ph", "", user.RoleAdmin, true)

		if err := fx.svc.NotifyPendingApprovals(ctx); err != nil {
			t.Fatalf("NotifyPendingApprovals() failed: %v", err)
		}
		if len(emailsvc.SentMessages) != 2 {
			t.Fatalf("len(SentMessages) = %d; want 2", len(emailsvc.SentMessages))
		}
		msg := emailsvc.SentMessages[0]
		if msg.Subject != "Pending account verifications" {
			t.Errorf("Subject = %q", msg.Subject)
		}
		if !strings.Contains(msg.BodyStr, "2 account(s)") {
			t.Errorf("BodyStr = %q; want pending count", msg.BodyStr)
		}
		if !strings.Contains(msg.BodyStr, "Ana Cruz") || !strings.Contains(msg.BodyStr, "Ben Reyes") {
			t.Errorf("BodyStr = %q; want pending accounts listed", msg.BodyStr)
		}
		if strings.Contains(msg.BodyStr, "Cita Lim") {
			t.Errorf("BodyStr lists an approved account: %q", msg.BodyStr)
		}
	})
}
