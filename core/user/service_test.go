package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/user"
	"github.com/arkibo/backend/services/cache"
	"github.com/arkibo/backend/services/email"
	"github.com/arkibo/backend/storage/database/inmem"
	"github.com/arkibo/backend/tests"
)

type userFixture struct {
	svc     user.Service
	repo    user.Repository
	cfgRepo user.ConfigRepository
	cache   user.ProfileCache
}

func setup(t *testing.T, ownerEmail string) userFixture {
	t.Helper()
	emailsvc.ClearSentMessages()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	conf := testutil.NewConfig()
	conf.OwnerEmail = ownerEmail

	bus := feed.NewBroker(testutil.NopLogger{})
	repo := inmemdb.NewUserRepository(db, bus)
	cfgRepo := inmemdb.NewConfigRepository(db)
	cache := cachesvc.NewInmemCache()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	return userFixture{
		svc:     user.NewService(repo, cfgRepo, cache, mailSvc, conf, testutil.NopLogger{}),
		repo:    repo,
		cfgRepo: cfgRepo,
		cache:   cache,
	}
}

func TestService_register(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "owner@test.arkibo.ph")

	if err := fx.cfgRepo.SetApprovedTeachers(ctx, []string{"listed@test.arkibo.ph"}); err != nil {
		t.Fatalf("SetApprovedTeachers() failed: %v", err)
	}

	tests := []struct {
		name         string
		nu           user.NewUser
		wantRole     string
		wantApproved bool
	}{
		{
			name:     "student starts pending",
			nu:       user.NewUser{FullName: "Ana Cruz", Email: "ana@test.arkibo.ph", Password: "s3cret!", Role: user.RoleStudent, LRN: "123456", Section: "Mabini"},
			wantRole: user.RoleStudent,
		},
		{
			name:     "unlisted teacher starts pending",
			nu:       user.NewUser{FullName: "Ben Reyes", Email: "ben@test.arkibo.ph", Password: "s3cret!", Role: user.RoleTeacher},
			wantRole: user.RoleTeacher,
		},
		{
			name:         "listed teacher is approved right away",
			nu:           user.NewUser{FullName: "Cita Lim", Email: "listed@test.arkibo.ph", Password: "s3cret!", Role: user.RoleTeacher},
			wantRole:     user.RoleTeacher,
			wantApproved: true,
		},
		{
			name:         "owner email becomes admin",
			nu:           user.NewUser{FullName: "Dan Ong", Email: "owner@test.arkibo.ph", Password: "s3cret!", Role: user.RoleTeacher},
			wantRole:     user.RoleAdmin,
			wantApproved: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			usr, err := fx.svc.Register(ctx, tt.nu)
			if err != nil {
				t.Fatalf("Register() failed: %v", err)
			}
			if usr.Role != tt.wantRole {
				t.Errorf("Role = %s; want %s", usr.Role, tt.wantRole)
			}
			if usr.Approved != tt.wantApproved {
				t.Errorf("Approved = %v; want %v", usr.Approved, tt.wantApproved)
			}
			if usr.ApprovedAt.Valid != tt.wantApproved {
				t.Errorf("ApprovedAt.Valid = %v; want %v", usr.ApprovedAt.Valid, tt.wantApproved)
			}
			if err = usr.CheckPassword(tt.nu.Password); err != nil {
				t.Errorf("CheckPassword() failed: %v", err)
			}

			if len(emailsvc.SentMessages) != 1 {
				t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
			}
			msg := emailsvc.SentMessages[0]
			if msg.Subject != "Verify your email" {
				t.Errorf("Subject = %q", msg.Subject)
			}
			if msg.To[0].Address != tt.nu.Email {
				t.Errorf("To = %v; want %s", msg.To[0], tt.nu.Email)
			}
		})
	}
}

func TestService_authenticate(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "")

	approved := testutil.CreateUser(t, fx.repo, "Ana Cruz", "ana@test.arkibo.ph", "s3cret!", user.RoleStudent, true)
	testutil.CreateUser(t, fx.repo, "Ben Reyes", "ben@test.arkibo.ph", "s3cret!", user.RoleStudent, false)
	testutil.CreateUser(t, fx.repo, "Cita Lim", "cita@test.arkibo.ph", "s3cret!", user.RoleTeacher, false)

	t.Run("unknown email", func(t *testing.T) {
		if _, err := fx.svc.Authenticate(ctx, "nope@test.arkibo.ph", "s3cret!"); err != user.ErrNotFound {
			t.Errorf("err = %v; want %v", err, user.ErrNotFound)
		}
	})
	t.Run("wrong password", func(t *testing.T) {
		if _, err := fx.svc.Authenticate(ctx, approved.Email, "wrong"); err == nil {
			t.Error("err = nil; want password mismatch")
		}
	})
	t.Run("pending student refused", func(t *testing.T) {
		if _, err := fx.svc.Authenticate(ctx, "ben@test.arkibo.ph", "s3cret!"); err != user.ErrPendingApproval {
			t.Errorf("err = %v; want %v", err, user.ErrPendingApproval)
		}
	})
	t.Run("pending teacher refused too", func(t *testing.T) {
		if _, err := fx.svc.Authenticate(ctx, "cita@test.arkibo.ph", "s3cret!"); err != user.ErrPendingApproval {
			t.Errorf("err = %v; want %v", err, user.ErrPendingApproval)
		}
	})
	t.Run("approved account logs in", func(t *testing.T) {
		usr, err := fx.svc.Authenticate(ctx, strings.ToUpper(approved.Email), "s3cret!")
		if err != nil {
			t.Fatalf("Authenticate() failed: %v", err)
		}
		if !usr.LastLogin.Valid {
			t.Error("LastLogin not set")
		}
		// profile is now cached for the resolver
		if cached, err := fx.cache.Get(ctx, usr.ID); err != nil || cached.ID != usr.ID {
			t.Errorf("cache.Get() = %+v, %v; want cached profile", cached, err)
		}
	})
}

func TestService_resolve(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "")

	usr := testutil.CreateUser(t, fx.repo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)

	t.Run("cache miss falls back to the store and caches", func(t *testing.T) {
		got, err := fx.svc.Resolve(ctx, usr.ID)
		if err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
		if got.ID != usr.ID {
			t.Errorf("ID = %s; want %s", got.ID, usr.ID)
		}
		if _, err = fx.cache.Get(ctx, usr.ID); err != nil {
			t.Errorf("profile not cached after Resolve: %v", err)
		}
	})

	t.Run("stale unapproved cached copy is evicted and refused", func(t *testing.T) {
		stale := usr
		stale.Approved = false
		if err := fx.cache.Set(ctx, stale); err != nil {
			t.Fatalf("cache.Set() failed: %v", err)
		}

		if _, err := fx.svc.Resolve(ctx, usr.ID); err != user.ErrPendingApproval {
			t.Errorf("err = %v; want %v", err, user.ErrPendingApproval)
		}
		if _, err := fx.cache.Get(ctx, usr.ID); err != user.ErrCacheMiss {
			t.Errorf("stale profile not evicted: %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := fx.svc.Resolve(ctx, "nope"); err != user.ErrNotFound {
			t.Errorf("err = %v; want %v", err, user.ErrNotFound)
		}
	})
}

func TestService_approve(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "")

	pending := testutil.CreateUser(t, fx.repo, "Ben Reyes", "ben@test.arkibo.ph", "", user.RoleStudent, false)

	usr, err := fx.svc.Approve(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if !usr.Approved || !usr.ApprovedAt.Valid {
		t.Errorf("usr = %+v; want approved", usr)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}
	if got := emailsvc.SentMessages[0].Subject; got != "Account verified" {
		t.Errorf("Subject = %q", got)
	}

	// approving twice is a no-op, no second mail
	if _, err = fx.svc.Approve(ctx, pending.ID); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Errorf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}
}

func TestService_pendingTeacherFlow(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "")

	// an unlisted teacher registers and waits in the same queue as students
	usr, err := fx.svc.Register(ctx, user.NewUser{
		FullName: "Eva Santos", Email: "eva@test.arkibo.ph", Password: "s3cret!", Role: user.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if usr.Approved {
		t.Fatal("Approved = true; want pending")
	}

	if _, err = fx.svc.Authenticate(ctx, usr.Email, "s3cret!"); err != user.ErrPendingApproval {
		t.Errorf("Authenticate() err = %v; want %v", err, user.ErrPendingApproval)
	}

	// the approval queue must surface them to admins
	docs, err := fx.svc.PendingQuery().Load(ctx)
	if err != nil {
		t.Fatalf("PendingQuery().Load() failed: %v", err)
	}
	if len(docs) != 1 || docs[0].DocID() != usr.ID {
		t.Fatalf("pending queue = %v; want [%s]", docs, usr.ID)
	}

	if _, err = fx.svc.Approve(ctx, usr.ID); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if _, err = fx.svc.Authenticate(ctx, usr.Email, "s3cret!"); err != nil {
		t.Errorf("Authenticate() after approval failed: %v", err)
	}
}

func TestService_deny(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "")

	pending := testutil.CreateUser(t, fx.repo, "Ben Reyes", "ben@test.arkibo.ph", "", user.RoleStudent, false)

	if err := fx.svc.Deny(ctx, pending.ID); err != nil {
		t.Fatalf("Deny() failed: %v", err)
	}
	if _, err := fx.svc.GetByID(ctx, pending.ID); err != user.ErrNotFound {
		t.Errorf("err = %v; want %v", err, user.ErrNotFound)
	}
}

func TestService_agreeGuidelines(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "")

	usr := testutil.CreateUser(t, fx.repo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)

	usr, err := fx.svc.AgreeGuidelines(ctx, usr.ID)
	if err != nil {
		t.Fatalf("AgreeGuidelines() failed: %v", err)
	}
	if !usr.GuidelinesAgreed {
		t.Error("GuidelinesAgreed = false; want true")
	}

	// idempotent
	if usr, err = fx.svc.AgreeGuidelines(ctx, usr.ID); err != nil || !usr.GuidelinesAgreed {
		t.Errorf("AgreeGuidelines() = %+v, %v", usr, err)
	}
}

func TestService_checkUniqueness(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, "")

	usr := testutil.CreateUser(t, fx.repo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)

	if err := fx.svc.CheckUniqueness(ctx, "fresh@test.arkibo.ph"); err != nil {
		t.Errorf("CheckUniqueness() = %v; want nil", err)
	}
	if err := fx.svc.CheckUniqueness(ctx, usr.Email); err == nil {
		t.Error("CheckUniqueness() = nil; want validation error")
	}
	// excluding the user themselves (profile update path)
	if err := fx.svc.CheckUniqueness(ctx, usr.Email, usr); err != nil {
		t.Errorf("CheckUniqueness() = %v; want nil", err)
	}
}
