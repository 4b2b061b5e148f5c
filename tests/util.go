package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/user"
)

// NewConfig returns the app configuration used by tests: TEST mode, no debug
// echoes, short-ish JWT deltas.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Arkibo",
		Env:              "TEST",
		TestMode:         true,
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Arkibo", Address: "noreply@test.arkibo.ph"},
		AdminEmail:       "admin@test.arkibo.ph",
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTSessionExpirationDelta: 12 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	approved bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        email, // deterministic IDs keep failures readable
		FullName:  name,
		Email:     email,
		Role:      role,
		Approved:  approved,
		CreatedAt: tstamp,
	}
	if approved {
		usr.ApprovedAt.SetValid(tstamp)
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Diff renders a unified diff of two payloads for failure messages.
func Diff(want, got string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}

// NopLogger discards everything; services under test still get a core.Logger.
type NopLogger struct{}

var _ core.Logger = (*NopLogger)(nil)

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
