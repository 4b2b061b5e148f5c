package forum_test

import (
	"context"
	"strings"
	"testing"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/forum"
	"github.com/arkibo/backend/core/user"
	"github.com/arkibo/backend/storage/database/inmem"
	"github.com/arkibo/backend/tests"
)

var (
	student = user.User{ID: "s1", FullName: "Ana Cruz", Email: "ana@test.arkibo.ph", Role: user.RoleStudent, Approved: true, GuidelinesAgreed: true}
	lurker  = user.User{ID: "s2", FullName: "Ben Reyes", Email: "ben@test.arkibo.ph", Role: user.RoleStudent, Approved: true} // never agreed
	admin   = user.User{ID: "a1", FullName: "Dan Ong", Email: "dan@test.arkibo.ph", Role: user.RoleAdmin, Approved: true, GuidelinesAgreed: true}
)

func setup(t *testing.T) forum.Service {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	bus := feed.NewBroker(testutil.NopLogger{})
	return forum.NewService(inmemdb.NewForumRepository(db, bus))
}

func publish(t *testing.T, svc forum.Service, author user.User) forum.Post {
	t.Helper()
	p, err := svc.Publish(context.Background(), author, forum.NewPost{Title: "Study group?", Body: "Anyone up for math review?"})
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	return p
}

func TestService_guidelinesGate(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	if _, err := svc.Publish(ctx, lurker, forum.NewPost{Title: "x", Body: "y"}); err != forum.ErrGuidelinesRequired {
		t.Errorf("Publish() err = %v; want %v", err, forum.ErrGuidelinesRequired)
	}

	p := publish(t, svc, student)
	if _, err := svc.Comment(ctx, lurker, p.ID, forum.NewComment{Body: "hi"}); err != forum.ErrGuidelinesRequired {
		t.Errorf("Comment() err = %v; want %v", err, forum.ErrGuidelinesRequired)
	}
}

func TestService_counters(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	p := publish(t, svc, student)

	if _, err := svc.Like(ctx, "nope"); err != forum.ErrNotFound {
		t.Errorf("err = %v; want %v", err, forum.ErrNotFound)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Like(ctx, p.ID); err != nil {
			t.Fatalf("Like() failed: %v", err)
		}
	}
	got, err := svc.Dislike(ctx, p.ID)
	if err != nil {
		t.Fatalf("Dislike() failed: %v", err)
	}
	if got.Likes != 3 || got.Dislikes != 1 {
		t.Errorf("counters = %d/%d; want 3/1", got.Likes, got.Dislikes)
	}
}

func TestService_comments(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	p := publish(t, svc, student)

	if _, err := svc.Comment(ctx, student, "nope", forum.NewComment{Body: "hi"}); err != forum.ErrNotFound {
		t.Errorf("err = %v; want %v", err, forum.ErrNotFound)
	}

	c, err := svc.Comment(ctx, admin, p.ID, forum.NewComment{Body: "Count me in."})
	if err != nil {
		t.Fatalf("Comment() failed: %v", err)
	}
	if c.Body != "Count me in." {
		t.Errorf("Body = %q", c.Body)
	}

	// replies are flattened into the same collection with a body prefix
	r, err := svc.Comment(ctx, student, p.ID, forum.NewComment{Body: "See you there.", ReplyTo: admin.FullName})
	if err != nil {
		t.Fatalf("Comment() failed: %v", err)
	}
	if want := "[Reply to Dan Ong] See you there."; r.Body != want {
		t.Errorf("Body = %q; want %q", r.Body, want)
	}
	if !strings.HasPrefix(r.Body, "[Reply to ") {
		t.Errorf("reply not flattened: %q", r.Body)
	}
}

func TestService_delete(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	p := publish(t, svc, student)

	// another member may not delete it; its author and admins may
	if err := svc.Delete(ctx, lurker, p.ID); err != forum.ErrNotAllowed {
		t.Errorf("err = %v; want %v", err, forum.ErrNotAllowed)
	}
	if err := svc.Delete(ctx, admin, p.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); err != forum.ErrNotFound {
		t.Errorf("err = %v; want %v", err, forum.ErrNotFound)
	}
}
