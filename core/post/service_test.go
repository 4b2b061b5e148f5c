package post_test

import (
	"context"
	"testing"

	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/post"
	"github.com/arkibo/backend/core/user"
	"github.com/arkibo/backend/storage/database/inmem"
	"github.com/arkibo/backend/tests"
)

var (
	teacher = user.User{ID: "t1", FullName: "Cita Lim", Email: "cita@test.arkibo.ph", Role: user.RoleTeacher, Approved: true}
	admin   = user.User{ID: "a1", FullName: "Dan Ong", Email: "dan@test.arkibo.ph", Role: user.RoleAdmin, Approved: true}
	student = user.User{ID: "s1", FullName: "Ana Cruz", Email: "ana@test.arkibo.ph", Role: user.RoleStudent, Approved: true}
)

func setup(t *testing.T) post.Service {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	bus := feed.NewBroker(testutil.NopLogger{})
	return post.NewService(inmemdb.NewPostRepository(db, bus))
}

func publish(t *testing.T, svc post.Service) post.Announcement {
	t.Helper()
	ann, err := svc.Publish(context.Background(), teacher, post.NewAnnouncement{Title: "Exam week", Body: "Good luck!"})
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	return ann
}

func TestService_publish(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	// students cannot publish announcements
	if _, err := svc.Publish(ctx, student, post.NewAnnouncement{Title: "x", Body: "y"}); err != post.ErrNotAllowed {
		t.Errorf("err = %v; want %v", err, post.ErrNotAllowed)
	}

	ann := publish(t, svc)
	if ann.AuthorEmail != teacher.Email || ann.AuthorName != teacher.FullName {
		t.Errorf("author = %s <%s>; want the publishing teacher", ann.AuthorName, ann.AuthorEmail)
	}
	if got, err := svc.Get(ctx, ann.ID); err != nil || got.Title != "Exam week" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
}

func TestService_delete(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	ann := publish(t, svc)

	if err := svc.Delete(ctx, student, ann.ID); err != post.ErrNotAllowed {
		t.Errorf("err = %v; want %v", err, post.ErrNotAllowed)
	}
	// admins may delete anyone's announcement
	if err := svc.Delete(ctx, admin, ann.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := svc.Get(ctx, ann.ID); err != post.ErrNotFound {
		t.Errorf("err = %v; want %v", err, post.ErrNotFound)
	}
	if err := svc.Delete(ctx, admin, ann.ID); err != post.ErrNotFound {
		t.Errorf("err = %v; want %v", err, post.ErrNotFound)
	}
}

func TestService_commentsAndReplies(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	ann := publish(t, svc)

	if _, err := svc.Comment(ctx, student, "nope", post.NewComment{Body: "hi"}); err != post.ErrNotFound {
		t.Errorf("err = %v; want %v", err, post.ErrNotFound)
	}

	c, err := svc.Comment(ctx, student, ann.ID, post.NewComment{Body: "Thanks po!"})
	if err != nil {
		t.Fatalf("Comment() failed: %v", err)
	}
	if c.UID != student.ID || c.ByEmail != student.Email {
		t.Errorf("comment author = %+v; want the student", c)
	}

	r, err := svc.Reply(ctx, teacher, c.ID, post.NewComment{Body: "Welcome!"})
	if err != nil {
		t.Fatalf("Reply() failed: %v", err)
	}

	// only the author or an admin may delete
	if err = svc.DeleteReply(ctx, student, c.ID, r.ID); err != post.ErrNotAllowed {
		t.Errorf("err = %v; want %v", err, post.ErrNotAllowed)
	}
	if err = svc.DeleteReply(ctx, teacher, c.ID, r.ID); err != nil {
		t.Fatalf("DeleteReply() failed: %v", err)
	}
	if err = svc.DeleteComment(ctx, teacher, ann.ID, c.ID); err != post.ErrNotAllowed {
		t.Errorf("err = %v; want %v", err, post.ErrNotAllowed)
	}
	if err = svc.DeleteComment(ctx, admin, ann.ID, c.ID); err != nil {
		t.Fatalf("DeleteComment() failed: %v", err)
	}
}

func TestService_toggleReaction(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	ann := publish(t, svc)

	counts := func() map[string]int {
		c, err := svc.ReactionCounts(ctx, ann.ID)
		if err != nil {
			t.Fatalf("ReactionCounts() failed: %v", err)
		}
		return c
	}

	if got := counts(); got[post.ReactionLike]+got[post.ReactionLove]+got[post.ReactionClap] != 0 {
		t.Errorf("counts = %v; want all zero", got)
	}

	if err := svc.ToggleReaction(ctx, student, ann.ID, "meh"); err != post.ErrNotAllowed {
		t.Errorf("err = %v; want %v", err, post.ErrNotAllowed)
	}

	// set
	if err := svc.ToggleReaction(ctx, student, ann.ID, post.ReactionLike); err != nil {
		t.Fatalf("ToggleReaction() failed: %v", err)
	}
	if got := counts(); got[post.ReactionLike] != 1 {
		t.Errorf("counts = %v; want one like", got)
	}

	// a different type replaces: still exactly one reaction per user
	if err := svc.ToggleReaction(ctx, student, ann.ID, post.ReactionLove); err != nil {
		t.Fatalf("ToggleReaction() failed: %v", err)
	}
	if got := counts(); got[post.ReactionLike] != 0 || got[post.ReactionLove] != 1 {
		t.Errorf("counts = %v; want one love, no like", got)
	}

	// a second user's reaction counts separately
	if err := svc.ToggleReaction(ctx, teacher, ann.ID, post.ReactionLove); err != nil {
		t.Fatalf("ToggleReaction() failed: %v", err)
	}
	if got := counts(); got[post.ReactionLove] != 2 {
		t.Errorf("counts = %v; want two loves", got)
	}

	// the same type again removes
	if err := svc.ToggleReaction(ctx, student, ann.ID, post.ReactionLove); err != nil {
		t.Fatalf("ToggleReaction() failed: %v", err)
	}
	if got := counts(); got[post.ReactionLove] != 1 {
		t.Errorf("counts = %v; want one love left", got)
	}
}
