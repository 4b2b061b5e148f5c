package activity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/notification"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("activity not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNotAllowed         = errors.New("not allowed")
	ErrAlreadyGraded      = errors.New("submission already graded")
	ErrDeadlinePassed     = errors.New("activity deadline has passed")
)

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		GetActivity(ctx context.Context, id string) (Activity, error)
		QueryActivities(ctx context.Context, teacherEmail string) ([]Activity, error)
		DeleteActivity(ctx context.Context, id string) error

		// SetSubmission creates or replaces the student's submission.
		SetSubmission(ctx context.Context, activityID string, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, activityID, studentID string) (Submission, error)
		QuerySubmissions(ctx context.Context, activityID string) ([]Submission, error)
	}

	Service interface {
		Create(ctx context.Context, teacher user.User, na NewActivity) (Activity, error)
		Get(ctx context.Context, id string) (Activity, error)
		Delete(ctx context.Context, viewer user.User, id string) error

		Submit(ctx context.Context, student user.User, activityID string, ns NewSubmission) (Submission, error)
		GetSubmission(ctx context.Context, activityID, studentID string) (Submission, error)
		ListSubmissions(ctx context.Context, viewer user.User, activityID string) ([]Submission, error)

		// GradeSubmission marks a submission and awards the grade's worth of
		// star points to the student.
		GradeSubmission(ctx context.Context, grader user.User, activityID, studentID string, ng NewGrade) (Submission, error)

		ActivitiesQuery() feed.Query
		TeacherActivitiesQuery(teacherEmail string) feed.Query
		SubmissionsQuery(activityID string) feed.Query
	}

	service struct {
		repo     Repository
		ledger   points.Ledger
		notifSvc notification.Service
		log      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, ledger points.Ledger, notifSvc notification.Service, log core.Logger) Service {
	return &service{
		repo:     repo,
		ledger:   ledger,
		notifSvc: notifSvc,
		log:      log,
	}
}

func (svc *service) Create(ctx context.Context, teacher user.User, na NewActivity) (Activity, error) {
	if !teacher.CanPost() {
		return Activity{}, ErrNotAllowed
	}
	act := Activity{
		ID:           uuid.New().String(),
		Title:        na.Title,
		Description:  na.Description,
		YearSubject:  na.YearSubject,
		Link:         na.Link,
		Deadline:     na.Deadline,
		TeacherName:  teacher.FullName,
		TeacherEmail: teacher.Email,
		CreatedAt:    time.Now().UTC(),
	}
	return svc.repo.CreateActivity(ctx, act)
}

func (svc *service) Get(ctx context.Context, id string) (Activity, error) {
	return svc.repo.GetActivity(ctx, id)
}

func (svc *service) Delete(ctx context.Context, viewer user.User, id string) error {
	act, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin() && viewer.Email != act.TeacherEmail {
		return ErrNotAllowed
	}
	return svc.repo.DeleteActivity(ctx, id)
}

// Submit records the student's answer, replacing any previous one. A graded
// submission can no longer be replaced, and the deadline is enforced when set.
func (svc *service) Submit(ctx context.Context, student user.User, activityID string, ns NewSubmission) (Submission, error) {
	if !student.IsStudent() {
		return Submission{}, ErrNotAllowed
	}
	act, err := svc.repo.GetActivity(ctx, activityID)
	if err != nil {
		return Submission{}, err
	}
	if act.Deadline.Valid && time.Now().UTC().After(act.Deadline.Time) {
		return Submission{}, ErrDeadlinePassed
	}
	if prev, err := svc.repo.GetSubmission(ctx, activityID, student.ID); err == nil && prev.Graded() {
		return Submission{}, ErrAlreadyGraded
	} else if err != nil && err != ErrSubmissionNotFound {
		return Submission{}, err
	}

	sub := Submission{
		StudentID:    student.ID,
		StudentName:  student.FullName,
		StudentEmail: student.Email,
		Link:         ns.Link,
		Text:         ns.Text,
		SubmittedAt:  time.Now().UTC(),
	}
	sub, err = svc.repo.SetSubmission(ctx, activityID, sub)
	if err != nil {
		return Submission{}, err
	}

	if _, err = svc.notifSvc.Notify(ctx, act.TeacherEmail, "submission",
		"%s submitted an answer to %q.", student.FullName, act.Title); err != nil {
		svc.log.Warn("activity: submission notification failed", err)
	}
	return sub, nil
}

func (svc *service) GetSubmission(ctx context.Context, activityID, studentID string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, activityID, studentID)
}

// ListSubmissions is restricted to the owning teacher and admins; students see
// only their own submission via GetSubmission.
func (svc *service) ListSubmissions(ctx context.Context, viewer user.User, activityID string) ([]Submission, error) {
	act, err := svc.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && viewer.Email != act.TeacherEmail {
		return nil, ErrNotAllowed
	}
	return svc.repo.QuerySubmissions(ctx, activityID)
}

// GradeSubmission attaches the grade, notifies the student and awards star
// points matching the grade value. Grading is one-shot.
func (svc *service) GradeSubmission(ctx context.Context, grader user.User, activityID, studentID string, ng NewGrade) (Submission, error) {
	act, err := svc.repo.GetActivity(ctx, activityID)
	if err != nil {
		return Submission{}, err
	}
	if !grader.IsAdmin() && grader.Email != act.TeacherEmail {
		return Submission{}, ErrNotAllowed
	}
	sub, err := svc.repo.GetSubmission(ctx, activityID, studentID)
	if err != nil {
		return Submission{}, err
	}
	if sub.Graded() {
		return Submission{}, ErrAlreadyGraded
	}

	sub.Grade = &Grade{
		Value:    ng.Value,
		Remarks:  ng.Remarks,
		GradedBy: grader.Email,
		GradedAt: time.Now().UTC(),
	}
	sub, err = svc.repo.SetSubmission(ctx, activityID, sub)
	if err != nil {
		return Submission{}, err
	}

	if err = svc.ledger.Award(ctx, studentID, ng.Value, "activity: "+act.Title); err != nil {
		svc.log.Error("activity: star points award failed", err)
	}
	if _, err = svc.notifSvc.Notify(ctx, sub.StudentEmail, "grade",
		"Your submission to %q was graded %d/100.", act.Title, ng.Value); err != nil {
		svc.log.Warn("activity: grade notification failed", err)
	}
	return sub, nil
}

func (svc *service) ActivitiesQuery() feed.Query {
	return feed.Query{
		Ref:  feed.Ref{Collection: Collection},
		Less: ByCreatedAtDesc,
		Load: svc.loadFunc(""),
	}
}

// TeacherActivitiesQuery narrows the live feed to one teacher's activities.
func (svc *service) TeacherActivitiesQuery(teacherEmail string) feed.Query {
	teacherEmail = core.CleanString(teacherEmail, true /* lower */)
	return feed.Query{
		Ref: feed.Ref{Collection: Collection},
		Filter: func(doc feed.Document) bool {
			act, ok := doc.(Activity)
			return ok && act.TeacherEmail == teacherEmail
		},
		Less: ByCreatedAtDesc,
		Load: svc.loadFunc(teacherEmail),
	}
}

func (svc *service) SubmissionsQuery(activityID string) feed.Query {
	return feed.Query{
		Ref:  feed.Ref{Collection: SubmissionsCollection, Parent: activityID},
		Less: SubmissionsBySubmittedAt,
		Load: func(ctx context.Context) ([]feed.Document, error) {
			subs, err := svc.repo.QuerySubmissions(ctx, activityID)
			if err != nil {
				return nil, err
			}
			docs := make([]feed.Document, 0, len(subs))
			for _, s := range subs {
				docs = append(docs, s)
			}
			return docs, nil
		},
	}
}

func (svc *service) loadFunc(teacherEmail string) feed.LoadFunc {
	return func(ctx context.Context) ([]feed.Document, error) {
		acts, err := svc.repo.QueryActivities(ctx, teacherEmail)
		if err != nil {
			return nil, err
		}
		docs := make([]feed.Document, 0, len(acts))
		for _, a := range acts {
			docs = append(docs, a)
		}
		return docs, nil
	}
}
