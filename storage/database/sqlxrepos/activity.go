package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/feed"
)

type activityRepository struct {
	db  *sqlx.DB
	bus *feed.Broker
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB, bus *feed.Broker) activity.Repository {
	return &activityRepository{db: db, bus: bus}
}

type activityRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	YearSubject  string    `db:"year_subject"`
	Link         string    `db:"link"`
	Deadline     null.Time `db:"deadline"`
	TeacherName  string    `db:"teacher_name"`
	TeacherEmail string    `db:"teacher_email"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r activityRow) activity() activity.Activity {
	return activity.Activity(r)
}

type submissionRow struct {
	ActivityID   string      `db:"activity_id"`
	StudentID    string      `db:"student_id"`
	StudentName  string      `db:"student_name"`
	StudentEmail string      `db:"student_email"`
	Link         string      `db:"link"`
	Text         string      `db:"text"`
	SubmittedAt  time.Time   `db:"submitted_at"`
	GradeValue   null.Int    `db:"grade_value"`
	GradeRemarks null.String `db:"grade_remarks"`
	GradedBy     null.String `db:"graded_by"`
	GradedAt     null.Time   `db:"graded_at"`
}

func (r submissionRow) submission() activity.Submission {
	sub := activity.Submission{
		StudentID:    r.StudentID,
		StudentName:  r.StudentName,
		StudentEmail: r.StudentEmail,
		Link:         r.Link,
		Text:         r.Text,
		SubmittedAt:  r.SubmittedAt,
	}
	if r.GradeValue.Valid {
		sub.Grade = &activity.Grade{
			Value:    r.GradeValue.Int,
			Remarks:  r.GradeRemarks.String,
			GradedBy: r.GradedBy.String,
			GradedAt: r.GradedAt.Time,
		}
	}
	return sub
}

func newSubmissionRow(activityID string, sub activity.Submission) submissionRow {
	row := submissionRow{
		ActivityID:   activityID,
		StudentID:    sub.StudentID,
		StudentName:  sub.StudentName,
		StudentEmail: sub.StudentEmail,
		Link:         sub.Link,
		Text:         sub.Text,
		SubmittedAt:  sub.SubmittedAt,
	}
	if sub.Grade != nil {
		row.GradeValue = null.IntFrom(sub.Grade.Value)
		row.GradeRemarks = null.StringFrom(sub.Grade.Remarks)
		row.GradedBy = null.StringFrom(sub.Grade.GradedBy)
		row.GradedAt = null.TimeFrom(sub.Grade.GradedAt)
	}
	return row
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	query := `
		INSERT INTO activities (id, title, description, year_subject, link, deadline, teacher_name, teacher_email, created_at)
		VALUES (:id, :title, :description, :year_subject, :link, :deadline, :teacher_name, :teacher_email, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, activityRow(act)); err != nil {
		return activity.Activity{}, errors.Wrap(err, "creating activity")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: activity.Collection}, Doc: act})
	return act, nil
}

func (repo *activityRepository) GetActivity(ctx context.Context, id string) (activity.Activity, error) {
	var row activityRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM activities WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return activity.Activity{}, activity.ErrNotFound
	case err != nil:
		return activity.Activity{}, errors.Wrap(err, "getting activity")
	}
	return row.activity(), nil
}

func (repo *activityRepository) QueryActivities(ctx context.Context, teacherEmail string) ([]activity.Activity, error) {
	query := `SELECT * FROM activities ORDER BY created_at DESC`
	var args []interface{}
	if teacherEmail != "" {
		query = `SELECT * FROM activities WHERE teacher_email = $1 ORDER BY created_at DESC`
		args = append(args, teacherEmail)
	}

	var rows []activityRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	acts := make([]activity.Activity, 0, len(rows))
	for _, row := range rows {
		acts = append(acts, row.activity())
	}
	return acts, nil
}

func (repo *activityRepository) DeleteActivity(ctx context.Context, id string) error {
	act, err := repo.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	if _, err = repo.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: activity.Collection}, Doc: act})
	return nil
}

// SetSubmission upserts on (activity_id, student_id): one answer per student.
func (repo *activityRepository) SetSubmission(ctx context.Context, activityID string, sub activity.Submission) (activity.Submission, error) {
	_, err := repo.GetSubmission(ctx, activityID, sub.StudentID)
	existed := err == nil
	if err != nil && err != activity.ErrSubmissionNotFound {
		return activity.Submission{}, err
	}

	query := `
		INSERT INTO submissions (activity_id, student_id, student_name, student_email, link, text,
			submitted_at, grade_value, grade_remarks, graded_by, graded_at)
		VALUES (:activity_id, :student_id, :student_name, :student_email, :link, :text,
			:submitted_at, :grade_value, :grade_remarks, :graded_by, :graded_at)
		ON CONFLICT (activity_id, student_id) DO UPDATE SET
			link = EXCLUDED.link, text = EXCLUDED.text, submitted_at = EXCLUDED.submitted_at,
			grade_value = EXCLUDED.grade_value, grade_remarks = EXCLUDED.grade_remarks,
			graded_by = EXCLUDED.graded_by, graded_at = EXCLUDED.graded_at`
	if _, err = repo.db.NamedExecContext(ctx, query, newSubmissionRow(activityID, sub)); err != nil {
		return activity.Submission{}, errors.Wrap(err, "setting submission")
	}

	op := feed.OpAdded
	if existed {
		op = feed.OpModified
	}
	repo.bus.Publish(feed.Change{Op: op, Ref: feed.Ref{Collection: activity.SubmissionsCollection, Parent: activityID}, Doc: sub})
	return sub, nil
}

func (repo *activityRepository) GetSubmission(ctx context.Context, activityID, studentID string) (activity.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM submissions WHERE activity_id = $1 AND student_id = $2`, activityID, studentID)
	switch {
	case err == sql.ErrNoRows:
		return activity.Submission{}, activity.ErrSubmissionNotFound
	case err != nil:
		return activity.Submission{}, errors.Wrap(err, "getting submission")
	}
	return row.submission(), nil
}

func (repo *activityRepository) QuerySubmissions(ctx context.Context, activityID string) ([]activity.Submission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM submissions WHERE activity_id = $1 ORDER BY submitted_at ASC`, activityID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]activity.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}
