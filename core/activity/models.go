package activity

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/feed"
)

// Feed collection names.
const (
	Collection            = "activities"
	SubmissionsCollection = "submissions" // parent: activity ID
)

type Activity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	YearSubject  string    `json:"year_subject"` // e.g. "Grade 10 - Science"
	Link         string    `json:"link"`
	Deadline     null.Time `json:"deadline"`
	TeacherName  string    `json:"teacher_name"`
	TeacherEmail string    `json:"teacher_email"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

func (a Activity) DocID() string { return a.ID }

// Submission is one student's answer to an activity; its ID is the student's
// user ID so resubmitting replaces the previous answer instead of stacking.
type Submission struct {
	StudentID    string    `json:"student_id"` // also the doc ID
	StudentName  string    `json:"student_name"`
	StudentEmail string    `json:"student_email"`
	Link         string    `json:"link"`
	Text         string    `json:"text"`
	SubmittedAt  time.Time `json:"submitted_at"` // UTC; refreshed on resubmit
	Grade        *Grade    `json:"grade,omitempty"`
}

func (s Submission) DocID() string { return s.StudentID }

func (s Submission) Graded() bool { return s.Grade != nil }

// Grade is attached to a submission once a teacher marks it.
type Grade struct {
	Value    int       `json:"value"` // 0..100
	Remarks  string    `json:"remarks"`
	GradedBy string    `json:"graded_by"` // teacher email
	GradedAt time.Time `json:"graded_at"` // UTC
}

type NewActivity struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	YearSubject string    `json:"year_subject" validate:"required"`
	Link        string    `json:"link" validate:"omitempty,url"`
	Deadline    null.Time `json:"deadline"`
}

func (na *NewActivity) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.YearSubject = core.CleanString(na.YearSubject)
	na.Link = core.CleanString(na.Link)
	return core.Validate.Struct(na)
}

// NewSubmission needs a link or a text answer, not necessarily both.
type NewSubmission struct {
	Link string `json:"link" validate:"omitempty,url"`
	Text string `json:"text"`
}

func (ns *NewSubmission) Validate() error {
	ns.Link = core.CleanString(ns.Link)
	ns.Text = core.CleanString(ns.Text)
	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if ns.Link == "" && ns.Text == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "link", Error: "a link or a text answer is required"})
	}
	return nil
}

type NewGrade struct {
	Value   int    `json:"value" validate:"min=0,max=100"`
	Remarks string `json:"remarks"`
}

func (ng *NewGrade) Validate() error {
	ng.Remarks = core.CleanString(ng.Remarks)
	return core.Validate.Struct(ng)
}

// Ordering keys.

func ByCreatedAtDesc(a, b feed.Document) bool {
	return a.(Activity).CreatedAt.After(b.(Activity).CreatedAt)
}

func SubmissionsBySubmittedAt(a, b feed.Document) bool {
	return a.(Submission).SubmittedAt.Before(b.(Submission).SubmittedAt)
}
