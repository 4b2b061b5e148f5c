package user

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/arkibo/backend/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

type User struct {
	ID               string    `json:"id"`
	FullName         string    `json:"full_name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Approved         bool      `json:"approved"`
	ApprovedAt       null.Time `json:"approved_at,omitempty"`
	LRN              string    `json:"lrn,omitempty"` // students only
	Section          string    `json:"section,omitempty"`
	GradeLevel       string    `json:"grade_level,omitempty"`
	StarPoints       int       `json:"star_points"`
	GuidelinesAgreed bool      `json:"guidelines_agreed"`
	PasswordHash     []byte    `json:"-"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	LastLogin        null.Time `json:"last_login,omitempty"`
}

// DocID makes User a feed.Document so the approval queue and the leaderboard
// can be watched live.
func (u User) DocID() string { return u.ID }

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// CanPost reports whether the user may publish announcements and activities.
func (u *User) CanPost() bool { return u.IsTeacher() || u.IsAdmin() }

// NewUser contains information needed to register a new User.
type NewUser struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=student teacher"`
	LRN             string `json:"lrn" validate:"omitempty,alphanum_"`
	Section         string `json:"section"`
}

func (nu *NewUser) Validate(ctx context.Context, svc Service) error {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.LRN = core.CleanString(nu.LRN)
	nu.Section = core.CleanString(nu.Section)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	if nu.Role == RoleStudent && (nu.LRN == "" || nu.Section == "") {
		return core.NewValidationError(nil,
			core.FieldError{Field: "lrn", Error: "LRN and section are required for students"},
		)
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	FullName   string `json:"full_name"`
	Section    string `json:"section"`
	GradeLevel string `json:"grade_level"`
}

func (uu *UpdateUser) Validate(origUsr User) error {
	if name := core.CleanString(uu.FullName); name != "" {
		uu.FullName = name
	} else {
		uu.FullName = origUsr.FullName
	}
	uu.Section = core.CleanString(uu.Section)
	uu.GradeLevel = core.CleanString(uu.GradeLevel)
	return core.Validate.Struct(uu)
}

type QueryFilter struct {
	Role          string `query:"role"`
	Approved      *bool  `query:"approved"`
	Section       string `query:"section"`
	OrderByPoints bool   `query:"-"` // star points desc; default is created_at desc
	Limit         int    `query:"limit"`
}
