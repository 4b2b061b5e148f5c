package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/feed"
)

// Collection is the feed collection name of user profiles.
const Collection = "users"

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrPendingApproval = errors.New("account is pending verification by an administrator")
	ErrCacheMiss       = errors.New("profile not cached")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	// ConfigRepository reads/writes the approvedTeachers document of the
	// config collection.
	ConfigRepository interface {
		GetApprovedTeachers(ctx context.Context) ([]string, error)
		SetApprovedTeachers(ctx context.Context, emails []string) error
	}

	// ProfileCache is the read-through cache in front of Resolve.
	// Implementations return ErrCacheMiss when the profile is not cached.
	ProfileCache interface {
		Get(ctx context.Context, id string) (User, error)
		Set(ctx context.Context, usr User) error
		Delete(ctx context.Context, id string) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		Resolve(ctx context.Context, id string) (User, error)
		EvictProfile(ctx context.Context, id string)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Filter(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Approve(ctx context.Context, id string) (User, error)
		Deny(ctx context.Context, id string) error
		AgreeGuidelines(ctx context.Context, id string) (User, error)
		PendingQuery() feed.Query
		LeaderboardQuery(limit int) feed.Query
	}

	service struct {
		repo    Repository
		cfgRepo ConfigRepository
		cache   ProfileCache
		mailSvc core.EmailService
		conf    *core.Config
		log     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	cfgRepo ConfigRepository,
	cache ProfileCache,
	mailSvc core.EmailService,
	conf *core.Config,
	log core.Logger,
) Service {
	return &service{
		repo:    repo,
		cfgRepo: cfgRepo,
		cache:   cache,
		mailSvc: mailSvc,
		conf:    conf,
		log:     log,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a new account. Students start unapproved and wait for an
// admin; teachers are approved right away only when their email is on the
// approved teachers list, otherwise they wait in the same approval queue.
// A teacher registering with the configured owner email becomes the admin
// account.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		FullName:  nu.FullName,
		Email:     nu.Email,
		Role:      nu.Role,
		LRN:       nu.LRN,
		Section:   nu.Section,
		CreatedAt: now,
	}
	if usr.Role == RoleTeacher {
		if svc.conf.OwnerEmail != "" && usr.Email == svc.conf.OwnerEmail {
			usr.Role = RoleAdmin
			usr.Approved = true
			usr.ApprovedAt.SetValid(now)
		} else if listed, err := svc.teacherIsListed(ctx, usr.Email); err != nil {
			return User{}, err
		} else if listed {
			usr.Approved = true
			usr.ApprovedAt.SetValid(now)
		}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.sendVerificationMail(usr)
	return usr, nil
}

// Authenticate checks the credentials and the approval gate. An unapproved
// account never authenticates, matching the resolver behavior.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, err
	}
	if !usr.Approved {
		return User{}, ErrPendingApproval
	}

	usr.LastLogin.SetValid(time.Now().UTC())
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.cacheProfile(ctx, usr)
	return usr, nil
}

// Resolve returns the current user's profile, preferring the cache. The
// approval gate is re-checked on the cached copy too: a pending profile is
// evicted and refused rather than returned half-valid.
func (svc *service) Resolve(ctx context.Context, id string) (User, error) {
	if usr, err := svc.cache.Get(ctx, id); err == nil {
		if !usr.Approved {
			_ = svc.cache.Delete(ctx, id)
			return User{}, ErrPendingApproval
		}
		return usr, nil
	} else if err != ErrCacheMiss {
		svc.log.Warn("user: profile cache read failed", err)
	}

	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.Approved {
		return User{}, ErrPendingApproval
	}
	svc.cacheProfile(ctx, usr)
	return usr, nil
}

// EvictProfile drops the cached profile so the next Resolve re-reads it.
func (svc *service) EvictProfile(ctx context.Context, id string) {
	if err := svc.cache.Delete(ctx, id); err != nil {
		svc.log.Warn("user: profile cache eviction failed", err)
	}
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.FullName = uu.FullName
	if uu.Section != "" {
		usr.Section = uu.Section
	}
	if uu.GradeLevel != "" {
		usr.GradeLevel = uu.GradeLevel
	}
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.cacheProfile(ctx, usr)
	return usr, nil
}

// Approve marks a pending account verified and notifies them by email.
func (svc *service) Approve(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.Approved {
		return usr, nil
	}
	usr.Approved = true
	usr.ApprovedAt.SetValid(time.Now().UTC())
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.EvictProfile(ctx, usr.ID)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject: "Account verified",
		BodyStr: fmt.Sprintf("Hi %s,\n\nYour %s account has been verified. You can now log in.", usr.FullName, svc.conf.AppName),
	})
	return usr, nil
}

// Deny removes a pending account.
func (svc *service) Deny(ctx context.Context, id string) error {
	if err := svc.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	svc.EvictProfile(ctx, id)
	return nil
}

func (svc *service) AgreeGuidelines(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.GuidelinesAgreed {
		return usr, nil
	}
	usr.GuidelinesAgreed = true
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.cacheProfile(ctx, usr)
	return usr, nil
}

// PendingQuery is the live approval queue: every unapproved account, newest
// first. Unlisted teachers wait here alongside students.
func (svc *service) PendingQuery() feed.Query {
	approved := false
	filter := QueryFilter{Approved: &approved}
	return feed.Query{
		Ref: feed.Ref{Collection: Collection},
		Filter: func(doc feed.Document) bool {
			usr, ok := doc.(User)
			return ok && !usr.Approved
		},
		Less: ByCreatedAtDesc,
		Load: svc.loadFunc(filter),
	}
}

// LeaderboardQuery is the live star points leaderboard: approved students
// ordered by points, top `limit`.
func (svc *service) LeaderboardQuery(limit int) feed.Query {
	approved := true
	filter := QueryFilter{Role: RoleStudent, Approved: &approved, OrderByPoints: true, Limit: limit}
	return feed.Query{
		Ref: feed.Ref{Collection: Collection},
		Filter: func(doc feed.Document) bool {
			usr, ok := doc.(User)
			return ok && usr.IsStudent() && usr.Approved
		},
		Less:  ByStarPointsDesc,
		Limit: limit,
		Load:  svc.loadFunc(filter),
	}
}

func (svc *service) loadFunc(filter QueryFilter) feed.LoadFunc {
	return func(ctx context.Context) ([]feed.Document, error) {
		users, err := svc.repo.FilterUsers(ctx, filter)
		if err != nil {
			return nil, err
		}
		docs := make([]feed.Document, 0, len(users))
		for _, usr := range users {
			docs = append(docs, usr)
		}
		return docs, nil
	}
}

func (svc *service) teacherIsListed(ctx context.Context, email string) (bool, error) {
	emails, err := svc.cfgRepo.GetApprovedTeachers(ctx)
	if err != nil {
		return false, err
	}
	return core.ContainsString(emails, email), nil
}

func (svc *service) cacheProfile(ctx context.Context, usr User) {
	if err := svc.cache.Set(ctx, usr); err != nil {
		svc.log.Warn("user: profile cache write failed", err)
	}
}

func (svc *service) sendVerificationMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject: "Verify your email",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nWelcome to %s! Please verify your email address at %s/verify.\n\nUnless pre-approved, accounts also require verification by an administrator before first login.",
			usr.FullName, svc.conf.AppName, svc.conf.FrontendBaseURL,
		),
	})
}

// Ordering keys shared by queries over the users collection.

func ByCreatedAtDesc(a, b feed.Document) bool {
	return a.(User).CreatedAt.After(b.(User).CreatedAt)
}

func ByStarPointsDesc(a, b feed.Document) bool {
	ua, ub := a.(User), b.(User)
	if ua.StarPoints != ub.StarPoints {
		return ua.StarPoints > ub.StarPoints
	}
	return ua.CreatedAt.Before(ub.CreatedAt) // stable tie-break
}
