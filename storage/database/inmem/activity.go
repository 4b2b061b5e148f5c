package inmemdb

import (
	"context"
	"sort"

	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/feed"
)

type activityRepository struct {
	db  *activityTable
	bus *feed.Broker
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB, bus *feed.Broker) activity.Repository {
	return &activityRepository{db: db.activity, bus: bus}
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	repo.db.Lock()
	repo.db.activities[act.ID] = &act
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpAdded, Ref: feed.Ref{Collection: activity.Collection}, Doc: act})
	return act, nil
}

func (repo *activityRepository) GetActivity(ctx context.Context, id string) (activity.Activity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if act, ok := repo.db.activities[id]; ok {
		return *act, nil
	}
	return activity.Activity{}, activity.ErrNotFound
}

func (repo *activityRepository) QueryActivities(ctx context.Context, teacherEmail string) ([]activity.Activity, error) {
	repo.db.RLock()
	acts := make([]activity.Activity, 0, len(repo.db.activities))
	for _, act := range repo.db.activities {
		if teacherEmail != "" && act.TeacherEmail != teacherEmail {
			continue
		}
		acts = append(acts, *act)
	}
	repo.db.RUnlock()

	sort.SliceStable(acts, func(i, j int) bool { return acts[i].CreatedAt.After(acts[j].CreatedAt) })
	return acts, nil
}

func (repo *activityRepository) DeleteActivity(ctx context.Context, id string) error {
	repo.db.Lock()
	act, ok := repo.db.activities[id]
	if !ok {
		repo.db.Unlock()
		return activity.ErrNotFound
	}
	deleted := *act
	delete(repo.db.activities, id)
	repo.db.Unlock()

	repo.bus.Publish(feed.Change{Op: feed.OpRemoved, Ref: feed.Ref{Collection: activity.Collection}, Doc: deleted})
	return nil
}

func (repo *activityRepository) SetSubmission(ctx context.Context, activityID string, sub activity.Submission) (activity.Submission, error) {
	repo.db.Lock()
	if repo.db.submissions[activityID] == nil {
		repo.db.submissions[activityID] = make(map[string]*activity.Submission)
	}
	_, existed := repo.db.submissions[activityID][sub.StudentID]
	repo.db.submissions[activityID][sub.StudentID] = &sub
	repo.db.Unlock()

	op := feed.OpAdded
	if existed {
		op = feed.OpModified
	}
	repo.bus.Publish(feed.Change{Op: op, Ref: feed.Ref{Collection: activity.SubmissionsCollection, Parent: activityID}, Doc: sub})
	return sub, nil
}

func (repo *activityRepository) GetSubmission(ctx context.Context, activityID, studentID string) (activity.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[activityID][studentID]; ok {
		return *sub, nil
	}
	return activity.Submission{}, activity.ErrSubmissionNotFound
}

func (repo *activityRepository) QuerySubmissions(ctx context.Context, activityID string) ([]activity.Submission, error) {
	repo.db.RLock()
	subs := make([]activity.Submission, 0, len(repo.db.submissions[activityID]))
	for _, sub := range repo.db.submissions[activityID] {
		subs = append(subs, *sub)
	}
	repo.db.RUnlock()

	sort.SliceStable(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}
