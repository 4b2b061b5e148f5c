package inmemdb

import (
	"sync"

	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/forum"
	"github.com/arkibo/backend/core/notification"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/post"
	"github.com/arkibo/backend/core/user"
)

// DB is the in-memory store backing tests and local development. Each table
// guards its own maps; repositories publish the same feed changes the SQL
// implementations do, so live queries behave identically against either.
type (
	DB struct {
		user         *userTable
		config       *configTable
		post         *postTable
		forum        *forumTable
		activity     *activityTable
		points       *pointsTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	configTable struct {
		sync.RWMutex
		approvedTeachers []string
	}

	postTable struct {
		sync.RWMutex
		announcements map[string]*post.Announcement
		comments      map[string]map[string]*post.Comment  // announcement ID -> comment ID
		replies       map[string]map[string]*post.Reply    // comment ID -> reply ID
		reactions     map[string]map[string]*post.Reaction // announcement ID -> user ID
	}

	forumTable struct {
		sync.RWMutex
		posts    map[string]*forum.Post
		comments map[string]map[string]*forum.Comment // post ID -> comment ID
	}

	activityTable struct {
		sync.RWMutex
		activities  map[string]*activity.Activity
		submissions map[string]map[string]*activity.Submission // activity ID -> student ID
	}

	pointsTable struct {
		sync.RWMutex
		entries []points.Entry
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		config: &configTable{},
		post: &postTable{
			announcements: make(map[string]*post.Announcement),
			comments:      make(map[string]map[string]*post.Comment),
			replies:       make(map[string]map[string]*post.Reply),
			reactions:     make(map[string]map[string]*post.Reaction),
		},
		forum: &forumTable{
			posts:    make(map[string]*forum.Post),
			comments: make(map[string]map[string]*forum.Comment),
		},
		activity: &activityTable{
			activities:  make(map[string]*activity.Activity),
			submissions: make(map[string]map[string]*activity.Submission),
		},
		points:       &pointsTable{},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
	return db, nil
}
