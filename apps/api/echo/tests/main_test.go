package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/arkibo/backend/apps/api/echo"
	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/forum"
	"github.com/arkibo/backend/core/notification"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/post"
	"github.com/arkibo/backend/core/user"
	"github.com/arkibo/backend/services/cache"
	"github.com/arkibo/backend/services/email"
	"github.com/arkibo/backend/storage/database/inmem"
	"github.com/arkibo/backend/tests"
)

var (
	conf *core.Config
	app  Server

	usrRepo  user.Repository
	cfgRepo  user.ConfigRepository
	userSvc  user.Service
	postSvc  post.Service
	forumSvc forum.Service
	actSvc   activity.Service
	notifSvc notification.Service
	ledger   points.Ledger

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

// setup rebuilds the whole stack on a fresh in-memory store.
func setup(t *testing.T) Server {
	t.Helper()
	emailsvc.ClearSentMessages()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	conf = testutil.NewConfig()
	log := testutil.NopLogger{}
	bus := feed.NewBroker(log)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrRepo = inmemdb.NewUserRepository(db, bus)
	cfgRepo = inmemdb.NewConfigRepository(db)
	userSvc = user.NewService(usrRepo, cfgRepo, cachesvc.NewInmemCache(), mailSvc, conf, log)
	postSvc = post.NewService(inmemdb.NewPostRepository(db, bus))
	forumSvc = forum.NewService(inmemdb.NewForumRepository(db, bus))
	ledger = points.NewLedger(inmemdb.NewPointsRepository(db, bus), userSvc, log)
	notifSvc = notification.NewService(inmemdb.NewNotificationRepository(db, bus), userSvc, mailSvc, conf, log)
	actSvc = activity.NewService(inmemdb.NewActivityRepository(db, bus), ledger, notifSvc, log)

	app = NewServer(&Options{
		DisableReqLogs: true,

		Conf:   conf,
		Logger: log,
		Broker: bus,

		UserSvc:     userSvc,
		PostSvc:     postSvc,
		ForumSvc:    forumSvc,
		ActivitySvc: actSvc,
		NotifSvc:    notifSvc,
		Ledger:      ledger,
	})
	return app
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data mismatch\n%s", testutil.Diff(string(tt.wantData), rec.Body.String()))
	}
}
