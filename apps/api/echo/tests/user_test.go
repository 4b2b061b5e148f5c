package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/arkibo/backend/apps/api/echo"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/user"
	"github.com/arkibo/backend/services/email"
	"github.com/arkibo/backend/tests"
)

func Test_userApi_register(t *testing.T) {
	app := setup(t)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"full_name":        reqMsg,
				"email":            reqMsg,
				"password":         reqMsg,
				"password_confirm": reqMsg,
				"role":             reqMsg,
			}),
		},
		{
			name: "students need an LRN and a section", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				FullName: "Ana Cruz", Email: "ana@test.arkibo.ph",
				Password: "s3cret!", PasswordConfirm: "s3cret!", Role: user.RoleStudent,
			}),
			wantData: marchallObj(t, map[string]string{"lrn": "LRN and section are required for students"}),
		},
		{
			name: "student registered pending", wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{
				FullName: "Ana Cruz", Email: "ana@test.arkibo.ph",
				Password: "s3cret!", PasswordConfirm: "s3cret!", Role: user.RoleStudent,
				LRN: "123456789012", Section: "Mabini",
			}),
		},
		{
			name: "duplicate email", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				FullName: "Ana Again", Email: "ana@test.arkibo.ph",
				Password: "s3cret!", PasswordConfirm: "s3cret!", Role: user.RoleStudent,
				LRN: "123456789012", Section: "Mabini",
			}),
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/register"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if usr.Approved {
					t.Error("Approved = true; want pending")
				}
				if usr.Role != user.RoleStudent {
					t.Errorf("Role = %s; want student", usr.Role)
				}
				if len(emailsvc.SentMessages) != 1 {
					t.Errorf("len(SentMessages) = %d; want the verification mail", len(emailsvc.SentMessages))
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "s3cret!", user.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "Ben Reyes", "ben@test.arkibo.ph", "s3cret!", user.RoleStudent, false)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": reqMsg, "password": reqMsg}),
		},
		{
			name: "unknown email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "nope@test.arkibo.ph", Password: "s3cret!"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "ana@test.arkibo.ph", Password: "wrong"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "pending account refused", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "ben@test.arkibo.ph", Password: "s3cret!"}),
			wantData: marchallObj(t, httpErr{Error: "account is pending verification"}),
		},
		{
			name: "logged in", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Email: "Ana@Test.Arkibo.PH", Password: "s3cret!"}),
		},
		{
			name: "durable session", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Email: "ana@test.arkibo.ph", Password: "s3cret!", Remember: true}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)
	pending := testutil.CreateUser(t, usrRepo, "Ben Reyes", "ben@test.arkibo.ph", "", user.RoleStudent, false)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "pending account refused", token: getToken(t, pending), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account is pending verification"}),
		},
		{name: "own profile", token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/users/me"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_updateMe(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)

	body := marchallObj(t, user.UpdateUser{FullName: "Ana C. Santos", Section: "Rizal", GradeLevel: "10"})
	req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", getToken(t, student), body)
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if usr.FullName != "Ana C. Santos" || usr.Section != "Rizal" || usr.GradeLevel != "10" {
		t.Errorf("usr = %+v", usr)
	}
}

func Test_userApi_agreeGuidelines(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/me/agree-guidelines", getToken(t, student))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if !usr.GuidelinesAgreed {
		t.Error("GuidelinesAgreed = false; want true")
	}
}

func Test_userApi_pendingApprovals(t *testing.T) {
	app := setup(t)

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, usrRepo, "Dan Ong", "dan@test.arkibo.ph", "", user.RoleAdmin, true)
	approved := testutil.CreateUser(t, usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)
	pending := testutil.CreateUser(t, usrRepo, "Ben Reyes", "ben@test.arkibo.ph", "", user.RoleStudent, false, now)
	// unlisted teachers wait in the same queue
	pendingTeacher := testutil.CreateUser(t, usrRepo, "Eva Santos", "eva@test.arkibo.ph", "", user.RoleTeacher, false, now.Add(-time.Minute))

	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodGet, path: "/v1/users/pending",
			token: getToken(t, approved), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "pending queue", method: http.MethodGet, path: "/v1/users/pending",
			token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, pending, pendingTeacher),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("approve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/"+pending.ID+"/approve", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if !usr.Approved {
			t.Error("Approved = false; want true")
		}

		// the teacher is still in the queue
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/pending", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, pendingTeacher)}, rec)

		// approving the teacher empties it
		req, rec = newAuthRequest(http.MethodPost, "/v1/users/"+pendingTeacher.ID+"/approve", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/pending", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte("[]")}, rec)
	})

	t.Run("deny", func(t *testing.T) {
		denied := testutil.CreateUser(t, usrRepo, "Gus Uy", "gus@test.arkibo.ph", "", user.RoleStudent, false)

		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+denied.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		if _, err := userSvc.GetByID(context.Background(), denied.ID); err != user.ErrNotFound {
			t.Errorf("err = %v; want %v", err, user.ErrNotFound)
		}
	})
}

func Test_userApi_achievers(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	first := testutil.CreateUser(t, usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)
	second := testutil.CreateUser(t, usrRepo, "Ben Reyes", "ben@test.arkibo.ph", "", user.RoleStudent, true)
	third := testutil.CreateUser(t, usrRepo, "Cita Lim", "cita@test.arkibo.ph", "", user.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "Gus Uy", "gus@test.arkibo.ph", "", user.RoleStudent, false) // pending: never ranks

	for usrID, amount := range map[string]int{first.ID: 30, second.ID: 20, third.ID: 10} {
		if err := ledger.Award(ctx, usrID, amount, "test seed"); err != nil {
			t.Fatalf("Award() failed: %v", err)
		}
	}
	// re-read: totals moved through the ledger
	refresh := func(id string) user.User {
		usr, err := userSvc.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		return usr
	}

	token := getToken(t, first)
	tests := []httpTest{
		{
			name: "top achievers by star points", path: "/v1/users/achievers", token: token,
			wantCode: http.StatusOK, wantData: marchallList(t, refresh(first.ID), refresh(second.ID), refresh(third.ID)),
		},
		{
			name: "limited", path: "/v1/users/achievers?limit=2", token: token,
			wantCode: http.StatusOK, wantData: marchallList(t, refresh(first.ID), refresh(second.ID)),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_pointsHistory(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, usrRepo, "Ana Cruz", "ana@test.arkibo.ph", "", user.RoleStudent, true)
	if err := ledger.Award(ctx, student.ID, 15, "perfect quiz"); err != nil {
		t.Fatalf("Award() failed: %v", err)
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/me/points", getToken(t, student))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var entries []points.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != 15 || entries[0].Reason != "perfect quiz" {
		t.Errorf("entries = %+v", entries)
	}
}
