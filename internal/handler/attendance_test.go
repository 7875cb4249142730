package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAttStore backs the attendance service for HTTP-level tests.
type fakeAttStore struct {
	mu       sync.Mutex
	tokens   map[string]attendance.Token
	enrolled map[string]bool
	records  map[string]attendance.Record
	owners   map[string]string
	roster   map[string][]attendance.RosterEntry
}

func (f *fakeAttStore) InsertToken(_ context.Context, t attendance.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[t.Code] = t
	return nil
}

func (f *fakeAttStore) GetToken(_ context.Context, code string) (attendance.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[code]
	if !ok {
		return attendance.Token{}, apperr.NotFound("token_not_found", "unknown check-in code")
	}
	return t, nil
}

func (f *fakeAttStore) IsEnrolled(_ context.Context, studentID, classID string) (bool, error) {
	return f.enrolled[studentID+"|"+classID], nil
}

func (f *fakeAttStore) InsertRecord(_ context.Context, rec attendance.Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rec.StudentID + "|" + rec.ClassID + "|" + rec.Day
	if _, exists := f.records[key]; exists {
		return false, nil
	}
	f.records[key] = rec
	return true, nil
}

func (f *fakeAttStore) UpsertRecord(_ context.Context, rec attendance.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.StudentID+"|"+rec.ClassID+"|"+rec.Day] = rec
	return nil
}

func (f *fakeAttStore) ListClassRecords(_ context.Context, classID, day string) ([]attendance.Record, error) {
	var res []attendance.Record
	for _, rec := range f.records {
		if rec.ClassID == classID && rec.Day == day {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (f *fakeAttStore) ListStudentRecords(_ context.Context, studentID string) ([]attendance.Record, error) {
	var res []attendance.Record
	for _, rec := range f.records {
		if rec.StudentID == studentID {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (f *fakeAttStore) GetClassOwner(_ context.Context, classID string) (string, error) {
	owner, ok := f.owners[classID]
	if !ok {
		return "", apperr.NotFound("class_not_found", "class does not exist")
	}
	return owner, nil
}

func (f *fakeAttStore) ListRoster(_ context.Context, classID string) ([]attendance.RosterEntry, error) {
	return f.roster[classID], nil
}

type testEnv struct {
	router *gin.Engine
	tokens *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := &fakeAttStore{
		tokens:   make(map[string]attendance.Token),
		enrolled: map[string]bool{"student-1|c1": true},
		records:  make(map[string]attendance.Record),
		owners:   map[string]string{"c1": "teacher-1"},
		roster:   map[string][]attendance.RosterEntry{"c1": {{StudentID: "student-1", Name: "A"}}},
	}
	attSvc := attendance.NewService(store, 15*time.Minute, time.UTC)

	identities := map[string]auth.Identity{
		"teacher-1": {ID: "teacher-1", Role: "TEACHER"},
		"student-1": {ID: "student-1", Role: "STUDENT"},
	}
	resolve := func(_ context.Context, id string) (auth.Identity, error) {
		ident, ok := identities[id]
		if !ok {
			return auth.Identity{}, apperr.NotFound("user_not_found", "user does not exist")
		}
		return ident, nil
	}
	tokens := auth.NewTokens("classtrack-test", "test-secret", time.Minute, time.Hour)

	h := New(nil, nil, attSvc, nil, nil, nil)

	r := gin.New()
	v1 := r.Group("/v1", auth.Authenticated(tokens, resolve))
	staff := auth.RequireRole(string(users.RoleTeacher), string(users.RoleAdmin))
	v1.POST("/attendance/generate-qr", staff, h.GenerateQR)
	v1.POST("/attendance/scan", auth.RequireRole(string(users.RoleStudent)), h.Scan)
	v1.GET("/attendance/class/:classID", staff, h.ClassAttendance)
	v1.GET("/attendance/student", auth.RequireRole(string(users.RoleStudent)), h.StudentAttendance)

	return &testEnv{router: r, tokens: tokens}
}

func (e *testEnv) request(t *testing.T, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		pair, err := e.tokens.Issue(userID, "")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestScanFlow(t *testing.T) {
	env := newTestEnv(t)

	// teacher issues a code
	w := env.request(t, http.MethodPost, "/v1/attendance/generate-qr", `{"class_id":"c1"}`, "teacher-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("generate-qr status = %d, body %s", w.Code, w.Body.String())
	}
	var issued struct {
		Code  string `json:"code"`
		Image string `json:"image"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil {
		t.Fatalf("bad generate-qr body: %v", err)
	}
	if issued.Code == "" || issued.Image == "" {
		t.Fatalf("generate-qr returned empty code or image")
	}

	// student scans it
	w = env.request(t, http.MethodPost, "/v1/attendance/scan", `{"qr_code":"`+issued.Code+`"}`, "student-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("scan status = %d, body %s", w.Code, w.Body.String())
	}

	// second scan conflicts
	w = env.request(t, http.MethodPost, "/v1/attendance/scan", `{"qr_code":"`+issued.Code+`"}`, "student-1")
	if w.Code != http.StatusConflict {
		t.Errorf("second scan status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already_marked") {
		t.Errorf("second scan body = %s, want already_marked", w.Body.String())
	}

	// the record shows up in the student summary
	w = env.request(t, http.MethodGet, "/v1/attendance/student", "", "student-1")
	if w.Code != http.StatusOK {
		t.Fatalf("student summary status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"percentage":100`) {
		t.Errorf("student summary body = %s, want 100%%", w.Body.String())
	}

	// and in the class summary
	w = env.request(t, http.MethodGet, "/v1/attendance/class/c1", "", "teacher-1")
	if w.Code != http.StatusOK {
		t.Fatalf("class summary status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"present":1`) {
		t.Errorf("class summary body = %s, want one present", w.Body.String())
	}
}

func TestStatusMapping(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		userID string
		want   int
	}{
		{name: "no token", method: http.MethodPost, path: "/v1/attendance/scan", body: `{"qr_code":"x"}`, want: http.StatusUnauthorized},
		{name: "student on staff route", method: http.MethodPost, path: "/v1/attendance/generate-qr", body: `{"class_id":"c1"}`, userID: "student-1", want: http.StatusForbidden},
		{name: "teacher on student route", method: http.MethodPost, path: "/v1/attendance/scan", body: `{"qr_code":"x"}`, userID: "teacher-1", want: http.StatusForbidden},
		{name: "unknown code", method: http.MethodPost, path: "/v1/attendance/scan", body: `{"qr_code":"bogus"}`, userID: "student-1", want: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPost, path: "/v1/attendance/scan", body: `{}`, userID: "student-1", want: http.StatusBadRequest},
		{name: "unknown class", method: http.MethodPost, path: "/v1/attendance/generate-qr", body: `{"class_id":"ghost"}`, userID: "teacher-1", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(t, tt.method, tt.path, tt.body, tt.userID)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
