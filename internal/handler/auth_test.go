package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/users"
)

// fakeUserStore backs the users service for registration tests.
type fakeUserStore struct {
	byEmail map[string]users.User
}

func (f *fakeUserStore) CreateUser(_ context.Context, u users.User) error {
	if _, exists := f.byEmail[u.Email]; exists {
		return apperr.Conflict("email_taken", "email is already registered")
	}
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserStore) GetUser(_ context.Context, id string) (users.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, apperr.NotFound("user_not_found", "user does not exist")
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (users.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return users.User{}, apperr.NotFound("user_not_found", "user does not exist")
	}
	return u, nil
}

func (f *fakeUserStore) ListUsers(context.Context, users.Role, int, int) ([]users.User, error) {
	return nil, nil
}
func (f *fakeUserStore) UpdateUser(context.Context, string, string) error           { return nil }
func (f *fakeUserStore) UpdateProfile(context.Context, string, users.Profile) error { return nil }
func (f *fakeUserStore) ChangeRole(context.Context, string, users.Profile) error    { return nil }
func (f *fakeUserStore) DeleteUser(context.Context, string) error                   { return nil }
func (f *fakeUserStore) SaveRefreshToken(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeUserStore) GetRefreshToken(context.Context, string) (users.RefreshToken, error) {
	return users.RefreshToken{}, apperr.NotFound("refresh_not_found", "unknown refresh token")
}
func (f *fakeUserStore) RevokeRefreshToken(context.Context, string) error { return nil }

func newRegisterEnv(t *testing.T) (*gin.Engine, *auth.Tokens) {
	t.Helper()

	store := &fakeUserStore{byEmail: make(map[string]users.User)}
	tokens := auth.NewTokens("classtrack-test", "test-secret", time.Minute, time.Hour)
	userSvc := users.NewService(store, tokens, 4)

	identities := map[string]auth.Identity{
		"admin-1":   {ID: "admin-1", Role: "ADMIN"},
		"student-1": {ID: "student-1", Role: "STUDENT"},
	}
	resolve := func(_ context.Context, id string) (auth.Identity, error) {
		ident, ok := identities[id]
		if !ok {
			return auth.Identity{}, apperr.NotFound("user_not_found", "user does not exist")
		}
		return ident, nil
	}

	h := New(userSvc, nil, nil, nil, nil, nil)

	r := gin.New()
	r.POST("/v1/auth/register", h.Register)
	authed := r.Group("/v1", auth.Authenticated(tokens, resolve))
	authed.POST("/users", auth.RequireRole(string(users.RoleAdmin)), h.CreateUser)
	return r, tokens
}

// Public registration stops at STUDENT and TEACHER; admins only come from
// the seed config or another admin.
func TestRegisterRoles(t *testing.T) {
	r, tokens := newRegisterEnv(t)

	do := func(path, body, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if userID != "" {
			pair, err := tokens.Issue(userID, "")
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("/v1/auth/register", `{"email":"s@school.test","password":"longenough","name":"S","role":"STUDENT"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("student register status = %d, body %s", w.Code, w.Body.String())
	}

	w = do("/v1/auth/register", `{"email":"a@school.test","password":"longenough","name":"A","role":"ADMIN"}`, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("admin register status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "admin_signup_forbidden") {
		t.Errorf("admin register body = %s, want admin_signup_forbidden", w.Body.String())
	}

	w = do("/v1/users", `{"email":"a@school.test","password":"longenough","name":"A","role":"ADMIN"}`, "student-1")
	if w.Code != http.StatusForbidden {
		t.Errorf("student create-user status = %d, want 403", w.Code)
	}

	w = do("/v1/users", `{"email":"a@school.test","password":"longenough","name":"A","role":"ADMIN"}`, "admin-1")
	if w.Code != http.StatusCreated {
		t.Errorf("admin create-user status = %d, body %s", w.Code, w.Body.String())
	}
}
