package users

import (
	"context"
	"testing"
	"time"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
)

type fakeStore struct {
	users   map[string]User
	byEmail map[string]string
	refresh map[string]RefreshToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]User),
		byEmail: make(map[string]string),
		refresh: make(map[string]RefreshToken),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, u User) error {
	if _, taken := f.byEmail[u.Email]; taken {
		return apperr.Conflict("email_taken", "a user with this email already exists")
	}
	f.users[u.ID] = u
	f.byEmail[u.Email] = u.ID
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, apperr.NotFound("user_not_found", "user does not exist")
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return User{}, apperr.NotFound("user_not_found", "user does not exist")
	}
	return f.users[id], nil
}

func (f *fakeStore) ListUsers(_ context.Context, role Role, _, _ int) ([]User, error) {
	var res []User
	for _, u := range f.users {
		if role == "" || u.Role == role {
			res = append(res, u)
		}
	}
	return res, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id, name string) error {
	u, ok := f.users[id]
	if !ok {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	u.Name = name
	f.users[id] = u
	return nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id string, p Profile) error {
	u, ok := f.users[id]
	if !ok {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	if u.Role != p.Role() {
		return apperr.Validation("role_mismatch", "profile does not match the user's role")
	}
	u.Profile = p
	f.users[id] = u
	return nil
}

func (f *fakeStore) ChangeRole(_ context.Context, id string, p Profile) error {
	u, ok := f.users[id]
	if !ok {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	u.Role = p.Role()
	u.Profile = p
	f.users[id] = u
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	delete(f.byEmail, f.users[id].Email)
	delete(f.users, id)
	return nil
}

func (f *fakeStore) SaveRefreshToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.refresh[token] = RefreshToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeStore) GetRefreshToken(_ context.Context, token string) (RefreshToken, error) {
	rt, ok := f.refresh[token]
	if !ok {
		return RefreshToken{}, apperr.Auth("invalid_refresh_token", "unknown refresh token")
	}
	return rt, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, token string) error {
	rt := f.refresh[token]
	rt.Revoked = true
	f.refresh[token] = rt
	return nil
}

func newTestService(store Store) *Service {
	tokens := auth.NewTokens("classtrack-test", "test-secret", time.Minute, time.Hour)
	return NewService(store, tokens, 4)
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		in       RegisterInput
		wantCode string
	}{
		{
			name: "student",
			in:   RegisterInput{Email: "a@school.test", Password: "longenough", Name: "A", Role: RoleStudent, GradeLevel: "10", Section: "B"},
		},
		{
			name: "teacher",
			in:   RegisterInput{Email: "t@school.test", Password: "longenough", Name: "T", Role: RoleTeacher, Subject: "Math"},
		},
		{
			name:     "weak password",
			in:       RegisterInput{Email: "b@school.test", Password: "short", Name: "B", Role: RoleStudent},
			wantCode: "weak_password",
		},
		{
			name:     "bad role",
			in:       RegisterInput{Email: "c@school.test", Password: "longenough", Name: "C", Role: "JANITOR"},
			wantCode: "invalid_role",
		},
		{
			name:     "missing fields",
			in:       RegisterInput{Role: RoleStudent},
			wantCode: "missing_fields",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newFakeStore())
			u, err := svc.Register(context.Background(), tt.in)
			if tt.wantCode != "" {
				if apperr.CodeOf(err) != tt.wantCode {
					t.Errorf("Register() error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if u.Profile == nil || u.Profile.Role() != tt.in.Role {
				t.Errorf("Register() profile = %+v, want role %s", u.Profile, tt.in.Role)
			}
			if u.PasswordHash == tt.in.Password || u.PasswordHash == "" {
				t.Errorf("Register() stored a bad password hash")
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newFakeStore())
	in := RegisterInput{Email: "a@school.test", Password: "longenough", Name: "A", Role: RoleStudent}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, err := svc.Register(context.Background(), in)
	if apperr.CodeOf(err) != "email_taken" {
		t.Errorf("second Register() error = %v, want email_taken", err)
	}
}

func TestLogin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	if _, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@school.test", Password: "longenough", Name: "A", Role: RoleStudent,
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	u, pair, err := svc.Login(context.Background(), "a@school.test", "longenough")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Errorf("Login() returned empty tokens")
	}
	if _, ok := store.refresh[pair.RefreshToken]; !ok {
		t.Errorf("Login() did not persist the refresh token")
	}
	if u.Email != "a@school.test" {
		t.Errorf("Login() user = %+v", u)
	}

	for _, tc := range []struct{ email, password string }{
		{"a@school.test", "wrongpassword"},
		{"nobody@school.test", "longenough"},
	} {
		_, _, err := svc.Login(context.Background(), tc.email, tc.password)
		if apperr.KindOf(err) != apperr.KindAuth {
			t.Errorf("Login(%s) error = %v, want auth error", tc.email, err)
		}
	}
}

func TestRefreshRotation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	if _, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@school.test", Password: "longenough", Name: "A", Role: RoleStudent,
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, pair, err := svc.Login(context.Background(), "a@school.test", "longenough")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Errorf("Refresh() did not rotate the token")
	}
	if !store.refresh[pair.RefreshToken].Revoked {
		t.Errorf("Refresh() did not revoke the old token")
	}

	// the old token is dead
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); apperr.KindOf(err) != apperr.KindAuth {
		t.Errorf("Refresh() with revoked token error = %v, want auth error", err)
	}
}

func TestChangeRoleAtomic(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@school.test", Password: "longenough", Name: "A", Role: RoleStudent, GradeLevel: "10",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	changed, err := svc.ChangeRole(context.Background(), u.ID, RegisterInput{Role: RoleTeacher, Subject: "Math"})
	if err != nil {
		t.Fatalf("ChangeRole() error = %v", err)
	}
	if changed.Role != RoleTeacher {
		t.Errorf("ChangeRole() role = %s, want TEACHER", changed.Role)
	}
	profile, ok := changed.Profile.(TeacherProfile)
	if !ok {
		t.Fatalf("ChangeRole() profile = %T, want TeacherProfile", changed.Profile)
	}
	if profile.Subject != "Math" {
		t.Errorf("ChangeRole() subject = %s", profile.Subject)
	}
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@school.test", Password: "longenough", Name: "A", Role: RoleStudent,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := svc.Delete(context.Background(), u.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(context.Background(), u.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
	if err := svc.Delete(context.Background(), u.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestResolve(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@school.test", Password: "longenough", Name: "A", Role: RoleAdmin, Title: "Principal",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	ident, err := svc.Resolve(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ident.Role != "ADMIN" || ident.ID != u.ID {
		t.Errorf("Resolve() = %+v", ident)
	}
	if _, err := svc.Resolve(context.Background(), "ghost"); err == nil {
		t.Errorf("Resolve() for missing user succeeded")
	}
}
