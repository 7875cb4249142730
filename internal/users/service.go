package users

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
)

// Store is the persistence surface the service needs. The Postgres
// Repository implements it; tests supply in-memory fakes.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, role Role, limit, offset int) ([]User, error)
	UpdateUser(ctx context.Context, id, name string) error
	UpdateProfile(ctx context.Context, id string, p Profile) error
	ChangeRole(ctx context.Context, id string, p Profile) error
	DeleteUser(ctx context.Context, id string) error
	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// Service coordinates accounts, credentials and role profiles.
type Service struct {
	store      Store
	tokens     *auth.Tokens
	bcryptCost int
	now        func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, tokens *auth.Tokens, bcryptCost int) *Service {
	return &Service{store: store, tokens: tokens, bcryptCost: bcryptCost, now: time.Now}
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     Role

	// role-specific profile fields; only the set matching Role is read
	GradeLevel    string
	Section       string
	GuardianPhone string
	Subject       string
	Department    string
	Title         string
}

func (in RegisterInput) profile() (Profile, error) {
	switch in.Role {
	case RoleStudent:
		return StudentProfile{GradeLevel: in.GradeLevel, Section: in.Section, GuardianPhone: in.GuardianPhone}, nil
	case RoleTeacher:
		return TeacherProfile{Subject: in.Subject, Department: in.Department}, nil
	case RoleAdmin:
		return AdminProfile{Title: in.Title}, nil
	default:
		return nil, apperr.Validation("invalid_role", "role must be STUDENT, TEACHER or ADMIN")
	}
}

// Register creates a user with a hashed password and its role profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return User{}, apperr.Validation("missing_fields", "email, password and name are required")
	}
	if len(in.Password) < 8 {
		return User{}, apperr.Validation("weak_password", "password must be at least 8 characters")
	}
	profile, err := in.profile()
	if err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return User{}, apperr.Wrap(err, "hashing password failed")
	}

	now := s.now().UTC()
	u := User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: hash,
		Profile:      profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login verifies credentials and issues a token pair. The refresh token is
// persisted for rotation.
func (s *Service) Login(ctx context.Context, email, password string) (User, auth.TokenPair, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return User{}, auth.TokenPair{}, apperr.Auth("invalid_credentials", "email or password is incorrect")
		}
		return User{}, auth.TokenPair{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return User{}, auth.TokenPair{}, apperr.Auth("invalid_credentials", "email or password is incorrect")
	}
	pair, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return User{}, auth.TokenPair{}, apperr.Wrap(err, "token issue failed")
	}
	if err := s.store.SaveRefreshToken(ctx, u.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return User{}, auth.TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh rotates a refresh token, revoking the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	rt, err := s.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if rt.Revoked || s.now().After(rt.ExpiresAt) {
		return auth.TokenPair{}, apperr.Auth("invalid_refresh_token", "refresh token expired or revoked")
	}
	u, err := s.store.GetUser(ctx, rt.UserID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	pair, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return auth.TokenPair{}, apperr.Wrap(err, "token issue failed")
	}
	if err := s.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.store.SaveRefreshToken(ctx, u.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}

// Resolve maps a token subject to an identity for the auth middleware.
func (s *Service) Resolve(ctx context.Context, userID string) (auth.Identity, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ID: u.ID, Role: string(u.Role), Email: u.Email, Name: u.Name}, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns users, optionally filtered by role.
func (s *Service) List(ctx context.Context, role Role, limit, offset int) ([]User, error) {
	if role != "" && !role.Valid() {
		return nil, apperr.Validation("invalid_role", "role must be STUDENT, TEACHER or ADMIN")
	}
	return s.store.ListUsers(ctx, role, limit, offset)
}

// Update changes account fields.
func (s *Service) Update(ctx context.Context, id, name string) (User, error) {
	if name == "" {
		return User{}, apperr.Validation("missing_fields", "name is required")
	}
	if err := s.store.UpdateUser(ctx, id, name); err != nil {
		return User{}, err
	}
	return s.store.GetUser(ctx, id)
}

// UpdateProfile replaces profile fields without changing the role.
func (s *Service) UpdateProfile(ctx context.Context, id string, p Profile) (User, error) {
	if err := s.store.UpdateProfile(ctx, id, p); err != nil {
		return User{}, err
	}
	return s.store.GetUser(ctx, id)
}

// ChangeRole reassigns the user's role, atomically replacing the profile.
func (s *Service) ChangeRole(ctx context.Context, id string, in RegisterInput) (User, error) {
	profile, err := in.profile()
	if err != nil {
		return User{}, err
	}
	if err := s.store.ChangeRole(ctx, id, profile); err != nil {
		return User{}, err
	}
	return s.store.GetUser(ctx, id)
}

// Delete removes a user and everything hanging off it.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}
