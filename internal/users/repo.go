package users

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"classtrack/internal/apperr"
)

// Repository persists users and profiles in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateUser inserts the user row and its profile in one transaction, so a
// user can never exist without a profile.
func (r *Repository) CreateUser(ctx context.Context, u User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("email_taken", "a user with this email already exists")
		}
		return err
	}
	if err := insertProfile(ctx, tx, u.ID, u.Profile); err != nil {
		return err
	}
	return tx.Commit()
}

func insertProfile(ctx context.Context, tx *sql.Tx, userID string, p Profile) error {
	var gradeLevel, section, guardianPhone, subject, department, title string
	switch v := p.(type) {
	case StudentProfile:
		gradeLevel, section, guardianPhone = v.GradeLevel, v.Section, v.GuardianPhone
	case TeacherProfile:
		subject, department = v.Subject, v.Department
	case AdminProfile:
		title = v.Title
	default:
		return errors.New("unknown profile type")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, role, grade_level, section, guardian_phone, subject, department, title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, userID, p.Role(), gradeLevel, section, guardianPhone, subject, department, title)
	return err
}

const userColumns = `
	u.id, u.email, u.password_hash, u.name, u.role, u.created_at, u.updated_at,
	p.grade_level, p.section, p.guardian_phone, p.subject, p.department, p.title`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var (
		u                                                       User
		gradeLevel, section, guardianPhone, subject, department string
		title                                                   string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt,
		&gradeLevel, &section, &guardianPhone, &subject, &department, &title)
	if err != nil {
		return User{}, err
	}
	switch u.Role {
	case RoleStudent:
		u.Profile = StudentProfile{GradeLevel: gradeLevel, Section: section, GuardianPhone: guardianPhone}
	case RoleTeacher:
		u.Profile = TeacherProfile{Subject: subject, Department: department}
	case RoleAdmin:
		u.Profile = AdminProfile{Title: title}
	}
	return u, nil
}

// GetUser returns a user with its profile.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.NotFound("user_not_found", "user does not exist")
	}
	return u, err
}

// GetUserByEmail returns a user with its profile by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN profiles p ON p.user_id = u.id
		WHERE u.email = $1
	`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.NotFound("user_not_found", "user does not exist")
	}
	return u, err
}

// ListUsers returns users, optionally filtered by role.
func (r *Repository) ListUsers(ctx context.Context, role Role, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + userColumns + ` FROM users u JOIN profiles p ON p.user_id = u.id`
	args := []any{}
	if role != "" {
		query += ` WHERE u.role = $1`
		args = append(args, role)
	}
	query += ` ORDER BY u.created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UpdateUser updates mutable account fields.
func (r *Repository) UpdateUser(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1
	`, id, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	return nil
}

// UpdateProfile replaces the profile fields for the user's current role.
// The profile role must match the user's role.
func (r *Repository) UpdateProfile(ctx context.Context, id string, p Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var role Role
	if err := tx.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user_not_found", "user does not exist")
		}
		return err
	}
	if role != p.Role() {
		return apperr.Validation("role_mismatch", "profile does not match the user's role")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = $1`, id); err != nil {
		return err
	}
	if err := insertProfile(ctx, tx, id, p); err != nil {
		return err
	}
	return tx.Commit()
}

// ChangeRole swaps the user's role and profile in a single transaction; the
// user is never observable without a profile.
func (r *Repository) ChangeRole(ctx context.Context, id string, p Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1
	`, id, p.Role())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = $1`, id); err != nil {
		return err
	}
	if err := insertProfile(ctx, tx, id, p); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteUser removes the user; the profile, enrollments, attendance records
// and refresh tokens go with it via FK cascades.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user_not_found", "user does not exist")
	}
	return nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	return err
}

// GetRefreshToken loads a stored refresh token.
func (r *Repository) GetRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, revoked FROM refresh_tokens WHERE token = $1
	`, token)
	var rt RefreshToken
	if err := row.Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.Revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshToken{}, apperr.Auth("invalid_refresh_token", "unknown refresh token")
		}
		return RefreshToken{}, err
	}
	return rt, nil
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

func itoa(i int) string { return strconv.Itoa(i) }
