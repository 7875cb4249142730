package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classtrack/internal/apperr"
)

// Repository persists check-in tokens and attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertToken writes a new check-in token.
func (r *Repository) InsertToken(ctx context.Context, t Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkin_tokens (code, class_id, issued_by, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.Code, t.ClassID, t.IssuedBy, t.CreatedAt, t.ExpiresAt)
	return err
}

// GetToken returns a token by code.
func (r *Repository) GetToken(ctx context.Context, code string) (Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, class_id, issued_by, created_at, expires_at
		FROM checkin_tokens WHERE code = $1
	`, code)
	var t Token
	if err := row.Scan(&t.Code, &t.ClassID, &t.IssuedBy, &t.CreatedAt, &t.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, apperr.NotFound("token_not_found", "unknown check-in code")
		}
		return Token{}, err
	}
	return t, nil
}

// IsEnrolled reports whether the student has an enrollment in the class.
func (r *Repository) IsEnrolled(ctx context.Context, studentID, classID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2)
	`, studentID, classID).Scan(&exists)
	return exists, err
}

// InsertRecord writes an attendance record. The (student, class, day) unique
// constraint resolves concurrent redeems: the loser observes inserted=false.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_id, day, status, marked_at, token_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, class_id, day) DO NOTHING
	`, rec.ID, rec.StudentID, rec.ClassID, rec.Day, rec.Status, rec.MarkedAt, rec.TokenCode)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpsertRecord writes or overwrites a record; the manual marking path.
func (r *Repository) UpsertRecord(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_id, day, status, marked_at, token_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, class_id, day) DO UPDATE SET
			status = EXCLUDED.status,
			marked_at = EXCLUDED.marked_at
	`, rec.ID, rec.StudentID, rec.ClassID, rec.Day, rec.Status, rec.MarkedAt, rec.TokenCode)
	return err
}

// ListClassRecords returns the records for one class on one day.
func (r *Repository) ListClassRecords(ctx context.Context, classID, day string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, class_id, day, status, marked_at, token_code
		FROM attendance_records
		WHERE class_id = $1 AND day = $2
	`, classID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListStudentRecords returns a student's full history, newest first.
func (r *Repository) ListStudentRecords(ctx context.Context, studentID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, class_id, day, status, marked_at, token_code
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY day DESC, marked_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var res []Record
	for rows.Next() {
		var rec Record
		// day is a DATE column; the driver hands it over as time.Time.
		var day time.Time
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &day, &rec.Status, &rec.MarkedAt, &rec.TokenCode); err != nil {
			return nil, err
		}
		rec.Day = day.Format("2006-01-02")
		res = append(res, rec)
	}
	return res, rows.Err()
}

// GetClassOwner returns the owning teacher of a class.
func (r *Repository) GetClassOwner(ctx context.Context, classID string) (string, error) {
	var teacherID string
	err := r.db.QueryRowContext(ctx, `SELECT teacher_id FROM classes WHERE id = $1`, classID).Scan(&teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("class_not_found", "class does not exist")
	}
	return teacherID, err
}

// ListRoster returns the enrolled students of a class.
func (r *Repository) ListRoster(ctx context.Context, classID string) ([]RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.student_id, u.name
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.class_id = $1
		ORDER BY u.name
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.StudentID, &e.Name); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
