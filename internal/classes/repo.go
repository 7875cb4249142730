package classes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"classtrack/internal/apperr"
)

// Repository persists classes and enrollments in Postgres.
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

// CreateClass inserts a class.
func (r *Repository) CreateClass(ctx context.Context, c Class) error {
	schedule, err := json.Marshal(c.Schedule)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO classes (id, name, subject, grade, section, teacher_id, schedule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Subject, c.Grade, c.Section, c.TeacherID, schedule, c.CreatedAt)
	return err
}

func scanClass(row interface{ Scan(...any) error }) (Class, error) {
	var (
		c        Class
		schedule []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.Grade, &c.Section, &c.TeacherID, &schedule, &c.CreatedAt); err != nil {
		return Class{}, err
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &c.Schedule); err != nil {
			return Class{}, err
		}
	}
	return c, nil
}

// GetClass returns one class.
func (r *Repository) GetClass(ctx context.Context, id string) (Class, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, subject, grade, section, teacher_id, schedule, created_at
		FROM classes WHERE id = $1
	`, id)
	c, err := scanClass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Class{}, apperr.NotFound("class_not_found", "class does not exist")
	}
	return c, err
}

// ListClasses returns classes, optionally restricted to one teacher.
func (r *Repository) ListClasses(ctx context.Context, teacherID string) ([]Class, error) {
	query := `SELECT id, name, subject, grade, section, teacher_id, schedule, created_at FROM classes`
	args := []any{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1`
		args = append(args, teacherID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateClass rewrites the mutable fields, including the owning teacher.
// Existing enrollments are left untouched on teacher reassignment.
func (r *Repository) UpdateClass(ctx context.Context, c Class) error {
	schedule, err := json.Marshal(c.Schedule)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE classes
		SET name = $2, subject = $3, grade = $4, section = $5, teacher_id = $6, schedule = $7
		WHERE id = $1
	`, c.ID, c.Name, c.Subject, c.Grade, c.Section, c.TeacherID, schedule)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("class_not_found", "class does not exist")
	}
	return nil
}

// DeleteClass removes a class; enrollments, attendance records and check-in
// tokens cascade with it.
func (r *Repository) DeleteClass(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("class_not_found", "class does not exist")
	}
	return nil
}

// CreateEnrollment inserts the (student, class) pair.
func (r *Repository) CreateEnrollment(ctx context.Context, e Enrollment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, class_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.StudentID, e.ClassID, e.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("already_enrolled", "student is already enrolled in this class")
	}
	return err
}

// DeleteEnrollment removes the (student, class) pair.
func (r *Repository) DeleteEnrollment(ctx context.Context, classID, studentID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM enrollments WHERE class_id = $1 AND student_id = $2
	`, classID, studentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("enrollment_not_found", "student is not enrolled in this class")
	}
	return nil
}

// ListClassEnrollments returns a class roster with student names joined in.
func (r *Repository) ListClassEnrollments(ctx context.Context, classID string) ([]Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.student_id, e.class_id, u.name, e.created_at
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.class_id = $1
		ORDER BY u.name
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Enrollment
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.ClassID, &e.StudentName, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListStudentClasses returns the classes a student is enrolled in.
func (r *Repository) ListStudentClasses(ctx context.Context, studentID string) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.subject, c.grade, c.section, c.teacher_id, c.schedule, c.created_at
		FROM classes c
		JOIN enrollments e ON e.class_id = c.id
		WHERE e.student_id = $1
		ORDER BY c.created_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
