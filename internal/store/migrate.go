package store

import "database/sql"

// Migrate applies the schema. The uniqueness constraint on
// attendance_records(student_id, class_id, day) is what makes concurrent
// same-student redeems safe; do not relax it. User and class deletion relies
// entirely on the ON DELETE CASCADE clauses below to clean up profiles,
// refresh tokens, classes, enrollments, check-in tokens and records; the Go
// layer issues only the single parent DELETE.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name          TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('STUDENT','TEACHER','ADMIN')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id        UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		role           TEXT NOT NULL CHECK (role IN ('STUDENT','TEACHER','ADMIN')),
		grade_level    TEXT NOT NULL DEFAULT '',
		section        TEXT NOT NULL DEFAULT '',
		guardian_phone TEXT NOT NULL DEFAULT '',
		subject        TEXT NOT NULL DEFAULT '',
		department     TEXT NOT NULL DEFAULT '',
		title          TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS classes (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		subject    TEXT NOT NULL DEFAULT '',
		grade      TEXT NOT NULL DEFAULT '',
		section    TEXT NOT NULL DEFAULT '',
		teacher_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		schedule   JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id         UUID PRIMARY KEY,
		student_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		class_id   UUID NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, class_id)
	);

	CREATE TABLE IF NOT EXISTS checkin_tokens (
		code       TEXT PRIMARY KEY,
		class_id   UUID NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		issued_by  UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id         UUID PRIMARY KEY,
		student_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		class_id   UUID NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		day        DATE NOT NULL,
		status     TEXT NOT NULL CHECK (status IN ('PRESENT','ABSENT','LATE')),
		marked_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		token_code TEXT NOT NULL DEFAULT '',
		UNIQUE (student_id, class_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_class   ON enrollments(class_id);
	CREATE INDEX IF NOT EXISTS idx_attendance_class_day ON attendance_records(class_id, day);
	CREATE INDEX IF NOT EXISTS idx_attendance_student   ON attendance_records(student_id);
	`
	_, err := db.Exec(schema)
	return err
}
