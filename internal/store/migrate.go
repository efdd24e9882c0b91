package store

import (
	"context"
	"database/sql"
)

// Migrate bootstraps the fixed schema. Per-course roster tables and their
// attendance columns are provisioned dynamically by the roster store, never
// here.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			instructor TEXT NOT NULL DEFAULT '',
			instructor_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_audit (
			id UUID PRIMARY KEY,
			course_id TEXT NOT NULL,
			student_email TEXT NOT NULL DEFAULT '',
			window_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS attendance_audit_course_idx
			ON attendance_audit (course_id, occurred_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
