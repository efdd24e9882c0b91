package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one attendance protocol outcome, queued for the audit worker.
type AuditEvent struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	StudentEmail string    `json:"student_email,omitempty"`
	WindowID     string    `json:"window_id,omitempty"`
	Outcome      string    `json:"outcome"`
	At           time.Time `json:"at"`
}

// Encode serializes the event for the queue, assigning an id when missing.
func (e AuditEvent) Encode() ([]byte, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return json.Marshal(e)
}

// DecodeAuditEvent parses a queued audit event body.
func DecodeAuditEvent(body []byte) (AuditEvent, error) {
	var e AuditEvent
	err := json.Unmarshal(body, &e)
	return e, err
}

// AuditRepository persists the attendance audit trail in Postgres.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a repo.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert writes one audit record.
func (r *AuditRepository) Insert(ctx context.Context, e AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_audit (id, course_id, student_email, window_id, outcome, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.CourseID, e.StudentEmail, e.WindowID, e.Outcome, e.At)
	return err
}

// ListByCourse returns recent audit records for a course, newest first.
func (r *AuditRepository) ListByCourse(ctx context.Context, courseID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, student_email, window_id, outcome, occurred_at
		FROM attendance_audit
		WHERE course_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, courseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.CourseID, &e.StudentEmail, &e.WindowID, &e.Outcome, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
