package roster

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrDuplicateStudent is returned when an email already has a roster row.
var ErrDuplicateStudent = errors.New("student already enrolled")

// ErrStudentNotFound is returned when a row lookup matches no student.
var ErrStudentNotFound = errors.New("student not found")

// Row is one student's roster entry. Marks holds the attendance cells keyed
// by window id.
type Row struct {
	StudentName  string          `json:"student_name"`
	StudentEmail string          `json:"student_email"`
	JoinedAt     string          `json:"joined_at"`
	Marks        map[string]bool `json:"marks"`
}

// Store is the capability surface the attendance protocol needs from the
// backing tabular store: row access plus schema evolution.
type Store interface {
	// EnsureTable provisions the roster table for a course if it does not exist.
	EnsureTable(ctx context.Context, table string) error
	// AddBoolColumn adds a boolean column defaulting to false, idempotently.
	AddBoolColumn(ctx context.Context, table, column string) error
	// ListColumns returns all column names of the table.
	ListColumns(ctx context.Context, table string) ([]string, error)
	// InsertStudent adds a roster row; ErrDuplicateStudent if the email exists.
	InsertStudent(ctx context.Context, table, name, email string) error
	// HasStudent reports whether the email has a roster row.
	HasStudent(ctx context.Context, table, email string) (bool, error)
	// GetBool reads one boolean cell for the student row.
	GetBool(ctx context.Context, table, column, email string) (bool, error)
	// SetBool writes one boolean cell for the student row. Schema-visibility
	// failures are reported as retry.Transient.
	SetBool(ctx context.Context, table, column, email string, value bool) error
	// ListRows returns every roster row with its attendance cells.
	ListRows(ctx context.Context, table string) ([]Row, error)
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// TableName derives the roster table name from a course id. Hyphens become
// underscores so a uuid is a legal SQL identifier.
func TableName(courseID string) string {
	return "course_" + strings.ReplaceAll(strings.ToLower(courseID), "-", "_")
}

// ValidIdent reports whether name is safe to splice into DDL: lowercase
// alphanumeric and underscore, starting with a letter.
func ValidIdent(name string) bool {
	return len(name) <= 63 && identPattern.MatchString(name)
}
