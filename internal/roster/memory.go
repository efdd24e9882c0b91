package roster

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store for dev and tests.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memTable

	// TransientSetErrs, when positive, makes that many SetBool calls fail
	// with a transient error first, mimicking read-after-write schema lag.
	TransientSetErrs int
	transientErr     error
}

type memTable struct {
	columns []string
	rows    []*memRow
}

type memRow struct {
	name     string
	email    string
	joinedAt time.Time
	marks    map[string]bool
}

// NewMemory creates an empty in-memory roster store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

// FailSetBool arms the next n SetBool calls to return err.
func (s *Memory) FailSetBool(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TransientSetErrs = n
	s.transientErr = err
}

func (s *Memory) EnsureTable(_ context.Context, table string) error {
	if !ValidIdent(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = &memTable{
			columns: []string{"id", "student_name", "student_email", "joined_at"},
		}
	}
	return nil
}

func (s *Memory) AddBoolColumn(_ context.Context, table, column string) error {
	if !ValidIdent(column) {
		return fmt.Errorf("invalid column name %q", column)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("no such table %q", table)
	}
	for _, c := range t.columns {
		if c == column {
			return nil
		}
	}
	t.columns = append(t.columns, column)
	return nil
}

func (s *Memory) ListColumns(_ context.Context, table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	return append([]string(nil), t.columns...), nil
}

func (s *Memory) InsertStudent(_ context.Context, table, name, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("no such table %q", table)
	}
	email = strings.ToLower(email)
	for _, r := range t.rows {
		if r.email == email {
			return ErrDuplicateStudent
		}
	}
	t.rows = append(t.rows, &memRow{
		name:     name,
		email:    email,
		joinedAt: time.Now().UTC(),
		marks:    make(map[string]bool),
	})
	return nil
}

func (s *Memory) HasStudent(_ context.Context, table, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return false, fmt.Errorf("no such table %q", table)
	}
	return t.find(email) != nil, nil
}

func (s *Memory) GetBool(_ context.Context, table, column, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return false, fmt.Errorf("no such table %q", table)
	}
	r := t.find(email)
	if r == nil {
		return false, ErrStudentNotFound
	}
	return r.marks[column], nil
}

func (s *Memory) SetBool(_ context.Context, table, column, email string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TransientSetErrs > 0 {
		s.TransientSetErrs--
		return s.transientErr
	}
	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("no such table %q", table)
	}
	r := t.find(email)
	if r == nil {
		return ErrStudentNotFound
	}
	r.marks[column] = value
	return nil
}

func (s *Memory) ListRows(_ context.Context, table string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		marks := make(map[string]bool, len(r.marks))
		for k, v := range r.marks {
			marks[k] = v
		}
		out = append(out, Row{
			StudentName:  r.name,
			StudentEmail: r.email,
			JoinedAt:     r.joinedAt.Format(time.RFC3339),
			Marks:        marks,
		})
	}
	return out, nil
}

func (t *memTable) find(email string) *memRow {
	email = strings.ToLower(email)
	for _, r := range t.rows {
		if r.email == email {
			return r
		}
	}
	return nil
}
