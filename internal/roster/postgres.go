package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"classattend/internal/retry"
)

// Postgres implements Store over a per-course Postgres table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed roster store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) EnsureTable(ctx context.Context, table string) error {
	if !ValidIdent(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			student_name TEXT NOT NULL,
			student_email TEXT NOT NULL UNIQUE,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, table))
	return err
}

func (s *Postgres) AddBoolColumn(ctx context.Context, table, column string) error {
	if !ValidIdent(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if !ValidIdent(column) {
		return fmt.Errorf("invalid column name %q", column)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s BOOLEAN NOT NULL DEFAULT FALSE`,
		table, column,
	))
	return err
}

func (s *Postgres) ListColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (s *Postgres) InsertStudent(ctx context.Context, table, name, email string) error {
	if !ValidIdent(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (student_name, student_email)
		VALUES ($1, $2)
	`, table), name, strings.ToLower(email))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateStudent
	}
	return err
}

func (s *Postgres) HasStudent(ctx context.Context, table, email string) (bool, error) {
	if !ValidIdent(table) {
		return false, fmt.Errorf("invalid table name %q", table)
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT 1 FROM %s WHERE student_email = $1`, table,
	), strings.ToLower(email))
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Postgres) GetBool(ctx context.Context, table, column, email string) (bool, error) {
	if !ValidIdent(table) || !ValidIdent(column) {
		return false, fmt.Errorf("invalid identifier %q.%q", table, column)
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE student_email = $1`, column, table,
	), strings.ToLower(email))
	var v bool
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrStudentNotFound
		}
		return false, err
	}
	return v, nil
}

func (s *Postgres) SetBool(ctx context.Context, table, column, email string, value bool) error {
	if !ValidIdent(table) || !ValidIdent(column) {
		return fmt.Errorf("invalid identifier %q.%q", table, column)
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = $1 WHERE student_email = $2`, table, column,
	), value, strings.ToLower(email))
	if err != nil {
		// A column added moments ago may not be visible to this connection
		// yet; the recorder retries those.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "42703" || pgErr.Code == "42P01") {
			return retry.Transient{Err: err}
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (s *Postgres) ListRows(ctx context.Context, table string) ([]Row, error) {
	if !ValidIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT * FROM %s ORDER BY joined_at`, table,
	))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		r := Row{Marks: make(map[string]bool)}
		for i, col := range cols {
			switch col {
			case "student_name":
				r.StudentName, _ = vals[i].(string)
			case "student_email":
				r.StudentEmail, _ = vals[i].(string)
			case "joined_at":
				if t, ok := vals[i].(time.Time); ok {
					r.JoinedAt = t.UTC().Format(time.RFC3339)
				}
			default:
				if b, ok := vals[i].(bool); ok {
					r.Marks[col] = b
				}
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
