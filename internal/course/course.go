package course

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no course matches the id.
var ErrNotFound = errors.New("course not found")

// Course is the catalog record owning one roster table.
type Course struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Instructor   string    `json:"instructor"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists course records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new course, assigning an id when missing.
func (r *Repository) Insert(ctx context.Context, c Course) (Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO courses (id, name, description, instructor, instructor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, c.ID, c.Name, c.Description, c.Instructor, c.InstructorID)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return Course{}, err
	}
	return c, nil
}

// Get returns a single course by id.
func (r *Repository) Get(ctx context.Context, id string) (Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, instructor, instructor_id, created_at
		FROM courses WHERE id = $1
	`, id)
	var c Course
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Instructor, &c.InstructorID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, err
	}
	return c, nil
}

// List returns all courses, newest first.
func (r *Repository) List(ctx context.Context) ([]Course, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, instructor, instructor_id, created_at
		FROM courses ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Instructor, &c.InstructorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
