package course

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"classattend/internal/logger"
	"classattend/internal/roster"
)

// Catalog is the minimal course store Service needs; Repository implements it
// and tests substitute an in-memory fake.
type Catalog interface {
	Insert(ctx context.Context, c Course) (Course, error)
	Get(ctx context.Context, id string) (Course, error)
	List(ctx context.Context) ([]Course, error)
}

// Service couples the course catalog with roster provisioning: creating a
// course owns creating its roster table.
type Service struct {
	catalog Catalog
	rosters roster.Store
	log     zerolog.Logger
}

// NewService wires catalog and roster store.
func NewService(catalog Catalog, rosters roster.Store) *Service {
	return &Service{
		catalog: catalog,
		rosters: rosters,
		log:     logger.Get().With().Str("component", "course").Logger(),
	}
}

// Create inserts the course record and provisions its roster table.
func (s *Service) Create(ctx context.Context, name, description, instructor, instructorID string) (Course, error) {
	if strings.TrimSpace(name) == "" {
		return Course{}, errors.New("course name required")
	}

	c, err := s.catalog.Insert(ctx, Course{
		Name:         name,
		Description:  description,
		Instructor:   instructor,
		InstructorID: instructorID,
	})
	if err != nil {
		return Course{}, err
	}

	if err := s.rosters.EnsureTable(ctx, roster.TableName(c.ID)); err != nil {
		s.log.Error().Err(err).Str("course", c.ID).Msg("roster table provisioning failed")
		return Course{}, err
	}

	s.log.Info().Str("course", c.ID).Str("name", c.Name).Msg("course created")
	return c, nil
}

// Get returns a course by id.
func (s *Service) Get(ctx context.Context, id string) (Course, error) {
	return s.catalog.Get(ctx, id)
}

// List returns all courses.
func (s *Service) List(ctx context.Context) ([]Course, error) {
	return s.catalog.List(ctx)
}

// Enroll inserts a roster row for the student. Emails are stored lowercased;
// a second enrollment for the same email is rejected.
func (s *Service) Enroll(ctx context.Context, courseID, studentName, studentEmail string) error {
	if strings.TrimSpace(studentEmail) == "" {
		return errors.New("student email required")
	}
	if _, err := s.catalog.Get(ctx, courseID); err != nil {
		return err
	}
	err := s.rosters.InsertStudent(ctx, roster.TableName(courseID), studentName, strings.ToLower(studentEmail))
	if err == nil {
		s.log.Info().Str("course", courseID).Str("student", strings.ToLower(studentEmail)).Msg("student enrolled")
	}
	return err
}

// Roster returns the column names and rows of the course roster for display.
func (s *Service) Roster(ctx context.Context, courseID string) ([]string, []roster.Row, error) {
	if _, err := s.catalog.Get(ctx, courseID); err != nil {
		return nil, nil, err
	}
	table := roster.TableName(courseID)
	cols, err := s.rosters.ListColumns(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.rosters.ListRows(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}
