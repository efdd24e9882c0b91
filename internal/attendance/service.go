package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classattend/internal/geofence"
	"classattend/internal/logger"
	"classattend/internal/metrics"
	"classattend/internal/queue"
	"classattend/internal/retry"
	"classattend/internal/roster"
)

// Status is the success disposition of a mark.
type Status string

const (
	// StatusMarked means this call committed the mark.
	StatusMarked Status = "marked"
	// StatusAlreadyMarked means the cell was already true; nothing was written.
	StatusAlreadyMarked Status = "already_marked"
)

// Result reports a successful mark.
type Result struct {
	Status       Status    `json:"status"`
	CourseID     string    `json:"course_id"`
	WindowID     WindowID  `json:"window_id"`
	StudentEmail string    `json:"student_email"`
	MarkedAt     time.Time `json:"marked_at"`
	// Verified is the post-commit read-back of the cell.
	Verified bool `json:"verified"`
}

// WindowStatus describes the current attendance window of a course.
type WindowStatus struct {
	WindowID   WindowID  `json:"window_id"`
	OpenedAt   time.Time `json:"opened_at"`
	ValidUntil time.Time `json:"valid_until"`
	Valid      bool      `json:"valid"`
}

// Service implements the attendance protocol: window management, window
// resolution and the geofence-gated recorder.
type Service struct {
	store    roster.Store
	audit    queue.Queue
	validity time.Duration
	commit   retry.Policy
	log      zerolog.Logger
	now      func() time.Time
	clock    *windowClock

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService wires the protocol over a roster store. audit may be nil when no
// trail is wanted; validity <= 0 falls back to the 10-minute default.
func NewService(store roster.Store, audit queue.Queue, validity time.Duration, commit retry.Policy) *Service {
	if validity <= 0 {
		validity = 10 * time.Minute
	}
	if commit.Attempts <= 0 {
		commit = retry.Policy{Attempts: 3, Backoff: 3 * time.Second}
	}
	s := &Service{
		store:    store,
		audit:    audit,
		validity: validity,
		commit:   commit,
		log:      logger.Get().With().Str("component", "attendance").Logger(),
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
	s.clock = newWindowClock(func() time.Time { return s.now() })
	return s
}

// OpenWindow provisions a new attendance column on the course roster. Each
// call creates a distinct window; structural failures surface without retry
// so a flaky ALTER is never silently duplicated.
func (s *Service) OpenWindow(ctx context.Context, courseID string) (WindowStatus, error) {
	table := roster.TableName(courseID)
	id := s.clock.next()

	if err := s.store.AddBoolColumn(ctx, table, string(id)); err != nil {
		s.log.Error().Err(err).Str("course", courseID).Str("window", string(id)).
			Msg("window column creation failed")
		return WindowStatus{}, fmt.Errorf("%w: %v", ErrStructuralChange, err)
	}

	metrics.WindowsOpened.Inc()
	openedAt := id.OpenedAt()
	s.log.Info().Str("course", courseID).Str("window", string(id)).Msg("attendance window opened")
	s.publishAudit(ctx, AuditEvent{
		CourseID: courseID,
		WindowID: string(id),
		Outcome:  "window_opened",
		At:       openedAt,
	})

	return WindowStatus{
		WindowID:   id,
		OpenedAt:   openedAt,
		ValidUntil: openedAt.Add(s.validity),
		Valid:      true,
	}, nil
}

// CurrentWindowStatus resolves the latest window of the course. Expired
// windows still resolve, with Valid false.
func (s *Service) CurrentWindowStatus(ctx context.Context, courseID string) (WindowStatus, error) {
	cols, err := s.store.ListColumns(ctx, roster.TableName(courseID))
	if err != nil {
		return WindowStatus{}, fmt.Errorf("list columns: %w", err)
	}
	id, ok := currentWindow(cols)
	if !ok {
		return WindowStatus{}, ErrNoActiveWindow
	}
	openedAt := id.OpenedAt()
	validUntil := openedAt.Add(s.validity)
	return WindowStatus{
		WindowID:   id,
		OpenedAt:   openedAt,
		ValidUntil: validUntil,
		Valid:      !s.now().UTC().After(validUntil),
	}, nil
}

// MarkAttendance validates eligibility in order and commits a single mark.
// The geofence signal belongs to the calling session and is passed explicitly.
// Re-invocation after success is a no-op returning StatusAlreadyMarked.
func (s *Service) MarkAttendance(ctx context.Context, courseID, studentEmail string, sig geofence.Signal) (Result, error) {
	key := courseID + "|" + studentEmail
	if !s.acquire(key) {
		s.record(courseID, studentEmail, "", "in_flight")
		return Result{}, ErrMarkInFlight
	}
	defer s.release(key)

	// 1. Geofence: unavailable fails closed, same as outside.
	if sig.State != geofence.Inside {
		s.record(courseID, studentEmail, "", "out_of_bounds")
		return Result{}, ErrOutOfBounds
	}

	// 2. Resolve the current window.
	table := roster.TableName(courseID)
	status, err := s.CurrentWindowStatus(ctx, courseID)
	if err != nil {
		if errors.Is(err, ErrNoActiveWindow) {
			s.record(courseID, studentEmail, "", "no_active_window")
			return Result{}, ErrNoActiveWindow
		}
		s.record(courseID, studentEmail, "", "error")
		return Result{}, err
	}

	// 3. Window validity.
	if !status.Valid {
		s.record(courseID, studentEmail, string(status.WindowID), "window_expired")
		return Result{}, ErrWindowExpired
	}

	// 4. Enrollment.
	enrolled, err := s.store.HasStudent(ctx, table, studentEmail)
	if err != nil {
		s.record(courseID, studentEmail, string(status.WindowID), "error")
		return Result{}, fmt.Errorf("enrollment check: %w", err)
	}
	if !enrolled {
		s.record(courseID, studentEmail, string(status.WindowID), "not_enrolled")
		return Result{}, ErrNotEnrolled
	}

	// 5. Idempotence: an existing true cell is a no-op success.
	marked, err := s.store.GetBool(ctx, table, string(status.WindowID), studentEmail)
	if err != nil && !errors.Is(err, roster.ErrStudentNotFound) {
		s.record(courseID, studentEmail, string(status.WindowID), "error")
		return Result{}, fmt.Errorf("mark check: %w", err)
	}
	if marked {
		s.record(courseID, studentEmail, string(status.WindowID), "already_marked")
		return Result{
			Status:       StatusAlreadyMarked,
			CourseID:     courseID,
			WindowID:     status.WindowID,
			StudentEmail: studentEmail,
			MarkedAt:     s.now().UTC(),
			Verified:     true,
		}, nil
	}

	// Commit. A column added moments ago may not be visible yet, so schema
	// transients are retried on a fixed backoff. Once the commit phase starts
	// it runs to completion even if the caller goes away.
	commitCtx := context.WithoutCancel(ctx)
	err = s.commit.Do(commitCtx, func(ctx context.Context) error {
		return s.store.SetBool(ctx, table, string(status.WindowID), studentEmail, true)
	})
	if err != nil {
		s.record(courseID, studentEmail, string(status.WindowID), "commit_failed")
		s.log.Error().Err(err).Str("course", courseID).Str("student", studentEmail).
			Str("window", string(status.WindowID)).Msg("mark commit failed")
		if retry.IsTransient(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
		}
		return Result{}, fmt.Errorf("mark commit: %w", err)
	}

	verified, err := s.store.GetBool(commitCtx, table, string(status.WindowID), studentEmail)
	if err != nil {
		// the commit landed; a failed read-back only degrades Verified
		s.log.Warn().Err(err).Str("course", courseID).Msg("mark verification read failed")
	}

	s.record(courseID, studentEmail, string(status.WindowID), "marked")
	s.log.Info().Str("course", courseID).Str("student", studentEmail).
		Str("window", string(status.WindowID)).Msg("attendance marked")

	return Result{
		Status:       StatusMarked,
		CourseID:     courseID,
		WindowID:     status.WindowID,
		StudentEmail: studentEmail,
		MarkedAt:     s.now().UTC(),
		Verified:     verified,
	}, nil
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// record counts the outcome and emits an audit event.
func (s *Service) record(courseID, studentEmail, windowID, outcome string) {
	metrics.MarkOutcomes.WithLabelValues(outcome).Inc()
	s.publishAudit(context.Background(), AuditEvent{
		CourseID:     courseID,
		StudentEmail: studentEmail,
		WindowID:     windowID,
		Outcome:      outcome,
		At:           s.now().UTC(),
	})
}

// auditPublishTimeout bounds how long a mark may wait on the audit queue.
// The trail is best-effort; a backed-up queue must never stall the protocol
// or pin the in-flight key.
const auditPublishTimeout = 200 * time.Millisecond

func (s *Service) publishAudit(ctx context.Context, evt AuditEvent) {
	if s.audit == nil {
		return
	}
	body, err := evt.Encode()
	if err != nil {
		s.log.Error().Err(err).Msg("audit event encode failed")
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, auditPublishTimeout)
	defer cancel()
	if err := s.audit.Publish(pubCtx, queue.Message{Type: "audit", Body: body}); err != nil {
		s.log.Error().Err(err).Str("outcome", evt.Outcome).Msg("audit event dropped")
	}
}
