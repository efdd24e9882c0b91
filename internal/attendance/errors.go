package attendance

import "errors"

// Protocol error taxonomy. Each failure of MarkAttendance and OpenWindow maps
// to exactly one of these; AlreadyMarked is a success status, not an error.
var (
	// ErrOutOfBounds: the geofence signal is outside or unavailable.
	ErrOutOfBounds = errors.New("outside the attendance boundary")
	// ErrNoActiveWindow: no attendance window exists for the course.
	ErrNoActiveWindow = errors.New("no active attendance window")
	// ErrWindowExpired: the current window is older than the validity period.
	ErrWindowExpired = errors.New("attendance window expired")
	// ErrNotEnrolled: the student has no roster row for the course.
	ErrNotEnrolled = errors.New("student not enrolled in course")
	// ErrCommitFailed: the mark commit kept failing after the retry budget.
	ErrCommitFailed = errors.New("attendance commit failed")
	// ErrStructuralChange: window creation could not alter the roster table.
	ErrStructuralChange = errors.New("attendance window creation failed")
	// ErrMarkInFlight: a mark for the same student and course is already running.
	ErrMarkInFlight = errors.New("attendance mark already in progress")
)
