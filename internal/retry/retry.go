package retry

import (
	"context"
	"time"
)

// Transient marks an error as safe to retry. The store layer wraps
// schema-visibility errors in this type; everything else fails immediately.
type Transient struct {
	Err error
}

func (t Transient) Error() string {
	return "transient: " + t.Err.Error()
}

func (t Transient) Unwrap() error {
	return t.Err
}

// IsTransient reports whether err or anything it wraps is a Transient.
func IsTransient(err error) bool {
	for err != nil {
		if _, ok := err.(Transient); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Policy is a bounded fixed-backoff retry budget.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempt budget is exhausted. The backoff sleep honors ctx cancellation;
// callers that must not abandon a started commit pass a non-cancellable ctx.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
