package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransients(t *testing.T) {
	p := Policy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient{Err: errors.New("not visible yet")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	p := Policy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	cause := errors.New("schema cache")
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return Transient{Err: cause}
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Do() = %v, want wrapped %v", err, cause)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := Policy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	permanent := errors.New("row gone")
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("Do() = %v, want %v", err, permanent)
	}
}

func TestIsTransient(t *testing.T) {
	inner := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", inner, false},
		{"transient", Transient{Err: inner}, true},
		{"wrapped transient", fmt.Errorf("commit: %w", Transient{Err: inner}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoHonorsCancellationDuringBackoff(t *testing.T) {
	p := Policy{Attempts: 3, Backoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(context.Context) error {
		return Transient{Err: errors.New("again")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
}
