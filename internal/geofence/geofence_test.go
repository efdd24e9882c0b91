package geofence

import (
	"context"
	"errors"
	"testing"
	"time"

	"classattend/internal/geo"
)

var testFence = geo.Circle{
	Center: geo.Point{Lat: 15.39285, Lon: 75.025185},
	Radius: 20,
}

func waitForState(t *testing.T, m *Monitor, want State) Signal {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sig := <-m.Updates():
			if sig.State == want {
				return sig
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v, current %v", want, m.Current().State)
		}
	}
}

func TestMonitorTracksBoundary(t *testing.T) {
	provider := NewPushProvider(true)
	m := NewMonitor(testFence, provider, WatchOptions{Interval: 10 * time.Millisecond})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if got := m.Current().State; got != Unavailable {
		t.Errorf("state before first sample = %v, want Unavailable", got)
	}

	provider.Push(geo.Position{Point: geo.Point{Lat: 15.39290, Lon: 75.025190}})
	sig := waitForState(t, m, Inside)
	if sig.Position.Lat != 15.39290 {
		t.Errorf("signal position = %v", sig.Position)
	}

	provider.Push(geo.Position{Point: geo.Point{Lat: 15.39400, Lon: 75.02600}})
	waitForState(t, m, Outside)

	if got := m.Current().State; got != Outside {
		t.Errorf("Current() = %v, want Outside", got)
	}
}

func TestMonitorPermissionDenied(t *testing.T) {
	provider := NewPushProvider(false)
	m := NewMonitor(testFence, provider, WatchOptions{})

	err := m.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start = %v, want ErrPermissionDenied", err)
	}

	// terminal: the signal never leaves Unavailable
	provider.Push(geo.Position{Point: geo.Point{Lat: 15.39290, Lon: 75.025190}})
	time.Sleep(20 * time.Millisecond)
	if got := m.Current().State; got != Unavailable {
		t.Errorf("state after denied permission = %v, want Unavailable", got)
	}
}

func TestMonitorStop(t *testing.T) {
	provider := NewPushProvider(true)
	m := NewMonitor(testFence, provider, WatchOptions{})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	provider.Push(geo.Position{Point: geo.Point{Lat: 15.39290, Lon: 75.025190}})
	waitForState(t, m, Inside)

	m.Stop() // must not hang, loop exits on cancellation
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Inside, "inside"},
		{Outside, "outside"},
		{Unavailable, "unavailable"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
