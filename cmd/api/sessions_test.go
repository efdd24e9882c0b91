package main

import (
	"context"
	"testing"
	"time"

	"classattend/internal/geo"
	"classattend/internal/geofence"
)

var testFence = geo.Circle{
	Center: geo.Point{Lat: 15.39285, Lon: 75.025185},
	Radius: 20,
}

func newTestRegistry(t *testing.T) *sessionRegistry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := newSessionRegistry(ctx, testFence, geofence.WatchOptions{
		Interval: 50 * time.Millisecond,
	})
	t.Cleanup(reg.stop)
	return reg
}

func TestEvictIdleReclaimsQuietSessions(t *testing.T) {
	reg := newTestRegistry(t)
	now := time.Now()
	reg.now = func() time.Time { return now }

	if err := reg.push("alice@test.edu", geo.Position{Point: testFence.Center}); err != nil {
		t.Fatalf("push alice: %v", err)
	}
	if err := reg.push("bob@test.edu", geo.Position{Point: testFence.Center}); err != nil {
		t.Fatalf("push bob: %v", err)
	}

	// Alice goes quiet for longer than the TTL; Bob keeps reporting.
	now = now.Add(sessionIdleTTL + time.Minute)
	if err := reg.push("bob@test.edu", geo.Position{Point: testFence.Center}); err != nil {
		t.Fatalf("push bob again: %v", err)
	}

	if got := reg.evictIdle(sessionIdleTTL); got != 1 {
		t.Fatalf("evictIdle = %d, want 1", got)
	}
	if sig := reg.signal("alice@test.edu"); sig.State != geofence.Unavailable {
		t.Errorf("evicted session state = %v, want Unavailable", sig.State)
	}
	if got := reg.evictIdle(sessionIdleTTL); got != 0 {
		t.Errorf("second sweep evicted %d sessions, want 0", got)
	}
}

func TestEvictIdleKeepsFreshSessions(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.push("alice@test.edu", geo.Position{Point: testFence.Center}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got := reg.evictIdle(sessionIdleTTL); got != 0 {
		t.Errorf("evictIdle = %d, want 0", got)
	}
}

func TestPushAfterEvictionRecreatesSession(t *testing.T) {
	reg := newTestRegistry(t)
	now := time.Now()
	reg.now = func() time.Time { return now }

	if err := reg.push("carol@test.edu", geo.Position{Point: testFence.Center}); err != nil {
		t.Fatalf("push: %v", err)
	}
	now = now.Add(sessionIdleTTL + time.Minute)
	reg.evictIdle(sessionIdleTTL)

	if err := reg.push("carol@test.edu", geo.Position{Point: testFence.Center}); err != nil {
		t.Fatalf("push after eviction: %v", err)
	}
	if got := reg.evictIdle(sessionIdleTTL); got != 0 {
		t.Errorf("fresh session evicted, evictIdle = %d, want 0", got)
	}
}
