package main

import (
	"context"
	"sync"
	"time"

	"classattend/internal/geo"
	"classattend/internal/geofence"
)

// sessionIdleTTL is how long a subject may stay silent before its monitor is
// reclaimed. A device that stopped reporting has no fresh signal anyway, so
// the subject falls back to Unavailable and fails closed at the recorder.
const sessionIdleTTL = 30 * time.Minute

// sessionSweepInterval is how often the janitor scans for idle sessions.
const sessionSweepInterval = 5 * time.Minute

// sessionRegistry keeps one geofence monitor per authenticated subject. The
// client device reports position samples over HTTP; each session's monitor
// turns them into an is-inside signal that marking reads. Sessions that go
// quiet are evicted so the map stays bounded by the set of active devices.
type sessionRegistry struct {
	baseCtx  context.Context
	boundary geo.Boundary
	opts     geofence.WatchOptions
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	provider *geofence.PushProvider
	monitor  *geofence.Monitor
	lastSeen time.Time
}

// newSessionRegistry ties session monitors to baseCtx so they outlive the
// individual requests that feed them, and starts a janitor that reclaims
// monitors for subjects whose devices went quiet.
func newSessionRegistry(baseCtx context.Context, boundary geo.Boundary, opts geofence.WatchOptions) *sessionRegistry {
	r := &sessionRegistry{
		baseCtx:  baseCtx,
		boundary: boundary,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	go r.janitor(sessionSweepInterval)
	return r
}

func (r *sessionRegistry) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-r.baseCtx.Done():
			return
		case <-ticker.C:
			r.evictIdle(sessionIdleTTL)
		}
	}
}

// evictIdle stops and removes every session that has not pushed a sample for
// longer than olderThan, and reports how many it reclaimed.
func (r *sessionRegistry) evictIdle(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for subject, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			s.monitor.Stop()
			delete(r.sessions, subject)
			evicted++
		}
	}
	return evicted
}

// push routes a position sample into the subject's monitor, creating the
// session on first contact.
func (r *sessionRegistry) push(subject string, pos geo.Position) error {
	r.mu.Lock()
	s, ok := r.sessions[subject]
	if !ok {
		provider := geofence.NewPushProvider(true)
		monitor := geofence.NewMonitor(r.boundary, provider, r.opts)
		if err := monitor.Start(r.baseCtx); err != nil {
			r.mu.Unlock()
			return err
		}
		s = &session{provider: provider, monitor: monitor}
		r.sessions[subject] = s
	}
	s.lastSeen = r.now()
	r.mu.Unlock()

	s.provider.Push(pos)
	return nil
}

// signal returns the subject's current geofence signal. Subjects that never
// reported a position, or whose idle session was reclaimed, are Unavailable,
// which fails closed at the recorder.
func (r *sessionRegistry) signal(subject string) geofence.Signal {
	r.mu.Lock()
	s, ok := r.sessions[subject]
	r.mu.Unlock()
	if !ok {
		return geofence.Signal{State: geofence.Unavailable}
	}
	return s.monitor.Current()
}

// stop halts every session monitor, releasing their sampling loops.
func (r *sessionRegistry) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.monitor.Stop()
	}
	r.sessions = make(map[string]*session)
}
