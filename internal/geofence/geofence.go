package geofence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classattend/internal/geo"
	"classattend/internal/logger"
	"classattend/internal/metrics"
)

// ErrPermissionDenied is returned by Start when the location provider refuses
// access. The signal stays Unavailable for the monitor's lifetime.
var ErrPermissionDenied = errors.New("location permission denied")

// State is the boundary membership of the session.
type State int

const (
	// Unavailable means no usable position exists; marking fails closed.
	Unavailable State = iota
	Outside
	Inside
)

func (s State) String() string {
	switch s {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "unavailable"
	}
}

// Signal is the live geofence state derived from the latest position sample.
type Signal struct {
	State     State        `json:"state"`
	Position  geo.Position `json:"position"`
	SampledAt time.Time    `json:"sampled_at"`
}

// WatchOptions configure position sampling.
type WatchOptions struct {
	Interval    time.Duration
	MinDistance float64 // meters of movement below which samples may be skipped
}

// Provider is the external geolocation collaborator.
type Provider interface {
	// RequestPermission asks for location access; false means denied.
	RequestPermission(ctx context.Context) (bool, error)
	// Watch streams position fixes until ctx is cancelled. The returned
	// channel is closed when the subscription ends.
	Watch(ctx context.Context, opts WatchOptions) (<-chan geo.Position, error)
}

// Monitor samples positions in the background and keeps a boundary-membership
// signal current. One monitor belongs to one client session.
type Monitor struct {
	boundary geo.Boundary
	provider Provider
	opts     WatchOptions
	log      zerolog.Logger

	mu      sync.Mutex
	current Signal

	updates chan Signal
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor builds a stopped monitor; Start begins sampling.
func NewMonitor(boundary geo.Boundary, provider Provider, opts WatchOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &Monitor{
		boundary: boundary,
		provider: provider,
		opts:     opts,
		log:      logger.Get().With().Str("component", "geofence").Logger(),
		updates:  make(chan Signal, 16),
		done:     make(chan struct{}),
	}
}

// Start requests permission and launches the sampling loop. On denial the
// signal is left in its terminal Unavailable state and ErrPermissionDenied is
// returned; dependent marking then fails closed.
func (m *Monitor) Start(ctx context.Context) error {
	granted, err := m.provider.RequestPermission(ctx)
	if err != nil {
		close(m.done)
		return err
	}
	if !granted {
		m.log.Warn().Msg("location permission denied, geofence unavailable")
		close(m.done)
		return ErrPermissionDenied
	}

	ctx, m.cancel = context.WithCancel(ctx)
	positions, err := m.provider.Watch(ctx, m.opts)
	if err != nil {
		m.cancel()
		close(m.done)
		return err
	}

	go m.loop(positions)
	return nil
}

func (m *Monitor) loop(positions <-chan geo.Position) {
	defer close(m.done)
	for pos := range positions {
		state := Outside
		if m.boundary.Contains(pos) {
			state = Inside
		}
		sig := Signal{State: state, Position: pos, SampledAt: time.Now().UTC()}

		m.mu.Lock()
		prev := m.current.State
		m.current = sig
		m.mu.Unlock()

		metrics.GeofenceSamples.WithLabelValues(state.String()).Inc()
		if prev != state {
			m.log.Info().
				Str("from", prev.String()).
				Str("to", state.String()).
				Float64("lat", pos.Lat).
				Float64("lon", pos.Lon).
				Msg("geofence state changed")
		}

		select {
		case m.updates <- sig:
		default:
			// slow consumer, drop the sample; Current still advances
		}
	}
}

// Updates streams signal changes to subscribers. Samples may be dropped when
// the consumer lags; Current always reflects the latest sample.
func (m *Monitor) Updates() <-chan Signal {
	return m.updates
}

// Current returns the latest signal. Before the first sample (or forever,
// when permission was denied) the state is Unavailable.
func (m *Monitor) Current() Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Stop cancels sampling and waits for the loop to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}
