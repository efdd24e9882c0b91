package geofence

import (
	"context"

	"classattend/internal/geo"
)

// PushProvider is a Provider fed by explicit Push calls. The HTTP layer uses
// it to route client-reported position samples into a session's monitor; tests
// use it to script sample sequences.
type PushProvider struct {
	ch      chan geo.Position
	granted bool
}

// NewPushProvider creates a provider that reports the given permission state.
func NewPushProvider(granted bool) *PushProvider {
	return &PushProvider{ch: make(chan geo.Position, 16), granted: granted}
}

// Push feeds one position sample to the subscriber. Samples pushed while no
// watch is active (or after a full buffer) are dropped, mirroring how a
// platform provider coalesces fixes.
func (p *PushProvider) Push(pos geo.Position) {
	select {
	case p.ch <- pos:
	default:
	}
}

func (p *PushProvider) RequestPermission(context.Context) (bool, error) {
	return p.granted, nil
}

func (p *PushProvider) Watch(ctx context.Context, _ WatchOptions) (<-chan geo.Position, error) {
	out := make(chan geo.Position)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case pos := <-p.ch:
				select {
				case out <- pos:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
