package collision

import (
	"context"
	"sync"
)

// signal is fulfilled exactly once and may be awaited by many styles.
// results is written before done is closed and never modified afterwards.
type signal struct {
	once    sync.Once
	done    chan struct{}
	results map[string][]*Object
}

func newSignal() *signal {
	return &signal{done: make(chan struct{})}
}

// fulfill publishes results and wakes every waiter. It returns false if the
// signal had already been fulfilled.
func (s *signal) fulfill(results map[string][]*Object) bool {
	fired := false
	s.once.Do(func() {
		s.results = results
		close(s.done)
		fired = true
	})
	return fired
}

// Pending is the result of a submission. It completes when the tile is
// resolved or aborted.
type Pending struct {
	sig   *signal
	style string
}

// resolved returns a Pending that is already complete with no objects
func resolved(style string) *Pending {
	sig := newSignal()
	sig.fulfill(nil)
	return &Pending{sig: sig, style: style}
}

// Done is closed once the result is available
func (p *Pending) Done() <-chan struct{} {
	return p.sig.done
}

// Result returns the objects kept for the submitting style, or nil if the
// tile has not completed yet. An aborted tile yields an empty result.
func (p *Pending) Result() []*Object {
	select {
	case <-p.sig.done:
	default:
		return nil
	}
	kept := p.sig.results[p.style]
	out := make([]*Object, len(kept))
	copy(out, kept)
	return out
}

// Wait blocks until the tile completes or ctx is done. A completed tile
// wins over a cancelled ctx.
func (p *Pending) Wait(ctx context.Context) ([]*Object, error) {
	select {
	case <-p.sig.done:
		return p.Result(), nil
	default:
	}

	select {
	case <-p.sig.done:
		return p.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
