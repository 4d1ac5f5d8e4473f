package wizard

import (
	"context"
	"errors"
	"time"

	"github.com/christopherklint97/shiftcal/internal/ai"
	"github.com/christopherklint97/shiftcal/internal/calendar"
)

// ErrNotReady is returned by Ready.Wait when the clients are not built in
// time.
var ErrNotReady = errors.New("clients are not ready")

// Clients are the service clients a Pipeline runs on.
type Clients struct {
	Extractor ai.Extractor
	Calendar  calendar.Provider
}

// Ready resolves once, to either clients or the error that prevented them.
type Ready struct {
	done    chan struct{}
	clients *Clients
	err     error
}

// Prepare runs build in the background.
func Prepare(ctx context.Context, build func(ctx context.Context) (*Clients, error)) *Ready {
	r := &Ready{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.clients, r.err = build(ctx)
	}()
	return r
}

// Resolved returns a Ready that is already settled.
func Resolved(c *Clients, err error) *Ready {
	r := &Ready{done: make(chan struct{}), clients: c, err: err}
	close(r.done)
	return r
}

// Wait blocks until the clients are built, ctx ends or timeout elapses. A
// timeout of zero waits on ctx alone.
func (r *Ready) Wait(ctx context.Context, timeout time.Duration) (*Clients, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-r.done:
		return r.clients, r.err
	case <-expired:
		return nil, ErrNotReady
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
