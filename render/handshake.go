package render

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrHandshakeTimeout = errors.New("render thread did not acknowledge in time")

// Handshake is a single-use rendezvous between the control goroutine,
// which waits, and the render goroutine, which signals. A new one is
// created for every pause or destroy request.
type Handshake struct {
	done chan struct{}
	once sync.Once
}

func NewHandshake() *Handshake {
	return &Handshake{done: make(chan struct{})}
}

// Signal marks the handshake complete. A second call is ignored.
func (h *Handshake) Signal() {
	h.once.Do(func() { close(h.done) })
}

func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until Signal was called or the render goroutine is gone
// (exited closed). Both count as success: in the second case there is
// nothing left to tear down. A cancelled ctx or an elapsed timeout end
// the wait with an error instead of blocking forever.
func (h *Handshake) Wait(ctx context.Context, exited <-chan struct{}, timeout time.Duration) error {
	select {
	case <-h.done:
		return nil
	case <-exited:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrHandshakeTimeout
	}
}
