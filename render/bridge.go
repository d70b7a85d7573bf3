package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lautenbacher.net/goglass/logging"
	"lautenbacher.net/goglass/platform"
)

// Surface is the live render surface bound to a presentation display.
type Surface struct {
	ID      uuid.UUID
	Display *platform.Display
	Thread  Thread
}

func NewSurface(display *platform.Display, thread Thread) *Surface {
	return &Surface{
		ID:      uuid.New(),
		Display: display,
		Thread:  thread,
	}
}

type Stats struct {
	Attached bool
	Surface  string
	Pending  int
	Direct   uint64
	Buffered uint64
}

// Bridge routes events to the render thread of the attached surface,
// or buffers them while there is none. At most one surface is attached.
type Bridge struct {
	mu       sync.Mutex
	surface  *Surface
	pending  Queue
	native   *Native
	timeout  atomic.Int64
	direct   atomic.Uint64
	buffered atomic.Uint64
	log      *slog.Logger
}

func NewBridge(native *Native, handshakeTimeout time.Duration) *Bridge {
	b := &Bridge{
		native: native,
		log:    logging.For("bridge"),
	}
	b.SetHandshakeTimeout(handshakeTimeout)
	return b
}

func (b *Bridge) SetHandshakeTimeout(d time.Duration) {
	b.timeout.Store(int64(d))
}

func (b *Bridge) handshakeTimeout() time.Duration {
	return time.Duration(b.timeout.Load())
}

func (b *Bridge) Native() *Native {
	return b.native
}

// Post hands ev to the render thread and returns true, or buffers it
// until the next Attach and returns false. It never blocks on the
// render thread.
func (b *Bridge) Post(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s := b.liveSurface(); s != nil {
		s.Thread.Queue(ev)
		b.direct.Add(1)
		return true
	}
	b.pending.Enqueue(ev)
	b.buffered.Add(1)
	return false
}

// liveSurface returns the attached surface unless its thread has
// already exited, in which case the surface is dropped. b.mu must be held.
func (b *Bridge) liveSurface() *Surface {
	if b.surface == nil {
		return nil
	}
	select {
	case <-b.surface.Thread.Done():
		b.log.Warn("Render thread exited unexpectedly, buffering events", "surface", b.surface.ID)
		b.surface = nil
		return nil
	default:
		return b.surface
	}
}

// Attach binds s and moves all buffered events onto its thread, oldest
// first, before any later Post can reach it.
func (b *Bridge) Attach(s *Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old := b.surface; old != nil && old != s {
		b.log.Warn("Attaching over a live surface, closing the old one", "old", old.ID, "new", s.ID)
		old.Thread.Close()
	}
	b.surface = s
	n := b.pending.DrainInto(s.Thread.Queue)
	b.log.Info("Surface attached", "surface", s.ID, "display", s.Display.String(), "drained", n)
}

// Detach unbinds the current surface without waiting for its thread:
// the thread is asked to exit and later posts are buffered. The old
// surface is returned so the caller can wait for Done before creating
// a successor. Returns nil if nothing was attached.
func (b *Bridge) Detach() *Surface {
	b.mu.Lock()
	s := b.surface
	b.surface = nil
	b.mu.Unlock()

	if s == nil {
		return nil
	}
	s.Thread.Close()
	b.log.Info("Surface detached", "surface", s.ID)
	return s
}

func (b *Bridge) Surface() *Surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveSurface()
}

func (b *Bridge) Attached() bool {
	return b.Surface() != nil
}

func (b *Bridge) Pending() int {
	return b.pending.Len()
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	s := b.liveSurface()
	b.mu.Unlock()

	st := Stats{
		Attached: s != nil,
		Pending:  b.pending.Len(),
		Direct:   b.direct.Load(),
		Buffered: b.buffered.Load(),
	}
	if s != nil {
		st.Surface = s.Display.String()
	}
	return st
}

// PauseAndWait runs the native pause on the render thread and blocks
// until it has completed. Without a surface it returns at once and the
// pause is buffered, so a later surface still sees resume and pause in
// the order they happened.
func (b *Bridge) PauseAndWait(ctx context.Context) error {
	b.mu.Lock()
	s := b.liveSurface()
	if s == nil {
		b.pending.Enqueue(b.native.Pause)
		b.mu.Unlock()
		return nil
	}
	hs := NewHandshake()
	s.Thread.Queue(func() {
		b.native.Pause()
		hs.Signal()
	})
	b.mu.Unlock()

	start := time.Now()
	if err := hs.Wait(ctx, s.Thread.Done(), b.handshakeTimeout()); err != nil {
		return fmt.Errorf("pause of surface %s: %w", s.ID, err)
	}
	b.log.Debug("Pause acknowledged", "surface", s.ID, "waited", time.Since(start))
	return nil
}

// DestroyAndWait runs the native destroy on the render thread, waits
// for it, then releases the surface and waits for its thread to exit.
// Without a surface there is nothing to destroy; buffered events are
// discarded since no surface will consume them anymore.
func (b *Bridge) DestroyAndWait(ctx context.Context) error {
	b.mu.Lock()
	s := b.liveSurface()
	if s == nil {
		if n := b.pending.Discard(); n > 0 {
			b.log.Info("Discarding buffered events on destroy", "count", n)
		}
		b.mu.Unlock()
		return nil
	}
	// Unbind before unlocking: nothing may reach the thread after destroy.
	b.surface = nil
	hs := NewHandshake()
	s.Thread.Queue(func() {
		b.native.Destroy()
		hs.Signal()
	})
	b.mu.Unlock()

	timeout := b.handshakeTimeout()
	err := hs.Wait(ctx, s.Thread.Done(), timeout)
	s.Thread.Close()
	if err != nil {
		return fmt.Errorf("destroy of surface %s: %w", s.ID, err)
	}

	select {
	case <-s.Thread.Done():
	case <-time.After(timeout):
		b.log.Warn("Render thread still running after destroy", "surface", s.ID)
	}
	b.log.Info("Surface destroyed", "surface", s.ID)
	return nil
}
