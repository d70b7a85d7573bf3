// Package display binds the render surface to the presentation display.
//
// The Monitor reacts to topology changes of the display source: it
// creates a surface on the first presentation display, keeps it as long
// as that same display stays attached and tears it down when the display
// goes away or is replaced. All create and destroy decisions run under a
// single mutex, and a new render thread is only started after the one
// it replaces has exited (or a bounded wait for it has expired).
package display

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/goglass/logging"
	"lautenbacher.net/goglass/platform"
	"lautenbacher.net/goglass/render"
)

// ThreadFactory starts the render thread of a new surface on d.
type ThreadFactory func(d *platform.Display) render.Thread

type Conditions struct {
	// Allowed reports whether a surface may be created at all.
	Allowed func() bool
	// Foreground reports whether the application is resumed. Teardown
	// of a replaced display blocks on the render thread otherwise.
	Foreground func() bool
}

type Monitor struct {
	mu            sync.Mutex
	source        platform.DisplaySource
	bridge        *render.Bridge
	start         ThreadFactory
	cond          Conditions
	current       *platform.Display
	retiring      *render.Surface
	retireTimeout time.Duration
	log           *slog.Logger
}

func New(source platform.DisplaySource, bridge *render.Bridge, start ThreadFactory, cond Conditions, retireTimeout time.Duration) *Monitor {
	if cond.Allowed == nil {
		cond.Allowed = func() bool { return true }
	}
	if cond.Foreground == nil {
		cond.Foreground = func() bool { return true }
	}
	return &Monitor{
		source:        source,
		bridge:        bridge,
		start:         start,
		cond:          cond,
		retireTimeout: retireTimeout,
		log:           logging.For("display"),
	}
}

// Watch evaluates the topology on every change notification of the
// source until the returned function is called.
func (m *Monitor) Watch() platform.CancelFunc {
	return m.source.Subscribe(m.OnDisplayTopologyChanged)
}

func (m *Monitor) SetRetireTimeout(d time.Duration) {
	m.mu.Lock()
	m.retireTimeout = d
	m.mu.Unlock()
}

// Current is the display the surface is bound to, or nil.
func (m *Monitor) Current() *platform.Display {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnDisplayTopologyChanged re-evaluates the presentation displays. It is
// safe to call for any kind of change and as often as wanted: an
// unchanged topology with a live surface is a no-op.
func (m *Monitor) OnDisplayTopologyChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()

	displays := m.source.Presentations()
	if len(displays) == 0 {
		if m.current != nil {
			m.log.Info("Presentation display gone", "display", m.current.String())
			m.retire(m.bridge.Detach())
			m.current = nil
		}
		return
	}

	next := displays[0]
	if next == m.current {
		if m.bridge.Attached() {
			m.log.Debug("Presentation display unchanged", "display", next.String())
			return
		}
		m.log.Info("Surface of presentation display missing", "display", next.String())
	} else if m.current != nil {
		m.log.Info("Presentation display replaced", "old", m.current.String(), "new", next.String())
		m.replace()
	}
	m.current = nil

	if !m.cond.Allowed() {
		m.log.Debug("Not creating a surface while inactive", "display", next.String())
		return
	}
	m.awaitRetired()
	thread := m.start(next)
	m.bridge.Attach(render.NewSurface(next, thread))
	m.current = next
}

// replace tears down the surface of the display being replaced. m.mu
// must be held.
func (m *Monitor) replace() {
	if m.cond.Foreground() {
		m.retire(m.bridge.Detach())
		return
	}
	if !m.bridge.Attached() {
		return
	}
	if err := m.bridge.DestroyAndWait(context.Background()); err != nil {
		m.log.Error("Teardown of replaced surface failed", "error", err)
	}
}

// Teardown destroys the surface and blocks until its render thread has
// run the native destroy. Used on disconnect and destroy.
func (m *Monitor) Teardown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.bridge.DestroyAndWait(ctx)
	m.awaitRetired()
	if m.current != nil {
		m.log.Info("Surface torn down", "display", m.current.String())
		m.current = nil
	}
	return err
}

// retire remembers a detached surface whose thread may still be
// running. m.mu must be held.
func (m *Monitor) retire(s *render.Surface) {
	if s == nil {
		return
	}
	m.awaitRetired()
	m.retiring = s
}

// awaitRetired waits, bounded, for the thread of the last detached
// surface to exit. m.mu must be held.
func (m *Monitor) awaitRetired() {
	s := m.retiring
	if s == nil {
		return
	}
	m.retiring = nil
	select {
	case <-s.Thread.Done():
	case <-time.After(m.retireTimeout):
		m.log.Warn("Previous render thread still running, continuing anyway", "surface", s.ID, "waited", m.retireTimeout)
	}
}
