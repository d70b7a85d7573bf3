package platform

import (
	"log/slog"
	"sync"
)

// subscribers is a small registry of callbacks with cancellation.
type subscribers[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
}

func (s *subscribers[T]) add(fn func(T)) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

// notify calls every subscriber outside of the registry lock.
func (s *subscribers[T]) notify(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (s *subscribers[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// SimDevice is an in-memory DeviceSession. The simulation TUI and the
// tests drive it through SetConnected and Answer.
type SimDevice struct {
	mu         sync.Mutex
	connected  bool
	authorized bool
	autoGrant  bool
	requests   int
	mode       DisplayMode
	modeErr    error
	conn       subscribers[bool]
	auth       subscribers[bool]
}

// NewSimDevice returns a disconnected, unauthorized device. With
// autoGrant every authorization request is granted right away.
func NewSimDevice(autoGrant bool) *SimDevice {
	return &SimDevice{autoGrant: autoGrant}
}

func (d *SimDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *SimDevice) HasAuthorization() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authorized
}

func (d *SimDevice) RequestAuthorization() {
	d.mu.Lock()
	d.requests++
	autoGrant := d.autoGrant
	d.mu.Unlock()

	slog.Debug("Simulated device: authorization requested")
	if autoGrant {
		d.Answer(true)
	}
}

func (d *SimDevice) OnConnectionChanged(fn func(bool)) CancelFunc {
	return d.conn.add(fn)
}

func (d *SimDevice) OnAuthorizationResult(fn func(bool)) CancelFunc {
	return d.auth.add(fn)
}

func (d *SimDevice) SetDisplayMode(mode DisplayMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.modeErr != nil {
		return d.modeErr
	}
	d.mode = mode
	return nil
}

// SetConnected plugs the headset in or pulls it out.
func (d *SimDevice) SetConnected(connected bool) {
	d.mu.Lock()
	changed := d.connected != connected
	d.connected = connected
	d.mu.Unlock()
	if changed {
		d.conn.notify(connected)
	}
}

// Answer delivers the user's decision on an authorization request.
func (d *SimDevice) Answer(granted bool) {
	d.mu.Lock()
	d.authorized = granted
	d.mu.Unlock()
	d.auth.notify(granted)
}

// FailDisplayMode makes SetDisplayMode return err; nil restores success.
func (d *SimDevice) FailDisplayMode(err error) {
	d.mu.Lock()
	d.modeErr = err
	d.mu.Unlock()
}

func (d *SimDevice) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

func (d *SimDevice) Mode() DisplayMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Listeners reports how many connection and authorization callbacks
// are registered.
func (d *SimDevice) Listeners() (conn, auth int) {
	return d.conn.len(), d.auth.len()
}
