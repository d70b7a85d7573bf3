package render

import (
	"fmt"
	"sync"
	"time"

	"lautenbacher.net/goglass/platform"
)

// MockRenderer records every native call in order.
type MockRenderer struct {
	mu      sync.Mutex
	calls   []string
	onPause func()
}

func (m *MockRenderer) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *MockRenderer) OnSurfaceCreated(assets string) { m.record("created") }
func (m *MockRenderer) OnViewportChanged(w, h int)     { m.record(fmt.Sprintf("viewport %dx%d", w, h)) }
func (m *MockRenderer) OnResume()                      { m.record("resume") }
func (m *MockRenderer) OnDestroy()                     { m.record("destroy") }
func (m *MockRenderer) OnDrawFrame()                   { m.record("draw") }
func (m *MockRenderer) OnTouch(down bool, x, y float64) {
	m.record(fmt.Sprintf("touch %v", down))
}
func (m *MockRenderer) OnHeadOrientation(q platform.Quaternion) {
	m.record(fmt.Sprintf("head %.0f", q.X))
}
func (m *MockRenderer) OnControllerOrientation(q platform.Quaternion) {
	m.record(fmt.Sprintf("controller %.0f", q.X))
}

func (m *MockRenderer) OnPause() {
	if m.onPause != nil {
		m.onPause()
	}
	m.record("pause")
}

// Calls returns the recorded calls without the frame draws.
func (m *MockRenderer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		if c != "draw" {
			ret = append(ret, c)
		}
	}
	return ret
}

func (m *MockRenderer) Draws() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == "draw" {
			n++
		}
	}
	return n
}

// stubThread is a Thread test double. It records what was queued and
// runs it on its own goroutine after delay, unless it is stalled.
type stubThread struct {
	mu      sync.Mutex
	queued  []Event
	delay   time.Duration
	stalled bool
	closed  bool
	done    chan struct{}
	once    sync.Once
}

func newStubThread(delay time.Duration) *stubThread {
	return &stubThread{delay: delay, done: make(chan struct{})}
}

func newStalledThread() *stubThread {
	return &stubThread{stalled: true, done: make(chan struct{})}
}

func (s *stubThread) Queue(ev Event) {
	s.mu.Lock()
	s.queued = append(s.queued, ev)
	stalled := s.stalled
	s.mu.Unlock()
	if stalled {
		return
	}
	go func() {
		time.Sleep(s.delay)
		ev()
	}()
}

func (s *stubThread) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// exit simulates the thread going away.
func (s *stubThread) exit() {
	s.once.Do(func() { close(s.done) })
}

func (s *stubThread) Done() <-chan struct{} {
	return s.done
}

func (s *stubThread) queuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

func (s *stubThread) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// runQueued runs everything queued so far on the calling goroutine.
func (s *stubThread) runQueued() {
	s.mu.Lock()
	evs := s.queued
	s.queued = nil
	s.mu.Unlock()
	for _, ev := range evs {
		ev()
	}
}
