package lifecycle

import (
	"fmt"
	"sync"

	"lautenbacher.net/goglass/platform"
)

// MockRenderer records native calls in order, without frame draws.
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
func (m *MockRenderer) OnViewportChanged(w, h int)     {}
func (m *MockRenderer) OnResume()                      { m.record("resume") }
func (m *MockRenderer) OnDestroy()                     { m.record("destroy") }
func (m *MockRenderer) OnDrawFrame()                   {}
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

func (m *MockRenderer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockOrientation emits samples only when told to.
type MockOrientation struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(platform.Quaternion)
}

func (o *MockOrientation) Subscribe(fn func(platform.Quaternion)) platform.CancelFunc {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func(platform.Quaternion))
	}
	id := o.nextID
	o.nextID++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.fns, id)
		o.mu.Unlock()
	}
}

func (o *MockOrientation) Emit(x float64) {
	o.mu.Lock()
	fns := make([]func(platform.Quaternion), 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(platform.Quaternion{X: x, W: 1})
	}
}

func (o *MockOrientation) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.fns)
}

// slowModeDevice holds SetDisplayMode(3D) until release is closed.
type slowModeDevice struct {
	*platform.SimDevice
	entered chan struct{}
	release chan struct{}
}

func (d *slowModeDevice) SetDisplayMode(mode platform.DisplayMode) error {
	if mode == platform.Mode3D {
		close(d.entered)
		<-d.release
	}
	return d.SimDevice.SetDisplayMode(mode)
}
