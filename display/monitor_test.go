package display

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/goglass/config"
	"lautenbacher.net/goglass/platform"
	"lautenbacher.net/goglass/render"
)

// MockRenderer records the lifecycle calls; frames are only counted.
type MockRenderer struct {
	mu    sync.Mutex
	calls []string
}

func (m *MockRenderer) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *MockRenderer) OnSurfaceCreated(assets string)                { m.record("created") }
func (m *MockRenderer) OnViewportChanged(w, h int)                    {}
func (m *MockRenderer) OnPause()                                      { m.record("pause") }
func (m *MockRenderer) OnResume()                                     { m.record("resume") }
func (m *MockRenderer) OnDestroy()                                    { m.record("destroy") }
func (m *MockRenderer) OnDrawFrame()                                  {}
func (m *MockRenderer) OnTouch(down bool, x, y float64)               {}
func (m *MockRenderer) OnHeadOrientation(q platform.Quaternion)       {}
func (m *MockRenderer) OnControllerOrientation(q platform.Quaternion) {}

func (m *MockRenderer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockRenderer) count(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

type fixture struct {
	displays   *platform.SimDisplays
	renderer   *MockRenderer
	bridge     *render.Bridge
	monitor    *Monitor
	allowed    atomic.Bool
	foreground atomic.Bool
	mu         sync.Mutex
	threads    []render.Thread
	// exitedBeforeStart[i] tells whether all earlier threads were done
	// when thread i was started.
	exitedBeforeStart []bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		displays: platform.NewSimDisplays(),
		renderer: &MockRenderer{},
	}
	f.allowed.Store(true)
	f.foreground.Store(true)
	native := render.NewNative(f.renderer)
	f.bridge = render.NewBridge(native, time.Second)
	conf := config.RenderConfig{FrameInterval: 5 * time.Millisecond, HandshakeTimeout: time.Second}

	start := func(d *platform.Display) render.Thread {
		f.mu.Lock()
		defer f.mu.Unlock()
		allDone := true
		for _, th := range f.threads {
			select {
			case <-th.Done():
			default:
				allDone = false
			}
		}
		f.exitedBeforeStart = append(f.exitedBeforeStart, allDone)
		th := render.StartLoopThread(native, d, conf)
		f.threads = append(f.threads, th)
		return th
	}
	f.monitor = New(f.displays, f.bridge, start, Conditions{
		Allowed:    f.allowed.Load,
		Foreground: f.foreground.Load,
	}, time.Second)

	t.Cleanup(func() {
		f.monitor.Teardown(context.Background())
	})
	return f
}

func (f *fixture) started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.threads)
}

func hdmi() *platform.Display {
	return &platform.Display{Name: "HDMI-1", Modes: []platform.Mode{{Width: 1920, Height: 1080, RefreshRate: 60}}}
}

func TestCreatesSurfaceOnce(t *testing.T) {
	f := newFixture(t)
	d := hdmi()
	f.displays.Plug(d)

	f.monitor.OnDisplayTopologyChanged()
	f.monitor.OnDisplayTopologyChanged()
	f.monitor.OnDisplayTopologyChanged()

	assert.Equal(t, 1, f.started())
	assert.Same(t, d, f.monitor.Current())
	assert.True(t, f.bridge.Attached())
	assert.Eventually(t, func() bool { return f.renderer.count("created") == 1 }, time.Second, time.Millisecond)
}

func TestNoDisplayNoSurface(t *testing.T) {
	f := newFixture(t)

	f.monitor.OnDisplayTopologyChanged()

	assert.Equal(t, 0, f.started())
	assert.Nil(t, f.monitor.Current())
	assert.False(t, f.bridge.Attached())
}

func TestDisplayGoneAndReplaced(t *testing.T) {
	f := newFixture(t)
	first := hdmi()
	f.displays.Plug(first)
	f.monitor.OnDisplayTopologyChanged()

	// a change notification for the bound display changes nothing
	f.displays.Touch()
	f.monitor.OnDisplayTopologyChanged()
	assert.Equal(t, 1, f.started())

	f.displays.Unplug("HDMI-1")
	f.monitor.OnDisplayTopologyChanged()
	assert.Nil(t, f.monitor.Current())
	assert.False(t, f.bridge.Attached())
	assert.False(t, f.bridge.Post(func() {}), "posts are buffered once the display is gone")
	assert.Equal(t, 0, f.renderer.count("destroy"), "transient loss does not destroy natively")

	second := hdmi()
	f.displays.Plug(second)
	f.monitor.OnDisplayTopologyChanged()
	assert.Equal(t, 2, f.started())
	assert.Same(t, second, f.monitor.Current())
	assert.Equal(t, []bool{true, true}, f.exitedBeforeStart, "old render thread exits before a new one starts")
}

func TestReplacedWhileForeground(t *testing.T) {
	f := newFixture(t)
	f.displays.Plug(hdmi())
	f.monitor.OnDisplayTopologyChanged()

	f.displays.Unplug("HDMI-1")
	dp := &platform.Display{Name: "DP-1"}
	f.displays.Plug(dp)
	f.monitor.OnDisplayTopologyChanged()

	assert.Same(t, dp, f.monitor.Current())
	assert.Equal(t, 2, f.started())
	assert.Equal(t, []bool{true, true}, f.exitedBeforeStart)
	assert.Equal(t, 0, f.renderer.count("destroy"))
}

func TestReplacedWhileBackground(t *testing.T) {
	f := newFixture(t)
	f.displays.Plug(hdmi())
	f.monitor.OnDisplayTopologyChanged()
	f.foreground.Store(false)

	f.displays.Unplug("HDMI-1")
	dp := &platform.Display{Name: "DP-1"}
	f.displays.Plug(dp)
	f.monitor.OnDisplayTopologyChanged()

	assert.Same(t, dp, f.monitor.Current())
	require.Eventually(t, func() bool { return f.renderer.count("created") == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"created", "destroy", "created"}, f.renderer.Calls())
}

func TestNotAllowedDefersCreation(t *testing.T) {
	f := newFixture(t)
	f.allowed.Store(false)
	d := hdmi()
	f.displays.Plug(d)

	f.monitor.OnDisplayTopologyChanged()
	assert.Equal(t, 0, f.started())
	assert.Nil(t, f.monitor.Current())

	f.allowed.Store(true)
	f.monitor.OnDisplayTopologyChanged()
	assert.Equal(t, 1, f.started())
	assert.Same(t, d, f.monitor.Current())
}

func TestSameDisplayWithoutSurfaceIsRecreated(t *testing.T) {
	f := newFixture(t)
	d := hdmi()
	f.displays.Plug(d)
	f.monitor.OnDisplayTopologyChanged()

	require.NoError(t, f.monitor.Teardown(context.Background()))
	assert.Nil(t, f.monitor.Current())
	assert.False(t, f.bridge.Attached())
	assert.Equal(t, 1, f.renderer.count("destroy"))

	f.monitor.OnDisplayTopologyChanged()
	assert.Equal(t, 2, f.started())
	assert.Same(t, d, f.monitor.Current())
}

func TestTeardownWithoutSurface(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.monitor.Teardown(context.Background()))
	assert.Empty(t, f.renderer.Calls())
}

func TestWatchFollowsSource(t *testing.T) {
	f := newFixture(t)
	cancel := f.monitor.Watch()

	d := hdmi()
	f.displays.Plug(d)
	assert.Same(t, d, f.monitor.Current())

	cancel()
	f.displays.Unplug("HDMI-1")
	assert.Same(t, d, f.monitor.Current(), "no evaluation after cancel")
}
