package platform

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimDeviceNotifies(t *testing.T) {
	dev := NewSimDevice(false)
	var conn, auth []bool
	cancelConn := dev.OnConnectionChanged(func(c bool) { conn = append(conn, c) })
	cancelAuth := dev.OnAuthorizationResult(func(g bool) { auth = append(auth, g) })

	dev.SetConnected(true)
	dev.SetConnected(true)
	dev.RequestAuthorization()
	dev.Answer(false)
	dev.Answer(true)
	dev.SetConnected(false)

	assert.Equal(t, []bool{true, false}, conn, "unchanged connection state is not reported")
	assert.Equal(t, []bool{false, true}, auth)
	assert.Equal(t, 1, dev.Requests())
	assert.True(t, dev.HasAuthorization())

	cancelConn()
	cancelConn()
	cancelAuth()
	c, a := dev.Listeners()
	assert.Equal(t, 0, c)
	assert.Equal(t, 0, a)
}

func TestSimDeviceAutoGrant(t *testing.T) {
	dev := NewSimDevice(true)
	var granted atomic.Bool
	dev.OnAuthorizationResult(func(g bool) { granted.Store(g) })

	dev.RequestAuthorization()
	assert.True(t, granted.Load())
	assert.True(t, dev.HasAuthorization())
}

func TestSimDeviceDisplayMode(t *testing.T) {
	dev := NewSimDevice(false)
	assert.NoError(t, dev.SetDisplayMode(Mode3D))
	assert.Equal(t, Mode3D, dev.Mode())

	boom := errors.New("mode switch refused")
	dev.FailDisplayMode(boom)
	assert.ErrorIs(t, dev.SetDisplayMode(Mode2D), boom)
	assert.Equal(t, Mode3D, dev.Mode())
}

func TestSimDisplaysTopology(t *testing.T) {
	displays := NewSimDisplays()
	notified := 0
	displays.Subscribe(func() { notified++ })

	hdmi := &Display{Name: "HDMI-1", Modes: []Mode{{Width: 1920, Height: 1080, RefreshRate: 60}}}
	dp := &Display{Name: "DP-1"}
	displays.Plug(hdmi)
	displays.Plug(dp)
	assert.Equal(t, []*Display{hdmi, dp}, displays.Presentations())

	assert.True(t, displays.Unplug("HDMI-1"))
	assert.False(t, displays.Unplug("HDMI-1"))
	assert.Equal(t, []*Display{dp}, displays.Presentations())

	displays.Touch()
	assert.Equal(t, 4, notified)
}

func TestDisplayString(t *testing.T) {
	var none *Display
	assert.Equal(t, "<none>", none.String())
	d := &Display{Name: "HDMI-1", Modes: []Mode{{Width: 1280, Height: 720, RefreshRate: 60}}}
	assert.Equal(t, "HDMI-1[1280x720@60]", d.String())
	assert.Equal(t, Mode{}, (&Display{}).PreferredMode())
}

func TestTickerOrientation(t *testing.T) {
	src := NewTickerOrientation(2*time.Millisecond, 90)
	var samples atomic.Int32
	cancel := src.Subscribe(func(q Quaternion) {
		n := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
		if math.Abs(n-1) < 1e-9 {
			samples.Add(1)
		}
	})
	assert.Eventually(t, func() bool { return samples.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, src.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, src.Subscribers())
	after := samples.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, samples.Load(), "no samples after cancel")
}

func TestYaw(t *testing.T) {
	q := Yaw(180)
	assert.InDelta(t, 1, q.Y, 1e-9)
	assert.InDelta(t, 0, q.W, 1e-9)
	assert.Equal(t, Quaternion{W: 1}, Yaw(0))
}

func TestLogRenderer(t *testing.T) {
	r := NewLogRenderer()
	r.OnViewportChanged(1920, 1080)
	r.OnDrawFrame()
	r.OnDrawFrame()
	r.OnHeadOrientation(Yaw(90))

	w, h := r.Viewport()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
	assert.Equal(t, uint64(2), r.Frames())
	head, controller := r.Pose()
	assert.Equal(t, Yaw(90), head)
	assert.Equal(t, Quaternion{}, controller)
}
