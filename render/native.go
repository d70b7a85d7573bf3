package render

import (
	"sync/atomic"

	"lautenbacher.net/goglass/platform"
)

// Native wraps the opaque renderer and remembers whether it is between
// a resume and a pause, so the render loop only draws while resumed.
// All methods are meant to be called from a render goroutine; the state
// survives surface recreation.
type Native struct {
	r       platform.Renderer
	resumed atomic.Bool
	frames  atomic.Uint64
}

func NewNative(r platform.Renderer) *Native {
	return &Native{r: r}
}

func (n *Native) SurfaceCreated(assets string) {
	n.r.OnSurfaceCreated(assets)
}

func (n *Native) ViewportChanged(width, height int) {
	n.r.OnViewportChanged(width, height)
}

func (n *Native) Resume() {
	n.resumed.Store(true)
	n.r.OnResume()
}

func (n *Native) Pause() {
	n.resumed.Store(false)
	n.r.OnPause()
}

func (n *Native) Destroy() {
	n.resumed.Store(false)
	n.r.OnDestroy()
}

// DrawFrame renders one frame if resumed and reports whether it did.
func (n *Native) DrawFrame() bool {
	if !n.resumed.Load() {
		return false
	}
	n.r.OnDrawFrame()
	n.frames.Add(1)
	return true
}

func (n *Native) Touch(down bool, x, y float64) {
	n.r.OnTouch(down, x, y)
}

func (n *Native) HeadOrientation(q platform.Quaternion) {
	n.r.OnHeadOrientation(q)
}

func (n *Native) ControllerOrientation(q platform.Quaternion) {
	n.r.OnControllerOrientation(q)
}

func (n *Native) Resumed() bool {
	return n.resumed.Load()
}

func (n *Native) Frames() uint64 {
	return n.frames.Load()
}
