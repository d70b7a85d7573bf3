package platform

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"lautenbacher.net/goglass/logging"
)

// LogRenderer is a Renderer without a GPU: it logs the native calls
// and keeps what a status view wants to show.
type LogRenderer struct {
	frames     atomic.Uint64
	mu         sync.Mutex
	width      int
	height     int
	head       Quaternion
	controller Quaternion
	log        *slog.Logger
}

func NewLogRenderer() *LogRenderer {
	return &LogRenderer{log: logging.For("native")}
}

func (r *LogRenderer) OnSurfaceCreated(assets string) {
	r.log.Info("Surface created", "assets", assets)
}

func (r *LogRenderer) OnViewportChanged(width, height int) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	r.log.Info("Viewport changed", "width", width, "height", height)
}

func (r *LogRenderer) OnPause()   { r.log.Info("Paused") }
func (r *LogRenderer) OnResume()  { r.log.Info("Resumed") }
func (r *LogRenderer) OnDestroy() { r.log.Info("Destroyed", "frames", r.frames.Load()) }

func (r *LogRenderer) OnDrawFrame() {
	r.frames.Add(1)
}

func (r *LogRenderer) OnTouch(down bool, x, y float64) {
	r.log.Debug("Touch", "down", down, "x", x, "y", y)
}

func (r *LogRenderer) OnHeadOrientation(q Quaternion) {
	r.mu.Lock()
	r.head = q
	r.mu.Unlock()
}

func (r *LogRenderer) OnControllerOrientation(q Quaternion) {
	r.mu.Lock()
	r.controller = q
	r.mu.Unlock()
}

func (r *LogRenderer) Frames() uint64 {
	return r.frames.Load()
}

// Pose returns the last head and controller orientation received.
func (r *LogRenderer) Pose() (head, controller Quaternion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head, r.controller
}

func (r *LogRenderer) Viewport() (width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}
