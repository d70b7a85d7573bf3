package render

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"lautenbacher.net/goglass/config"
	"lautenbacher.net/goglass/logging"
	"lautenbacher.net/goglass/platform"
	"lautenbacher.net/goglass/util"
)

// Thread is the goroutine that owns the GPU context of one surface.
type Thread interface {
	// Queue schedules ev on the thread. It never blocks.
	Queue(ev Event)
	// Close asks the thread to exit once the events queued so far have
	// run. It returns immediately.
	Close()
	// Done is closed once the thread has exited, normally or not.
	Done() <-chan struct{}
}

// LoopThread is the Thread used in production: it creates the native
// surface, then alternates between running queued events and drawing
// frames until it is closed.
type LoopThread struct {
	native    *Native
	display   *platform.Display
	conf      config.RenderConfig
	mailbox   Queue
	wake      *util.Notifier
	quit      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	log       *slog.Logger
}

func StartLoopThread(native *Native, display *platform.Display, conf config.RenderConfig) *LoopThread {
	t := &LoopThread{
		native:  native,
		display: display,
		conf:    conf,
		wake:    util.NewNotifier(),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     logging.For("render").With("display", display.Name),
	}
	go t.run()
	return t
}

func (t *LoopThread) Queue(ev Event) {
	t.mailbox.Enqueue(ev)
	t.wake.Notify()
}

func (t *LoopThread) Close() {
	t.closeOnce.Do(func() { close(t.quit) })
}

func (t *LoopThread) Done() <-chan struct{} {
	return t.done
}

func (t *LoopThread) run() {
	defer close(t.done)
	if t.conf.LockOSThread {
		// The GPU context is bound to the OS thread that created it.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("Render thread died", "panic", r)
		}
	}()

	mode := t.display.PreferredMode()
	t.log.Info("Creating render surface", "mode", mode.String())
	t.native.SurfaceCreated(t.conf.Assets)
	t.native.ViewportChanged(mode.Width, mode.Height)

	ticker := time.NewTicker(t.conf.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			// Everything posted before Close still runs.
			if n := t.mailbox.DrainInto(func(ev Event) { ev() }); n > 0 {
				t.log.Debug("Ran remaining events of a closed render thread", "count", n)
			}
			t.log.Info("Ending render go-routine...")
			return
		case <-t.wake.C():
			t.mailbox.DrainInto(func(ev Event) { ev() })
		case <-ticker.C:
			t.native.DrawFrame()
		}
	}
}
