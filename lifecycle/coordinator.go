// Package lifecycle drives the headset session from the application
// lifecycle: it opens the connection gate, subscribes the sensors while
// resumed and active, lets the display monitor create the render
// surface and runs the blocking teardown handshakes on pause and
// destroy.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"lautenbacher.net/goglass/config"
	"lautenbacher.net/goglass/display"
	"lautenbacher.net/goglass/gate"
	"lautenbacher.net/goglass/logging"
	"lautenbacher.net/goglass/platform"
	"lautenbacher.net/goglass/render"
	"lautenbacher.net/goglass/util"
)

type Phase int32

const (
	Initial Phase = iota
	Created
	Resumed
	Paused
	Stopped
	Destroyed
)

func (p Phase) String() string {
	switch p {
	case Initial:
		return "Initial"
	case Created:
		return "Created"
	case Resumed:
		return "Resumed"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	case Destroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Sources are the platform collaborators. Controller may be nil.
type Sources struct {
	Device     platform.DeviceSession
	Displays   platform.DisplaySource
	Head       platform.OrientationSource
	Controller platform.OrientationSource
}

type Status struct {
	Phase   Phase
	Gate    gate.State
	Display string
	Render  render.Stats
	Frames  uint64
}

type Coordinator struct {
	mu         sync.Mutex
	phase      atomic.Int32
	src        Sources
	gate       *gate.Gate
	bridge     *render.Bridge
	monitor    *display.Monitor
	renderConf config.RenderConfig
	hotplug    platform.CancelFunc
	head       platform.CancelFunc
	controller platform.CancelFunc
	updates    *util.Notifier
	log        *slog.Logger
}

func New(src Sources, renderer platform.Renderer, conf config.RenderConfig) *Coordinator {
	c := &Coordinator{
		src:        src,
		renderConf: conf,
		updates:    util.NewNotifier(),
		log:        logging.For("lifecycle"),
	}
	c.bridge = render.NewBridge(render.NewNative(renderer), conf.HandshakeTimeout)
	c.gate = gate.New(src.Device, gate.Hooks{
		Activated:   c.onActivated,
		Deactivated: c.onDeactivated,
		Recheck:     c.onRecheck,
		Changed:     func(from, to gate.State) { c.publish() },
	})
	c.monitor = display.New(src.Displays, c.bridge, c.startThread, display.Conditions{
		Allowed:    func() bool { return c.gate.State() == gate.Active },
		Foreground: func() bool { return c.Phase() == Resumed },
	}, conf.RetireTimeout)
	return c
}

func (c *Coordinator) startThread(d *platform.Display) render.Thread {
	c.mu.Lock()
	conf := c.renderConf
	c.mu.Unlock()
	return render.StartLoopThread(c.bridge.Native(), d, conf)
}

// ApplyConfig takes over a reloaded render configuration. Running
// render threads keep their settings, new ones use conf.
func (c *Coordinator) ApplyConfig(conf config.RenderConfig) {
	c.mu.Lock()
	c.renderConf = conf
	c.mu.Unlock()
	c.bridge.SetHandshakeTimeout(conf.HandshakeTimeout)
	c.monitor.SetRetireTimeout(conf.RetireTimeout)
}

func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Coordinator) setPhase(p Phase) {
	old := Phase(c.phase.Swap(int32(p)))
	c.log.Info("Lifecycle", "from", old, "to", p)
	c.publish()
}

func (c *Coordinator) Gate() *gate.Gate {
	return c.gate
}

func (c *Coordinator) Bridge() *render.Bridge {
	return c.bridge
}

func (c *Coordinator) Status() Status {
	return Status{
		Phase:   c.Phase(),
		Gate:    c.gate.State(),
		Display: c.monitor.Current().String(),
		Render:  c.bridge.Stats(),
		Frames:  c.bridge.Native().Frames(),
	}
}

// Updates delivers a wakeup after every phase or gate change; read the
// new state with Status.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.updates.C()
}

func (c *Coordinator) publish() {
	c.updates.Notify()
}

func (c *Coordinator) OnCreate() error {
	c.setPhase(Created)
	if err := c.gate.Open(); err != nil {
		return fmt.Errorf("failed to open connection gate: %w", err)
	}
	c.gate.RequestActivation()
	return nil
}

func (c *Coordinator) OnResume() {
	c.setPhase(Resumed)

	c.mu.Lock()
	if c.hotplug == nil {
		c.hotplug = c.monitor.Watch()
	}
	if c.controller == nil && c.src.Controller != nil {
		c.controller = c.src.Controller.Subscribe(c.postControllerOrientation)
	}
	active := c.gate.State() == gate.Active
	if active {
		c.subscribeHeadLocked()
	}
	c.mu.Unlock()

	c.bridge.Post(c.bridge.Native().Resume)
	if active {
		c.monitor.OnDisplayTopologyChanged()
	} else {
		c.gate.RequestActivation()
	}
}

// OnPause stops every sensor first, so nothing is posted once the
// native pause has started, then blocks until the render thread has
// paused.
func (c *Coordinator) OnPause(ctx context.Context) error {
	c.setPhase(Paused)
	c.cancelSubscriptions()

	if err := c.bridge.PauseAndWait(ctx); err != nil {
		c.log.Error("Render thread did not confirm pause", "error", err)
		return err
	}
	return nil
}

func (c *Coordinator) OnStop() {
	c.setPhase(Stopped)
}

func (c *Coordinator) OnDestroy(ctx context.Context) error {
	c.setPhase(Destroyed)
	c.cancelSubscriptions()

	var errs []error
	if c.gate.State() == gate.Active {
		if err := c.src.Device.SetDisplayMode(platform.Mode2D); err != nil {
			errs = append(errs, fmt.Errorf("failed to switch headset back to 2D: %w", err))
		}
	}
	if err := c.monitor.Teardown(ctx); err != nil {
		errs = append(errs, err)
	}
	c.gate.Close()
	c.publish()
	if err := errors.Join(errs...); err != nil {
		c.log.Error("Teardown incomplete", "error", err)
		return err
	}
	return nil
}

// Start brings the session from nothing to resumed.
func (c *Coordinator) Start() error {
	if err := c.OnCreate(); err != nil {
		return err
	}
	c.OnResume()
	return nil
}

// Stop runs pause, stop and destroy, in that order. The destroy runs
// even if the pause failed.
func (c *Coordinator) Stop(ctx context.Context) error {
	var pauseErr error
	if c.Phase() == Resumed {
		pauseErr = c.OnPause(ctx)
	}
	c.OnStop()
	return errors.Join(pauseErr, c.OnDestroy(ctx))
}

func (c *Coordinator) NotifyTopologyChanged() {
	if c.Phase() != Resumed {
		return
	}
	c.monitor.OnDisplayTopologyChanged()
}

// NotifyOrientationSample forwards a head orientation sample from an
// external sensor feed. Samples outside of an active, resumed session
// are dropped.
func (c *Coordinator) NotifyOrientationSample(q platform.Quaternion) {
	if c.Phase() != Resumed || c.gate.State() != gate.Active {
		return
	}
	c.postHeadOrientation(q)
}

func (c *Coordinator) NotifyControllerOrientation(q platform.Quaternion) {
	if c.Phase() != Resumed {
		return
	}
	c.postControllerOrientation(q)
}

func (c *Coordinator) NotifyTouch(down bool, x, y float64) {
	if c.Phase() != Resumed {
		return
	}
	native := c.bridge.Native()
	c.bridge.Post(func() { native.Touch(down, x, y) })
}

func (c *Coordinator) postHeadOrientation(q platform.Quaternion) {
	native := c.bridge.Native()
	c.bridge.Post(func() { native.HeadOrientation(q) })
}

func (c *Coordinator) postControllerOrientation(q platform.Quaternion) {
	native := c.bridge.Native()
	c.bridge.Post(func() { native.ControllerOrientation(q) })
}

// subscribeHeadLocked starts head tracking unless it is running. c.mu
// must be held.
func (c *Coordinator) subscribeHeadLocked() {
	if c.head == nil {
		c.head = c.src.Head.Subscribe(c.postHeadOrientation)
	}
}

func (c *Coordinator) cancelSubscriptions() {
	c.mu.Lock()
	cancels := []platform.CancelFunc{c.hotplug, c.head, c.controller}
	c.hotplug, c.head, c.controller = nil, nil, nil
	c.mu.Unlock()

	// outside of c.mu: a cancel may wait for a sample in flight
	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
}

func (c *Coordinator) onActivated() {
	if err := c.src.Device.SetDisplayMode(platform.Mode3D); err != nil {
		c.log.Error("Failed to switch headset to 3D", "error", err)
		c.gate.Fail()
		return
	}
	c.log.Info("Headset active")

	// A disconnect may have ended the session while the mode switch
	// was running; onDeactivated clears c.head under c.mu as well.
	c.mu.Lock()
	run := c.Phase() == Resumed && c.gate.State() == gate.Active
	if run {
		c.subscribeHeadLocked()
	}
	c.mu.Unlock()

	if run {
		c.monitor.OnDisplayTopologyChanged()
	}
}

// onDeactivated tears everything down after the headset went away
// while active.
func (c *Coordinator) onDeactivated() {
	c.log.Info("Headset disconnected, tearing down")
	c.mu.Lock()
	head := c.head
	c.head = nil
	c.mu.Unlock()
	if head != nil {
		head()
	}

	if err := c.monitor.Teardown(context.Background()); err != nil {
		c.log.Error("Teardown after disconnect failed", "error", err)
	}
	if c.Phase() == Resumed {
		// the next surface starts resumed again
		c.bridge.Post(c.bridge.Native().Resume)
	}
	c.publish()
}

func (c *Coordinator) onRecheck() {
	if c.Phase() != Resumed {
		return
	}
	c.monitor.OnDisplayTopologyChanged()
}
