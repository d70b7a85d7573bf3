// Package gate tracks the headset connection and the authorization
// handshake that has to succeed before the headset may be driven.
//
// State machine:
//
//	Disconnected       --connect-->                    Connected
//	Connected          --activate, authorized-->       Active
//	Connected          --activate, not authorized-->   AwaitingPermission (one request)
//	AwaitingPermission --granted-->                    Active
//	AwaitingPermission --connect-->                    Connected (next activate asks again)
//	Active             --Fail-->                       Connected
//	any                --disconnect-->                 Disconnected
//
// A denied request leaves the gate in AwaitingPermission; it never asks
// again on its own.
package gate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lautenbacher.net/goglass/logging"
	"lautenbacher.net/goglass/platform"
)

type State int

const (
	Disconnected State = iota
	Connected
	AwaitingPermission
	Active
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case AwaitingPermission:
		return "AwaitingPermission"
	case Active:
		return "Active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var ErrAlreadyOpen = errors.New("gate is already registered with the device")

// Hooks are invoked after the state change they report, never with the
// gate's lock held. Any of them may be nil.
type Hooks struct {
	// Activated runs on the transition into Active.
	Activated func()
	// Deactivated runs when a disconnect ends an Active session.
	Deactivated func()
	// Recheck runs when a connect notification arrives while Active,
	// e.g. after a transient drop of the link.
	Recheck func()
	// Changed runs after every state change.
	Changed func(from, to State)
}

type Gate struct {
	mu      sync.Mutex
	state   State
	device  platform.DeviceSession
	hooks   Hooks
	cancels []platform.CancelFunc
	log     *slog.Logger
}

func New(device platform.DeviceSession, hooks Hooks) *Gate {
	return &Gate{
		device: device,
		hooks:  hooks,
		log:    logging.For("gate"),
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Open registers for connection and authorization notifications and
// picks up a device that is already connected.
func (g *Gate) Open() error {
	g.mu.Lock()
	if g.cancels != nil {
		g.mu.Unlock()
		return ErrAlreadyOpen
	}
	g.cancels = []platform.CancelFunc{
		g.device.OnConnectionChanged(func(connected bool) {
			g.OnConnectionChanged(connected)
			if connected {
				g.RequestActivation()
			}
		}),
		g.device.OnAuthorizationResult(g.OnPermissionResult),
	}
	g.mu.Unlock()

	if g.device.IsConnected() {
		g.OnConnectionChanged(true)
		g.RequestActivation()
	}
	return nil
}

// Close drops the notification registrations, including the one that
// would deliver the answer to an outstanding authorization request.
func (g *Gate) Close() {
	g.mu.Lock()
	cancels := g.cancels
	g.cancels = nil
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (g *Gate) OnConnectionChanged(connected bool) {
	g.mu.Lock()
	from := g.state
	var after func()
	switch {
	case !connected:
		g.state = Disconnected
		if from == Active {
			after = g.hooks.Deactivated
		}
	case from == Disconnected, from == AwaitingPermission:
		g.state = Connected
	case from == Active:
		after = g.hooks.Recheck
	}
	to := g.state
	g.mu.Unlock()

	g.log.Debug("Connection changed", "connected", connected, "state", to)
	g.report(from, to)
	if after != nil {
		after()
	}
}

// RequestActivation moves a connected gate towards Active, asking for
// authorization at most once per connection. It does nothing while
// disconnected.
func (g *Gate) RequestActivation() {
	g.mu.Lock()
	from := g.state
	var ask bool
	var after func()
	switch from {
	case Disconnected:
		g.log.Debug("Headset not connected yet")
	case Connected:
		if g.device.HasAuthorization() {
			g.state = Active
			after = g.hooks.Activated
		} else {
			g.state = AwaitingPermission
			ask = true
		}
	case AwaitingPermission:
		g.log.Debug("Authorization request already outstanding")
	case Active:
		g.log.Debug("Duplicated activation request")
	}
	to := g.state
	g.mu.Unlock()

	g.report(from, to)
	if ask {
		g.log.Info("Asking for USB permission")
		g.device.RequestAuthorization()
	}
	if after != nil {
		after()
	}
}

func (g *Gate) OnPermissionResult(granted bool) {
	g.mu.Lock()
	from := g.state
	var after func()
	if from == AwaitingPermission && granted {
		g.state = Active
		after = g.hooks.Activated
	}
	to := g.state
	g.mu.Unlock()

	if !granted {
		g.log.Warn("USB permission denied, waiting for the next connection", "state", to)
	} else if from != AwaitingPermission {
		g.log.Debug("Ignoring permission result", "state", from)
	}
	g.report(from, to)
	if after != nil {
		after()
	}
}

// Fail reports that bringing up an Active session did not work out.
// The gate falls back to Connected so the next connection event can
// retry.
func (g *Gate) Fail() {
	g.mu.Lock()
	from := g.state
	if from == Active {
		g.state = Connected
	}
	to := g.state
	g.mu.Unlock()
	g.report(from, to)
}

func (g *Gate) report(from, to State) {
	if from == to {
		return
	}
	g.log.Info("Gate state changed", "from", from, "to", to)
	if g.hooks.Changed != nil {
		g.hooks.Changed(from, to)
	}
}
