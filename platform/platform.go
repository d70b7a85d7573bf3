package platform

import (
	"fmt"
)

// CancelFunc ends a subscription. Calling it more than once is allowed.
type CancelFunc func()

// Quaternion is an orientation sample in x, y, z, w order.
type Quaternion struct {
	X, Y, Z, W float64
}

func (q Quaternion) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f, %.3f)", q.X, q.Y, q.Z, q.W)
}

type DisplayMode int

const (
	Mode2D DisplayMode = iota
	Mode3D
)

func (m DisplayMode) String() string {
	switch m {
	case Mode2D:
		return "2D"
	case Mode3D:
		return "3D"
	default:
		return fmt.Sprintf("DisplayMode(%d)", int(m))
	}
}

// DeviceSession is the tethered headset: connection state and the USB
// style authorization needed before it may be driven.
type DeviceSession interface {
	IsConnected() bool
	HasAuthorization() bool
	// RequestAuthorization asks the user for access. The answer arrives
	// asynchronously through OnAuthorizationResult.
	RequestAuthorization()
	OnConnectionChanged(fn func(connected bool)) CancelFunc
	OnAuthorizationResult(fn func(granted bool)) CancelFunc
	// SetDisplayMode switches the headset between mirrored 2D and
	// side-by-side 3D output.
	SetDisplayMode(mode DisplayMode) error
}

// OrientationSource delivers orientation samples at a fixed nominal
// rate while subscribed. Callbacks run on the source's goroutine.
type OrientationSource interface {
	Subscribe(fn func(Quaternion)) CancelFunc
}

// DisplaySource enumerates presentation capable displays and reports
// topology changes (add, change, remove) without telling which.
type DisplaySource interface {
	Presentations() []*Display
	Subscribe(fn func()) CancelFunc
}

// Renderer is the native side. Every method is called from the render
// goroutine only, in the order created, (resumed, draw*, paused)*, destroyed.
type Renderer interface {
	OnSurfaceCreated(assets string)
	OnViewportChanged(width, height int)
	OnPause()
	OnResume()
	OnDestroy()
	OnDrawFrame()
	OnTouch(down bool, x, y float64)
	OnHeadOrientation(q Quaternion)
	OnControllerOrientation(q Quaternion)
}
