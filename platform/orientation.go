package platform

import (
	"math"
	"sync"
	"time"
)

// TickerOrientation is an OrientationSource that turns around the
// vertical axis at a constant rate, one sample per interval. Every
// subscriber gets its own ticker.
type TickerOrientation struct {
	interval   time.Duration
	degPerSec  float64
	mu         sync.Mutex
	subscribed int
}

func NewTickerOrientation(interval time.Duration, degPerSec float64) *TickerOrientation {
	return &TickerOrientation{interval: interval, degPerSec: degPerSec}
}

func (o *TickerOrientation) Subscribe(fn func(Quaternion)) CancelFunc {
	stop := make(chan struct{})
	done := make(chan struct{})
	o.mu.Lock()
	o.subscribed++
	o.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				fn(Yaw(o.degPerSec * now.Sub(start).Seconds()))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			o.mu.Lock()
			o.subscribed--
			o.mu.Unlock()
		})
	}
}

// Subscribers is the number of live subscriptions.
func (o *TickerOrientation) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.subscribed
}

// Yaw is the rotation by deg degrees around the vertical axis.
func Yaw(deg float64) Quaternion {
	half := deg * math.Pi / 360
	return Quaternion{Y: math.Sin(half), W: math.Cos(half)}
}
