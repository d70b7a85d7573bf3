package util

// Notifier turns any number of Notify calls into at most one pending
// wakeup. Notify never blocks.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
		// a wakeup is already pending
	}
}

// C is the channel to select on. One receive consumes all Notify calls
// made since the previous receive.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}
