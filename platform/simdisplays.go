package platform

import (
	"slices"
	"sync"
)

// SimDisplays is a DisplaySource whose topology is changed by hand,
// from the simulation TUI or a test.
type SimDisplays struct {
	mu       sync.Mutex
	displays []*Display
	subs     subscribers[struct{}]
}

func NewSimDisplays() *SimDisplays {
	return &SimDisplays{}
}

func (s *SimDisplays) Presentations() []*Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.displays)
}

func (s *SimDisplays) Subscribe(fn func()) CancelFunc {
	return s.subs.add(func(struct{}) { fn() })
}

// Plug attaches d behind all displays already attached.
func (s *SimDisplays) Plug(d *Display) {
	s.mu.Lock()
	s.displays = append(s.displays, d)
	s.mu.Unlock()
	s.subs.notify(struct{}{})
}

// Unplug removes the display named name and reports whether there was one.
func (s *SimDisplays) Unplug(name string) bool {
	s.mu.Lock()
	before := len(s.displays)
	s.displays = slices.DeleteFunc(s.displays, func(d *Display) bool { return d.Name == name })
	removed := len(s.displays) != before
	s.mu.Unlock()
	if removed {
		s.subs.notify(struct{}{})
	}
	return removed
}

// Touch emits a change notification without changing anything, like a
// platform reporting a display property change.
func (s *SimDisplays) Touch() {
	s.subs.notify(struct{}{})
}
