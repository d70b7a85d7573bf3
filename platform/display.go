package platform

import (
	"fmt"
)

type Mode struct {
	Width       int
	Height      int
	RefreshRate float64
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%.0f", m.Width, m.Height, m.RefreshRate)
}

// Display is one attached presentation display. Identity is the
// pointer: a source hands out the same *Display for as long as the
// display stays attached and a fresh one after it was re-attached.
type Display struct {
	Name  string
	Modes []Mode
}

// PreferredMode is the first supported mode, or a zero Mode if the
// display did not report any.
func (d *Display) PreferredMode() Mode {
	if len(d.Modes) == 0 {
		return Mode{}
	}
	return d.Modes[0]
}

func (d *Display) String() string {
	if d == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s[%s]", d.Name, d.PreferredMode())
}
