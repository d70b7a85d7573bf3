package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/goglass/lifecycle"
	"lautenbacher.net/goglass/logging"
	"lautenbacher.net/goglass/platform"
)

const (
	refreshInterval = 250 * time.Millisecond
	fpsWindow       = 8
)

// Simulation is the interactive front end of the simulated platform:
// the keyboard plugs the headset and displays in and out, answers the
// permission dialog and drives the lifecycle.
type Simulation struct {
	tviewapp     *tview.Application
	intro        *tview.TextView
	statusView   *tview.TextView
	logView      *tview.TextView
	coord        *lifecycle.Coordinator
	device       *platform.SimDevice
	displays     *platform.SimDisplays
	renderer     *platform.LogRenderer
	ossignalChan chan os.Signal
	actions      chan func()
	frames       deque.Deque[uint64]
	plugged      int
	logFlushOnce sync.Once
	readyChan    chan bool
	stop         chan struct{}
	wg           sync.WaitGroup
}

func NewSimulation(coord *lifecycle.Coordinator, device *platform.SimDevice, displays *platform.SimDisplays,
	renderer *platform.LogRenderer, ossignalchan chan os.Signal) *Simulation {
	return &Simulation{
		coord:        coord,
		device:       device,
		displays:     displays,
		renderer:     renderer,
		ossignalChan: ossignalchan,
		actions:      make(chan func(), 16),
		readyChan:    make(chan bool),
		stop:         make(chan struct{}),
	}
}

// Ready is closed after the first draw, once log output goes to the log pane.
func (s *Simulation) Ready() <-chan bool {
	return s.readyChan
}

func (s *Simulation) Start() {
	s.initTUI()

	s.wg.Add(2)
	go s.runActions()
	go s.refresh()
}

func (s *Simulation) Stop() {
	close(s.stop)
	s.wg.Wait()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func introText() string {
	line1 := "[#ff0000]c[-] connect/disconnect headset | [#ff0000]g[-]/[#ff0000]n[-] grant/deny permission"
	line2 := "[#ff0000]a[-] attach display | [#ff0000]x[-] detach display | [#ff0000]t[-] touch | [#ff0000]p[-] pause/resume"
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *Simulation) initTUI() {
	s.tviewapp = tview.NewApplication()

	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(introText())
	s.intro.SetBorder(true).SetTitle(" GOGLASS Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.statusView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.statusView.SetBorder(true).SetTitle(" Session ").SetTitleColor(tcell.ColorLightBlue)
	s.statusView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.statusView, 8, 0, false).
		AddItem(s.logView, 0, 1, true)

	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logging.SetOutput(tview.ANSIWriter(s.logView))
			close(s.readyChan)
		})
	})

	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			s.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyRune:
			if action := s.keyAction(event.Rune()); action != nil {
				s.submit(action)
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// keyAction maps a key to what it does, or nil for keys without a meaning.
func (s *Simulation) keyAction(r rune) func() {
	switch r {
	case 'c', 'C':
		return func() { s.device.SetConnected(!s.device.IsConnected()) }
	case 'g', 'G':
		return func() { s.device.Answer(true) }
	case 'n', 'N':
		return func() { s.device.Answer(false) }
	case 'a', 'A':
		return func() {
			s.plugged++
			s.displays.Plug(&platform.Display{
				Name:  fmt.Sprintf("HDMI-%d", s.plugged),
				Modes: []platform.Mode{{Width: 1920, Height: 1080, RefreshRate: 60}},
			})
		}
	case 'x', 'X':
		return func() {
			if current := s.displays.Presentations(); len(current) > 0 {
				s.displays.Unplug(current[0].Name)
			}
		}
	case 't', 'T':
		return func() {
			s.coord.NotifyTouch(true, 0.5, 0.5)
			s.coord.NotifyTouch(false, 0.5, 0.5)
		}
	case 'p', 'P':
		return func() {
			if s.coord.Phase() == lifecycle.Resumed {
				s.coord.OnPause(context.Background())
			} else {
				s.coord.OnResume()
			}
		}
	case 'q', 'Q':
		return func() { s.ossignalChan <- os.Interrupt }
	case 'r', 'R':
		return func() { s.ossignalChan <- syscall.SIGHUP }
	}
	return nil
}

// submit hands an action to the action go-routine. Some actions block
// on the render thread and must not stall the TUI event loop.
func (s *Simulation) submit(action func()) {
	select {
	case s.actions <- action:
	default:
		slog.Warn("Simulation busy, key ignored")
	}
}

func (s *Simulation) runActions() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			slog.Info("Ending simulation action go-routine...")
			return
		case action := <-s.actions:
			action()
		}
	}
}

func (s *Simulation) refresh() {
	defer s.wg.Done()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-s.coord.Updates():
		case <-ticker.C:
		}
		text := s.statusText()
		s.tviewapp.QueueUpdateDraw(func() { s.statusView.SetText(text) })
	}
}

// fps keeps the frame counter of the last refreshes and derives the
// current frame rate from them.
func (s *Simulation) fps(frames uint64) float64 {
	s.frames.PushBack(frames)
	for s.frames.Len() > fpsWindow {
		s.frames.PopFront()
	}
	if s.frames.Len() < 2 {
		return 0
	}
	span := float64(s.frames.Len()-1) * refreshInterval.Seconds()
	return float64(s.frames.Back()-s.frames.Front()) / span
}

func (s *Simulation) statusText() string {
	st := s.coord.Status()
	head, controller := s.renderer.Pose()
	width, height := s.renderer.Viewport()

	var buf strings.Builder
	fmt.Fprintf(&buf, " Lifecycle: [yellow]%-10s[-] Gate: %s\n", st.Phase, gateColor(st.Gate.String()))
	fmt.Fprintf(&buf, " Headset:   connected=%v authorized=%v mode=%s\n",
		s.device.IsConnected(), s.device.HasAuthorization(), s.device.Mode())
	fmt.Fprintf(&buf, " Display:   %s viewport=%dx%d\n", st.Display, width, height)
	fmt.Fprintf(&buf, " Render:    attached=%v pending=%d direct=%d buffered=%d frames=%d (%.0f fps)\n",
		st.Render.Attached, st.Render.Pending, st.Render.Direct, st.Render.Buffered, st.Frames, s.fps(st.Frames))
	fmt.Fprintf(&buf, " Head:      %s\n", head)
	fmt.Fprintf(&buf, " Controller:%s", controller)
	return buf.String()
}

func gateColor(state string) string {
	switch state {
	case "Active":
		return "[green]" + state + "[-]"
	case "AwaitingPermission":
		return "[yellow]" + state + "[-]"
	default:
		return "[red]" + state + "[-]"
	}
}
