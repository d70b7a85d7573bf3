package platform

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"lautenbacher.net/goglass/config"
	"lautenbacher.net/goglass/logging"
)

// displayFile is the content of one entry in the watched directory.
// An empty file is a display that reports no modes.
type displayFile struct {
	Modes []struct {
		Width   int     `yaml:"width"`
		Height  int     `yaml:"height"`
		Refresh float64 `yaml:"refresh"`
	} `yaml:"modes"`
}

// DirDisplaySource exposes every file in a directory that matches a
// glob pattern as a presentation display, in name order. A display
// keeps its identity until its file is removed. The modes are read
// once when the file appears; later writes only produce a change
// notification.
type DirDisplaySource struct {
	dir      string
	pattern  string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	mu       sync.Mutex
	displays map[string]*Display
	subs     subscribers[struct{}]
	stop     chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewDirDisplaySource(conf config.DisplayConfig) (*DirDisplaySource, error) {
	if _, err := filepath.Match(conf.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid display pattern %q: %w", conf.Pattern, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create display watcher: %w", err)
	}
	if err := fsw.Add(conf.WatchDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("can't watch display directory %s: %w", conf.WatchDir, err)
	}
	s := &DirDisplaySource{
		dir:      conf.WatchDir,
		pattern:  conf.Pattern,
		debounce: conf.Debounce,
		fsw:      fsw,
		displays: make(map[string]*Display),
		stop:     make(chan struct{}),
		log:      logging.For("displays").With("dir", conf.WatchDir),
	}
	s.rescan()
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *DirDisplaySource) Presentations() []*Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := maps.Keys(s.displays)
	slices.Sort(names)
	ret := make([]*Display, 0, len(names))
	for _, name := range names {
		ret = append(ret, s.displays[name])
	}
	return ret
}

func (s *DirDisplaySource) Subscribe(fn func()) CancelFunc {
	return s.subs.add(func(struct{}) { fn() })
}

func (s *DirDisplaySource) Close() error {
	close(s.stop)
	s.wg.Wait()
	return s.fsw.Close()
}

func (s *DirDisplaySource) run() {
	defer s.wg.Done()
	var pending <-chan time.Time
	for {
		select {
		case <-s.stop:
			s.log.Info("Ending display watcher go-routine...")
			return
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			if match, _ := filepath.Match(s.pattern, filepath.Base(ev.Name)); !match {
				continue
			}
			if pending == nil {
				pending = time.After(s.debounce)
			}
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			s.log.Error("Display watcher error", "error", err)
		case <-pending:
			pending = nil
			s.rescan()
			s.subs.notify(struct{}{})
		}
	}
}

// rescan brings the display map in line with the directory content.
func (s *DirDisplaySource) rescan() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Error("Can't read display directory", "error", err)
		return
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if match, _ := filepath.Match(s.pattern, e.Name()); match {
			seen[e.Name()] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.displays {
		if !seen[name] {
			delete(s.displays, name)
			s.log.Info("Display removed", "name", name)
		}
	}
	for name := range seen {
		if _, ok := s.displays[name]; ok {
			continue
		}
		d := s.readDisplay(name)
		s.displays[name] = d
		s.log.Info("Display added", "display", d.String())
	}
}

func (s *DirDisplaySource) readDisplay(name string) *Display {
	d := &Display{Name: name}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		s.log.Warn("Can't read display file", "name", name, "error", err)
		return d
	}
	var df displayFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		s.log.Warn("Can't decode display file, assuming no modes", "name", name, "error", err)
		return d
	}
	for _, m := range df.Modes {
		d.Modes = append(d.Modes, Mode{Width: m.Width, Height: m.Height, RefreshRate: m.Refresh})
	}
	return d
}
