package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-reads a config file whenever it is written and hands every
// valid result to onChange. Invalid files are logged and ignored, the
// previous configuration stays in effect.
type Watcher struct {
	path     string
	onChange func(Config)
	settle   time.Duration
	fsw      *fsnotify.Watcher
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(path string, onChange func(Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Watch the directory, editors usually replace the file instead of
	// writing it in place.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		path:     abs,
		onChange: onChange,
		settle:   100 * time.Millisecond,
		fsw:      fsw,
		stop:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	var pending <-chan time.Time
	for {
		select {
		case <-w.stop:
			slog.Info("Ending config watcher go-routine...")
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.settle)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		case <-pending:
			pending = nil
			conf, err := ReadConfig(w.path)
			if err != nil {
				slog.Error("Config reload failed, keeping current config", "error", err)
				continue
			}
			slog.Info("Config file changed", "file", w.path)
			w.onChange(conf)
		}
	}
}

func (w *Watcher) Close() error {
	close(w.stop)
	w.wg.Wait()
	return w.fsw.Close()
}
