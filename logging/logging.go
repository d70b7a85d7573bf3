package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"lautenbacher.net/goglass/config"
)

// teeWriter holds log output back while a TUI is starting up and
// copies every line to an optional log file.
type teeWriter struct {
	mu          sync.Mutex
	held        bytes.Buffer
	target      io.Writer
	file        *os.File
	isBuffering bool
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	switch {
	case w.isBuffering:
		w.held.Write(p)
	case w.target != nil:
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

var (
	writer   *teeWriter
	levelVar slog.LevelVar
)

// Init installs the default slog logger described by conf. With
// bufferOutput set, nothing is written to the console until SetOutput
// is called; the simulation TUI uses this to route logs into its pane.
func Init(conf config.LoggingConfig, bufferOutput bool) error {
	w := &teeWriter{isBuffering: bufferOutput}
	if !bufferOutput {
		w.target = os.Stderr
	}
	if conf.File != "" {
		file, err := os.OpenFile(conf.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		w.file = file
	}
	writer = w

	levelVar.Set(ParseLevel(conf.Level))
	opts := &slog.HandlerOptions{Level: &levelVar}

	var handler slog.Handler
	if strings.ToLower(conf.Format) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the level of the running logger, used on config reload.
func SetLevel(levelStr string) {
	levelVar.Set(ParseLevel(levelStr))
}

// For returns the default logger tagged with a component name.
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// SetOutput flushes everything held back so far to newTarget and
// writes there directly from now on.
func SetOutput(newTarget io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.held.Len() > 0 {
		if _, err := newTarget.Write(writer.held.Bytes()); err != nil {
			return err
		}
		writer.held.Reset()
	}
	writer.target = newTarget
	writer.isBuffering = false
	return nil
}

// BufferOutput stops console output and holds log lines back again.
func BufferOutput() {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	writer.target = nil
	writer.isBuffering = true
}

// Close flushes held back output (to the log file, or to stderr when
// there is nowhere else to go) and closes the log file.
func Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error
	if writer.file != nil {
		if err := writer.file.Close(); err != nil {
			firstErr = err
		}
		writer.file = nil
	}
	if writer.target == nil && writer.held.Len() > 0 {
		if _, err := os.Stderr.Write(writer.held.Bytes()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	writer.held.Reset()
	return firstErr
}
