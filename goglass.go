package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lautenbacher.net/goglass/config"
	"lautenbacher.net/goglass/lifecycle"
	"lautenbacher.net/goglass/logging"
	"lautenbacher.net/goglass/platform"
	"lautenbacher.net/goglass/tui"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	ossignal  chan os.Signal
	cfile     string
	conf      config.Config
	coord     *lifecycle.Coordinator
	watcher   *config.Watcher
	reloads   chan config.Config
	closers   []func()
	sim       *tui.Simulation
	webServer *http.Server
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		ossignal: ossignal,
		reloads:  make(chan config.Config, 1),
	}
}

func main() {
	cfile := flag.String("config", config.CONFILE, "Path to the config file")
	simulate := flag.Bool("sim", false, "Run the interactive simulation instead of the display directory")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(ossignal)
	if err := app.Initialise(*cfile, *simulate); err != nil {
		fmt.Fprintf(os.Stderr, "goglass: %v\n", err)
		os.Exit(1)
	}
	app.Run()
}

// Initialise reads the config, sets up logging and wires the platform
// to a new coordinator. A missing config file is not an error, the
// defaults are used instead.
func (a *App) Initialise(cfile string, simulate bool) error {
	a.cfile = cfile
	conf, err := config.ReadConfig(cfile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		conf = config.Default()
	}
	if simulate {
		conf.Simulation.Enabled = true
	}
	a.conf = conf

	if err := logging.Init(conf.Logging, conf.Simulation.Enabled); err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	if err != nil {
		slog.Warn("No config file, using defaults", "file", cfile)
	}

	if conf.Simulation.Enabled {
		a.initSimulation()
	} else if err := a.initDisplayDir(); err != nil {
		return err
	}

	if w, err := config.NewWatcher(cfile, a.onConfigChanged); err != nil {
		slog.Warn("Config file is not watched", "error", err)
	} else {
		a.watcher = w
	}
	a.startWebServer()
	return nil
}

func (a *App) head() platform.OrientationSource {
	return platform.NewTickerOrientation(a.conf.Orientation.SampleInterval, 30)
}

func (a *App) initSimulation() {
	device := platform.NewSimDevice(a.conf.Simulation.AutoGrantPermission)
	displays := platform.NewSimDisplays()
	renderer := platform.NewLogRenderer()
	a.coord = lifecycle.New(lifecycle.Sources{
		Device:     device,
		Displays:   displays,
		Head:       a.head(),
		Controller: platform.NewTickerOrientation(a.conf.Orientation.SampleInterval, -15),
	}, renderer, a.conf.Render)
	a.sim = tui.NewSimulation(a.coord, device, displays, renderer, a.ossignal)
}

// initDisplayDir runs against a display directory: the headset counts as
// connected while it exports at least one presentation display.
func (a *App) initDisplayDir() error {
	displays, err := platform.NewDirDisplaySource(a.conf.Display)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { displays.Close() })

	device := platform.NewSimDevice(true)
	follow := func() { device.SetConnected(len(displays.Presentations()) > 0) }
	cancel := displays.Subscribe(follow)
	a.closers = append(a.closers, cancel)
	follow()

	a.coord = lifecycle.New(lifecycle.Sources{
		Device:   device,
		Displays: displays,
		Head:     a.head(),
	}, platform.NewLogRenderer(), a.conf.Render)
	return nil
}

func (a *App) startWebServer() {
	if a.conf.Web.Listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", config.ConfigHandler(a.cfile))
	a.webServer = &http.Server{Addr: a.conf.Web.Listen, Handler: mux}
	go func() {
		slog.Info("Starting config API", "listen", a.conf.Web.Listen)
		if err := a.webServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Config API failed", "error", err)
		}
	}()
}

// onConfigChanged runs on the watcher's go-routine; the change is
// applied by Run.
func (a *App) onConfigChanged(conf config.Config) {
	select {
	case a.reloads <- conf:
	default:
		<-a.reloads
		a.reloads <- conf
	}
}

func (a *App) applyConfig(conf config.Config) {
	a.conf.ApplyRuntime(conf.Runtime())
	logging.SetLevel(a.conf.Logging.Level)
	a.coord.ApplyConfig(a.conf.Render)
	slog.Info("Configuration reloaded", "level", a.conf.Logging.Level,
		"handshakeTimeout", a.conf.Render.HandshakeTimeout)
}

func (a *App) reload() {
	conf, err := config.ReadConfig(a.cfile)
	if err != nil {
		slog.Error("Reload failed, keeping current config", "error", err)
		return
	}
	a.applyConfig(conf)
}

// Run starts the session and blocks until an interrupt or SIGTERM.
func (a *App) Run() {
	if a.sim != nil {
		a.sim.Start()
		<-a.sim.Ready()
	}
	if err := a.coord.Start(); err != nil {
		slog.Error("Failed to start", "error", err)
		a.shutdown()
		return
	}
	slog.Info("GOGLASS started", "simulation", a.sim != nil)

	for {
		select {
		case sig := <-a.ossignal:
			if sig == syscall.SIGHUP {
				slog.Info("Reloading config", "file", a.cfile)
				a.reload()
				continue
			}
			slog.Info("Received signal, shutting down", "signal", sig)
			a.shutdown()
			return
		case conf := <-a.reloads:
			a.applyConfig(conf)
		}
	}
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.coord.Stop(ctx); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
	}
	if a.webServer != nil {
		a.webServer.Shutdown(ctx)
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	for _, closer := range a.closers {
		closer()
	}
	if a.sim != nil {
		a.sim.Stop()
		logging.BufferOutput()
	}
	slog.Info("Shutdown complete")
	logging.Close()
}
