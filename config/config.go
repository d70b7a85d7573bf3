package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

type Config struct {
	Logging     LoggingConfig     `yaml:"Logging" json:"Logging"`
	Render      RenderConfig      `yaml:"Render" json:"Render"`
	Display     DisplayConfig     `yaml:"Display" json:"Display"`
	Orientation OrientationConfig `yaml:"Orientation" json:"Orientation"`
	Simulation  SimulationConfig  `yaml:"Simulation" json:"Simulation"`
	Web         WebConfig         `yaml:"Web" json:"Web"`
}

type LoggingConfig struct {
	Level  string `yaml:"Level" json:"Level"`
	Format string `yaml:"Format" json:"Format"`
	File   string `yaml:"File" json:"File"`
}

type RenderConfig struct {
	// Pause between two OnDrawFrame calls while the native side is resumed.
	FrameInterval time.Duration `yaml:"FrameInterval" json:"FrameInterval"`
	// Upper bound for a pause/destroy rendezvous with the render thread.
	HandshakeTimeout time.Duration `yaml:"HandshakeTimeout" json:"HandshakeTimeout"`
	// Upper bound for waiting on a detached render thread before a new one is created.
	RetireTimeout time.Duration `yaml:"RetireTimeout" json:"RetireTimeout"`
	LockOSThread  bool          `yaml:"LockOSThread" json:"LockOSThread"`
	Assets        string        `yaml:"Assets" json:"Assets"`
}

type DisplayConfig struct {
	// Directory whose entries are the currently attached presentation displays.
	WatchDir string `yaml:"WatchDir" json:"WatchDir"`
	// Glob an entry name has to match to count as a presentation display.
	Pattern string `yaml:"Pattern" json:"Pattern"`
	// Quiet period used to coalesce bursts of add/change/remove events.
	Debounce time.Duration `yaml:"Debounce" json:"Debounce"`
}

type OrientationConfig struct {
	SampleInterval time.Duration `yaml:"SampleInterval" json:"SampleInterval"`
}

type SimulationConfig struct {
	Enabled             bool `yaml:"Enabled" json:"Enabled"`
	AutoGrantPermission bool `yaml:"AutoGrantPermission" json:"AutoGrantPermission"`
}

type WebConfig struct {
	// Address of the config API, e.g. "localhost:8080". Empty disables it.
	Listen string `yaml:"Listen" json:"Listen"`
}

// Default returns a configuration that works without a config file.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Render: RenderConfig{
			FrameInterval:    16 * time.Millisecond,
			HandshakeTimeout: 2 * time.Second,
			RetireTimeout:    time.Second,
			LockOSThread:     true,
		},
		Display: DisplayConfig{
			WatchDir: "/run/goglass/displays",
			Pattern:  "*",
			Debounce: 50 * time.Millisecond,
		},
		Orientation: OrientationConfig{
			SampleInterval: 20 * time.Millisecond,
		},
	}
}

// ReadConfig decodes the YAML file at cfile on top of the defaults and
// validates the result.
func ReadConfig(cfile string) (Config, error) {
	conf := Default()

	f, err := os.Open(cfile)
	if err != nil {
		return conf, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&conf); err != nil {
		return conf, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}

	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("Logging.Level %q must be one of DEBUG, INFO, WARN, ERROR", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("Logging.Format %q must be text or json", c.Logging.Format))
	}

	if c.Render.FrameInterval <= 0 {
		errs = append(errs, errors.New("Render.FrameInterval must be positive"))
	}
	if c.Render.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("Render.HandshakeTimeout must be positive"))
	}
	if c.Render.RetireTimeout < 0 {
		errs = append(errs, errors.New("Render.RetireTimeout must not be negative"))
	}

	if !c.Simulation.Enabled && c.Display.WatchDir == "" {
		errs = append(errs, errors.New("Display.WatchDir is required unless the simulation is enabled"))
	}
	if c.Display.Pattern == "" {
		errs = append(errs, errors.New("Display.Pattern must not be empty"))
	}
	if c.Display.Debounce < 0 {
		errs = append(errs, errors.New("Display.Debounce must not be negative"))
	}

	if c.Orientation.SampleInterval <= 0 {
		errs = append(errs, errors.New("Orientation.SampleInterval must be positive"))
	}

	return errors.Join(errs...)
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
