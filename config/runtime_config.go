package config

// RuntimeConfig is the part of the configuration that may be changed
// while the application runs. Display and simulation settings are
// bound at start-up and are not exposed.
type RuntimeConfig struct {
	Logging LoggingConfig `yaml:"Logging" json:"Logging"`
	Render  RenderConfig  `yaml:"Render" json:"Render"`
}

func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{
		Logging: c.Logging,
		Render:  c.Render,
	}
}

func (c *Config) ApplyRuntime(rc RuntimeConfig) {
	c.Logging = rc.Logging
	c.Render = rc.Render
}
