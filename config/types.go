package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config represents the tabd.yml (or tabd.toml) configuration.
type Config struct {
	Daemon DaemonConfig `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon" jsonschema:"description=Browser daemon settings"`
	Render RenderConfig `yaml:"render,omitempty" toml:"render,omitempty" json:"render" jsonschema:"description=Document loader settings"`
	Tab    TabConfig    `yaml:"tab,omitempty" toml:"tab,omitempty" json:"tab" jsonschema:"description=Tab process settings"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// DaemonConfig controls the browser daemon process.
type DaemonConfig struct {
	Socket              string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty" jsonschema:"description=Unix socket the daemon listens on"`
	PidFile             string `yaml:"pid_file,omitempty" toml:"pid_file,omitempty" json:"pid_file,omitempty" jsonschema:"description=PID file guarding against a second daemon"`
	SweepInterval       string `yaml:"sweep_interval,omitempty" toml:"sweep_interval,omitempty" json:"sweep_interval,omitempty" jsonschema:"description=How often the liveness sweeper runs (e.g. 5s),pattern=^[0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h)$"`
	InactivityThreshold string `yaml:"inactivity_threshold,omitempty" toml:"inactivity_threshold,omitempty" json:"inactivity_threshold,omitempty" jsonschema:"description=Idle time after which a tab slot is marked inactive (e.g. 30s),pattern=^[0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h)$"`
	DegradedAfter       string `yaml:"degraded_after,omitempty" toml:"degraded_after,omitempty" json:"degraded_after,omitempty" jsonschema:"description=Lock hold time after which the store reports degraded,pattern=^[0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h)$"`
	ReplyRetries        int    `yaml:"reply_retries,omitempty" toml:"reply_retries,omitempty" json:"reply_retries,omitempty" jsonschema:"description=Delivery attempts for a reply before it is dropped,minimum=0"`
}

// RenderConfig controls how documents are turned into text.
type RenderConfig struct {
	Dir     string `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty" jsonschema:"description=Directory holding <name>.html documents"`
	Engine  string `yaml:"engine,omitempty" toml:"engine,omitempty" json:"engine,omitempty" jsonschema:"description=Renderer to use,enum=html,enum=external"`
	Command string `yaml:"command,omitempty" toml:"command,omitempty" json:"command,omitempty" jsonschema:"description=External dump command used when engine is external (e.g. w3m)"`
}

// TabConfig controls tab processes.
type TabConfig struct {
	PollInterval string `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" json:"poll_interval,omitempty" jsonschema:"description=How often a synced tab polls for broadcasts,pattern=^[0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h)$"`
}

// Render engines
const (
	EngineHTML     = "html"
	EngineExternal = "external"
)

// SetDefaults fills in unset values.
func (c *Config) SetDefaults() {
	if c.Daemon.SweepInterval == "" {
		c.Daemon.SweepInterval = "5s"
	}
	if c.Daemon.InactivityThreshold == "" {
		c.Daemon.InactivityThreshold = "30s"
	}
	if c.Daemon.DegradedAfter == "" {
		c.Daemon.DegradedAfter = "10s"
	}
	if c.Daemon.ReplyRetries == 0 {
		c.Daemon.ReplyRetries = 5
	}
	if c.Render.Dir == "" {
		c.Render.Dir = "."
	}
	if c.Render.Engine == "" {
		c.Render.Engine = EngineHTML
	}
	if c.Render.Command == "" {
		c.Render.Command = "w3m"
	}
	if c.Tab.PollInterval == "" {
		c.Tab.PollInterval = "1s"
	}
}

// Sweep returns the sweeper period.
func (d DaemonConfig) Sweep() time.Duration {
	return durationOr(d.SweepInterval, 5*time.Second)
}

// Inactivity returns the staleness threshold.
func (d DaemonConfig) Inactivity() time.Duration {
	return durationOr(d.InactivityThreshold, 30*time.Second)
}

// Degraded returns the lock hold time that marks the store degraded.
func (d DaemonConfig) Degraded() time.Duration {
	return durationOr(d.DegradedAfter, 10*time.Second)
}

// Poll returns the tab broadcast polling period.
func (t TabConfig) Poll() time.Duration {
	return durationOr(t.PollInterval, time.Second)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded tabd.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
