package config

import (
	"fmt"
	"time"

	"github.com/grovetools/tabd/errors"
)

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	durations := []struct {
		field string
		value string
	}{
		{"daemon.sweep_interval", c.Daemon.SweepInterval},
		{"daemon.inactivity_threshold", c.Daemon.InactivityThreshold},
		{"daemon.degraded_after", c.Daemon.DegradedAfter},
		{"tab.poll_interval", c.Tab.PollInterval},
	}
	for _, d := range durations {
		if err := validateDuration(d.field, d.value); err != nil {
			return err
		}
	}

	if c.Daemon.Inactivity() < c.Daemon.Sweep() {
		return errors.ConfigInvalid("daemon.inactivity_threshold must not be shorter than daemon.sweep_interval").
			WithDetail("inactivity_threshold", c.Daemon.InactivityThreshold).
			WithDetail("sweep_interval", c.Daemon.SweepInterval)
	}

	if c.Daemon.ReplyRetries < 1 {
		return errors.ConfigInvalid("daemon.reply_retries must be at least 1").
			WithDetail("reply_retries", c.Daemon.ReplyRetries)
	}

	switch c.Render.Engine {
	case EngineHTML, EngineExternal:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown render engine '%s'", c.Render.Engine)).
			WithDetail("engine", c.Render.Engine)
	}

	if c.Render.Engine == EngineExternal && c.Render.Command == "" {
		return errors.ConfigInvalid("render.command cannot be empty when render.engine is external")
	}

	return nil
}

func validateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid duration for %s", field)).
			WithDetail("value", value)
	}
	if d <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be positive", field)).
			WithDetail("value", value)
	}
	return nil
}
