package config

import (
	"testing"

	"github.com/grovetools/tabd/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.SetDefaults()
		return cfg
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"external engine", func(c *Config) { c.Render.Engine = EngineExternal }, true},
		{"external engine without command", func(c *Config) {
			c.Render.Engine = EngineExternal
			c.Render.Command = ""
		}, false},
		{"unknown engine", func(c *Config) { c.Render.Engine = "gecko" }, false},
		{"zero sweep", func(c *Config) { c.Daemon.SweepInterval = "0s" }, false},
		{"negative poll", func(c *Config) { c.Tab.PollInterval = "-1s" }, false},
		{"unparseable degraded", func(c *Config) { c.Daemon.DegradedAfter = "later" }, false},
		{"no retries", func(c *Config) { c.Daemon.ReplyRetries = -1 }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
			}
		})
	}
}
