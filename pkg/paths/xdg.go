// Package paths provides XDG-compliant path resolution for tabd.
//
// Resolution order:
// 1. TABD_HOME (portable root) → $TABD_HOME/{config,state,run}
// 2. XDG env vars → $XDG_*_HOME/tabd
// 3. Platform defaults → ~/.config/tabd, ~/.local/state/tabd
package paths

import (
	"os"
	"path/filepath"
)

const appName = "tabd"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("TABD_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("TABD_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the tabd configuration directory.
// Used for the global tabd.yml / tabd.toml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	if os.Getenv("TABD_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// StateDir returns the tabd state directory.
// Used for the pid file and logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	if os.Getenv("TABD_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory for daemon and tab log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// RuntimeDir returns the tabd runtime directory for the daemon socket.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if home := os.Getenv("TABD_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the browser daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "tabd.sock")
}

// PidFilePath returns the path to the browser daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "tabd.pid")
}

// EnsureDirs creates all tabd directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		LogDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
