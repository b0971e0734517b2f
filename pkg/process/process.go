package process

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// IsProcessAlive checks if a process with the given PID is still running.
// Zombie processes count as dead so a crashed daemon does not block a restart.
func IsProcessAlive(pid int) bool {
	// PID 0 or less is invalid.
	if pid <= 0 {
		return false
	}

	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		// Exists but not inspectable (e.g. owned by root): treat as alive.
		return true
	}
	statuses, err := p.Status()
	if err != nil {
		return true
	}
	for _, s := range statuses {
		if s == process.Zombie {
			return false
		}
	}
	return true
}

// Self returns the PID of the running process.
func Self() int {
	return os.Getpid()
}
