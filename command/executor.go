package command

import (
	"context"
	"os/exec"
)

// Executor creates the process for a built command. Tests swap in one that
// runs a stand-in binary instead of the configured dumper.
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// OSExecutor starts real processes.
type OSExecutor struct{}

// CommandContext wraps exec.CommandContext.
func (OSExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}
