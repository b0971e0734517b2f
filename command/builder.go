// Package command builds validated external commands, such as the text
// dumper used by the external render engine.
package command

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 10 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 2 * time.Minute
)

var (
	pageNameRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	executableRegex = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)
)

// ArgKind names a class of argument SafeBuilder.Validate can check.
type ArgKind string

const (
	PageName   ArgKind = "pageName"
	FilePath   ArgKind = "fileName"
	Executable ArgKind = "executable"
)

var validators = map[ArgKind]func(string) error{
	PageName:   validatePageName,
	FilePath:   validateFileName,
	Executable: validateExecutable,
}

// SafeBuilder builds commands whose program and arguments have been checked,
// each bounded by a timeout.
type SafeBuilder struct {
	defaultTimeout time.Duration
	executor       Executor
}

// NewSafeBuilder creates a builder that starts real processes.
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(OSExecutor{})
}

// NewSafeBuilderWithExecutor creates a builder with a custom Executor.
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		executor:       exec,
	}
}

// validatePageName ensures a document name maps onto a single file in the
// document directory.
func validatePageName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("page name cannot be empty")
	case len(name) > 255:
		return fmt.Errorf("page name too long: %s (max 255 characters)", name)
	case !pageNameRegex.MatchString(name):
		return fmt.Errorf("invalid page name: %s (letters, digits, '_' and '-' only)", name)
	}
	return nil
}

// validateFileName rejects traversal and shell metacharacters in a document path.
func validateFileName(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("file path cannot be empty")
	case strings.Contains(path, ".."):
		return fmt.Errorf("file path cannot contain '..'")
	case strings.ContainsAny(path, ";|&$`"):
		return fmt.Errorf("file path contains invalid characters")
	}
	return nil
}

// validateExecutable ensures a configured renderer is a bare program name or path.
func validateExecutable(name string) error {
	if name == "" {
		return fmt.Errorf("executable cannot be empty")
	}

	if !executableRegex.MatchString(name) {
		return fmt.Errorf("invalid executable: %s", name)
	}

	return nil
}

// Command is a validated program invocation with its own deadline.
type Command struct {
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build validates name and returns a command bounded by the default timeout.
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if err := validateExecutable(name); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, sb.defaultTimeout)

	return &Command{
		parent:   ctx,
		ctx:      timeoutCtx,
		cancel:   cancel,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout replaces the deadline, capped at MaxTimeout.
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithTimeout(c.parent, timeout)
	c.timeout = timeout
	return c
}

// Validate checks value against the rules for kind.
func (sb *SafeBuilder) Validate(kind ArgKind, value string) error {
	validator, ok := validators[kind]
	if !ok {
		return fmt.Errorf("no validator for argument type: %s", kind)
	}
	return validator(value)
}

// Exec creates and returns an exec.Cmd. The caller must call Release once the
// command has finished.
func (c *Command) Exec() *exec.Cmd {
	return c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec
}

// Output runs the command and returns its standard output.
func (c *Command) Output() ([]byte, error) {
	defer c.Release()
	return c.Exec().Output()
}

// Release frees the timeout context.
func (c *Command) Release() {
	if c.cancel != nil {
		c.cancel()
	}
}
