package render

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/grovetools/tabd/command"
	"github.com/grovetools/tabd/errors"
)

// CommandLoader renders documents by running an external text dumper,
// `<command> -dump <dir>/<name>.html`, the way w3m and lynx are driven.
type CommandLoader struct {
	*HTMLLoader
	command string
	builder *command.SafeBuilder
}

// NewCommandLoader creates a loader using the given dumper executable.
func NewCommandLoader(dir, executable string) *CommandLoader {
	return NewCommandLoaderWithBuilder(dir, executable, command.NewSafeBuilder())
}

// NewCommandLoaderWithBuilder creates a loader with a custom command builder.
func NewCommandLoaderWithBuilder(dir, executable string, builder *command.SafeBuilder) *CommandLoader {
	return &CommandLoader{
		HTMLLoader: NewHTMLLoader(dir),
		command:    executable,
		builder:    builder,
	}
}

// Render runs the dumper and returns its output.
func (l *CommandLoader) Render(ctx context.Context, name string) (string, error) {
	if !l.Exists(name) {
		notFound := errors.PageNotFound(name)
		if suggestion := l.Suggest(name); suggestion != "" {
			notFound = notFound.WithDetail("suggestion", suggestion)
		}
		return "", notFound
	}

	p, err := filepath.Abs(l.Path(name))
	if err != nil {
		return "", errors.RenderFailed(name, err)
	}
	if err := l.builder.Validate(command.FilePath, p); err != nil {
		return "", errors.RenderFailed(name, err)
	}

	cmd, err := l.builder.Build(ctx, l.command, "-dump", p)
	if err != nil {
		return "", errors.RenderFailed(name, err)
	}
	out, err := cmd.Output()
	if err != nil {
		return "", errors.RenderFailed(name, err)
	}
	return truncate(strings.TrimRight(string(out), "\n")+"\n", MaxTextLength), nil
}
