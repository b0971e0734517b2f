package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/tabd/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	out     io.Writer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		out:     os.Stderr,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.out, "Configuration not found. Create tabd.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.out, "Invalid configuration: %v\n", err)
		fmt.Fprintf(h.out, "Run 'tabd config schema' to see the accepted settings.\n")

	case errors.ErrCodeTransportFailure:
		fmt.Fprintf(h.out, "Lost contact with the browser daemon.\n")
		fmt.Fprintf(h.out, "Check it with 'tabd daemon status'.\n")

	case errors.ErrCodeDegraded:
		fmt.Fprintf(h.out, "The browser daemon is degraded: %v\n", err)

	default:
		fmt.Fprintf(h.out, "Error: %v\n", err)
	}

	// If verbose mode, show full error details
	if h.Verbose {
		if tabErr, ok := err.(*errors.TabError); ok {
			fmt.Fprintf(h.out, "\nError details:\n%s\n", tabErr.ToJSON())
		}
	}
	return err
}
