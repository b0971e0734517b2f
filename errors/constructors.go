package errors

import (
	"fmt"
	"os/exec"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *TabError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *TabError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// PageNotFound creates a document not found error
func PageNotFound(name string) *TabError {
	return New(ErrCodeNotFound, fmt.Sprintf("page '%s' not found", name)).
		WithDetail("page", name)
}

// InvalidIndex creates an out of range bookmark reference error.
// index is 1-based, as typed by the user.
func InvalidIndex(index, count int) *TabError {
	return New(ErrCodeInvalidIndex, fmt.Sprintf("invalid bookmark number %d", index)).
		WithDetail("index", index).
		WithDetail("count", count)
}

// AlreadyInactive reports a bookmark that was already deleted.
func AlreadyInactive(index int) *TabError {
	return New(ErrCodeAlreadyInactive, fmt.Sprintf("bookmark %d is already deleted", index)).
		WithDetail("index", index)
}

// CapacityExceeded creates a capacity error for a bounded collection
func CapacityExceeded(what string, capacity int) *TabError {
	return New(ErrCodeCapacityExceeded, fmt.Sprintf("%s full (capacity %d)", what, capacity)).
		WithDetail("what", what).
		WithDetail("capacity", capacity)
}

// NotSynced reports a sync-only command from an unsynced tab
func NotSynced(tabID int) *TabError {
	return New(ErrCodeNotSynced, "tab must be synced").
		WithDetail("tab", tabID)
}

// NoCoordinationStore reports a command that needs the shared store when none is attached
func NoCoordinationStore(feature string) *TabError {
	return New(ErrCodeNoCoordinationStore, fmt.Sprintf("%s requires the coordination store", feature)).
		WithDetail("feature", feature)
}

// NoCurrentPage reports a command that needs a loaded page
func NoCurrentPage() *TabError {
	return New(ErrCodeNoCurrentPage, "no current page")
}

// NoHistory reports navigation past either end of the history
func NoHistory(direction string) *TabError {
	return New(ErrCodeNoHistory, fmt.Sprintf("no %s page in history", direction)).
		WithDetail("direction", direction)
}

// RenderFailed wraps a document rendering failure
func RenderFailed(name string, err error) *TabError {
	tabErr := Wrap(err, ErrCodeRenderError, fmt.Sprintf("failed to render '%s'", name)).
		WithDetail("page", name)

	if exitErr, ok := err.(*exec.ExitError); ok {
		tabErr = tabErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return tabErr
}

// TransportFailure reports a reply that could not be delivered
func TransportFailure(tabID int, attempts int) *TabError {
	return New(ErrCodeTransportFailure,
		fmt.Sprintf("reply to tab %d not delivered after %d attempts", tabID, attempts)).
		WithDetail("tab", tabID).
		WithDetail("attempts", attempts)
}

// Degraded reports a store lock held for longer than the allowed window
func Degraded(heldFor time.Duration) *TabError {
	return New(ErrCodeDegraded, fmt.Sprintf("store lock held for %s", heldFor.Round(time.Millisecond))).
		WithDetail("heldFor", heldFor.String())
}
