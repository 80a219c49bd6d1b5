package wm

import (
	"errors"
	"fmt"

	"github.com/1broseidon/compwm/internal/plugin"
)

var (
	// ErrAlreadyActive is returned when pushing a plugin whose name is on the
	// stack.
	ErrAlreadyActive = errors.New("plugin already active")
	// ErrEmptyStack is returned when popping with no active plugin.
	ErrEmptyStack = errors.New("no active plugin")
	// ErrNotActive is returned for option or action calls on a plugin that is
	// not on the stack.
	ErrNotActive = errors.New("plugin not active")
	// ErrUnknownOption is returned when an option name does not exist in the
	// requested scope.
	ErrUnknownOption = errors.New("unknown option")
	// ErrNoScreen is returned when a screen scope names a missing screen.
	ErrNoScreen = errors.New("no such screen")
	// ErrWindowExists is returned when adding a window whose XID is already
	// managed.
	ErrWindowExists = errors.New("window already managed")
)

// DependencyError reports a violated ordering constraint.
type DependencyError struct {
	Plugin string
	Dep    plugin.Dep
}

func (e *DependencyError) Error() string {
	if e.Dep.Rule == plugin.Before {
		return fmt.Sprintf("plugin %s must be activated before %s, which is already active", e.Plugin, e.Dep.Plugin)
	}
	return fmt.Sprintf("plugin %s requires %s to be active", e.Plugin, e.Dep.Plugin)
}

// Stage is a step of cascading activation.
type Stage int

const (
	StageInit Stage = iota
	StageDisplay
	StageScreen
	StageWindow
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageDisplay:
		return "display"
	case StageScreen:
		return "screen"
	case StageWindow:
		return "window"
	default:
		return "unknown"
	}
}

// ActivationError reports a failed initialisation step. Everything the step's
// plugin had initialised has been finalised again by the time it is returned.
type ActivationError struct {
	Plugin string
	Stage  Stage
	Object string
	Err    error
}

func (e *ActivationError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("activate %s: %s %s: %v", e.Plugin, e.Stage, e.Object, e.Err)
	}
	return fmt.Sprintf("activate %s: %s: %v", e.Plugin, e.Stage, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// OrderError is returned when deactivating a plugin that is not on top of the
// stack.
type OrderError struct {
	Plugin string
	Top    string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("cannot deactivate %s: %s is above it and must be deactivated first", e.Plugin, e.Top)
}
