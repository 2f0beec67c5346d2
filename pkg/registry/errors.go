package registry

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrIncompatibleImage is matched by every *CompatibilityError.
	ErrIncompatibleImage = errors.New("incompatible registry image")
	// ErrStartupTimeout is matched by a *StartupError whose wait strategy ran
	// out of time.
	ErrStartupTimeout = errors.New("startup timed out")
	// ErrNotRunning is returned by accessors that need a running registry.
	ErrNotRunning = errors.New("registry is not running")
	// ErrInvalidState is returned when Start is called on a registry that has
	// already been started or stopped.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrTeardown wraps every error collected while stopping.
	ErrTeardown = errors.New("teardown failed")
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Err)
}

// Unwrap returns both ErrInvalidConfig and the underlying cause.
func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

// CompatibilityError reports a registry image outside the supported family.
type CompatibilityError struct {
	Image string
	Base  string
	Err   error
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("%s: %s is not compatible with %s", ErrIncompatibleImage, e.Image, e.Base)
}

// Unwrap returns both ErrIncompatibleImage and the underlying cause.
func (e *CompatibilityError) Unwrap() []error {
	return []error{ErrIncompatibleImage, e.Err}
}

// StartupError reports a failed Start. Phase names the step that failed:
// "storage", "pre-start delay", "registry" or "post-start delay".
type StartupError struct {
	Name  string
	Phase string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("failed to start %s (%s): %s", e.Name, e.Phase, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Is reports ErrStartupTimeout when the underlying wait hit its deadline.
func (e *StartupError) Is(target error) bool {
	return target == ErrStartupTimeout && errors.Is(e.Err, context.DeadlineExceeded)
}
