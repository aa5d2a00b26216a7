package snowfield

import "errors"

// Sentinel errors returned by the package. Wrap sites add context with
// fmt.Errorf("...: %w", err), so callers test with errors.Is.
var (
	// ErrInvalidConfig indicates a configuration value that cannot be
	// normalized into a usable tuning.
	ErrInvalidConfig = errors.New("snowfield: invalid config")

	// ErrSessionRunning is returned by Start on an already-started session.
	ErrSessionRunning = errors.New("snowfield: session already running")

	// ErrSessionStopped is returned by operations on a stopped session.
	ErrSessionStopped = errors.New("snowfield: session stopped")

	// ErrNoBackend indicates that no render backend could be initialized,
	// including the CPU fallback.
	ErrNoBackend = errors.New("snowfield: no usable render backend")
)
