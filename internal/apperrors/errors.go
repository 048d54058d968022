package apperrors

import "fmt"

// ErrNoBackendAvailable is returned when every registered cache backend
// reports itself unavailable, leaving evictions nowhere to go.
type ErrNoBackendAvailable struct{}

// Error implements the error interface.
func (e *ErrNoBackendAvailable) Error() string {
	return "no cache backend available"
}

// Is allows for error checking with errors.Is().
func (e *ErrNoBackendAvailable) Is(target error) bool {
	_, ok := target.(*ErrNoBackendAvailable)
	return ok
}

// NewNoBackendAvailableError creates a new ErrNoBackendAvailable.
func NewNoBackendAvailableError() *ErrNoBackendAvailable {
	return &ErrNoBackendAvailable{}
}

// ErrUnknownBackend is returned when a backend name from configuration has no
// registered factory.
type ErrUnknownBackend struct {
	Name       string
	Registered []string
}

// Error implements the error interface.
func (e *ErrUnknownBackend) Error() string {
	return fmt.Sprintf("unknown cache backend %q (registered: %v)", e.Name, e.Registered)
}

// Is allows for error checking with errors.Is().
func (e *ErrUnknownBackend) Is(target error) bool {
	_, ok := target.(*ErrUnknownBackend)
	return ok
}

// ErrDistributionFailed is returned when broadcasting an eviction batch to the
// cluster failed on every attempt.
type ErrDistributionFailed struct {
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *ErrDistributionFailed) Error() string {
	return fmt.Sprintf("eviction distribution failed after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap exposes the underlying distribution error.
func (e *ErrDistributionFailed) Unwrap() error {
	return e.Cause
}

// Is allows for error checking with errors.Is().
func (e *ErrDistributionFailed) Is(target error) bool {
	_, ok := target.(*ErrDistributionFailed)
	return ok
}

// ErrEvictionFailed wraps a backend failure for a single eviction entry.
type ErrEvictionFailed struct {
	Backend    string
	EntityType string
	EntityID   string
	Cause      error
}

// Error implements the error interface.
func (e *ErrEvictionFailed) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("evicting %s#%s on backend %q: %v", e.EntityType, e.EntityID, e.Backend, e.Cause)
	}
	return fmt.Sprintf("evicting all of %s on backend %q: %v", e.EntityType, e.Backend, e.Cause)
}

// Unwrap exposes the underlying backend error.
func (e *ErrEvictionFailed) Unwrap() error {
	return e.Cause
}

// Is allows for error checking with errors.Is().
func (e *ErrEvictionFailed) Is(target error) bool {
	_, ok := target.(*ErrEvictionFailed)
	return ok
}
