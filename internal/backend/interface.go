package backend

import (
	"context"

	"rkas/internal/amqp"
	"rkas/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the persistence and messaging endpoints of one process.
type BackendResult struct {
	// Cache is always present.
	Cache ports.KV
	// Remote is nil in local-only mode.
	Remote ports.Remote
	// Events is nil when change events are not configured or unreachable.
	Events *amqp.Client

	Cleanup CleanupFunc
}

// LocalOnly reports whether no remote store is in use.
func (r *BackendResult) LocalOnly() bool {
	return r.Remote == nil
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
