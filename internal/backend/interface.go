// Package backend selects and builds the persistence adapter the binaries
// run against.
package backend

import (
	"context"

	"casa/internal/store"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the backend instance and its lifecycle hooks.
type Result struct {
	Backend store.Backend
	// Ready reports whether the backend answers. Never nil.
	Ready func(ctx context.Context) error
	// Cleanup is never nil.
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Now stamps created/updated times. Nil means time.Now.
	Now store.Clock
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
