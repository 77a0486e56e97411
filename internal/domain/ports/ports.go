// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
)

// SearchService queries the remote search backend.
// Both methods must be safe to call concurrently.
type SearchService interface {
	// SearchVideos returns transcript segments matching the query.
	SearchVideos(ctx context.Context, query string) ([]entities.VideoHit, error)

	// SearchDocuments returns PDF pages matching the query.
	SearchDocuments(ctx context.Context, query string) ([]entities.DocHit, error)
}

// SessionObserver is notified with a fresh snapshot after every session mutation.
// Implementations must not call back into the session synchronously while holding locks of their own.
type SessionObserver interface {
	SessionChanged(snap entities.Snapshot)
}

// ObserverFunc adapts a plain function to SessionObserver.
type ObserverFunc func(snap entities.Snapshot)

// SessionChanged calls f(snap).
func (f ObserverFunc) SessionChanged(snap entities.Snapshot) { f(snap) }

// FileWatcher monitors a file for changes.
type FileWatcher interface {
	// Watch starts monitoring the file and emits events.
	Watch(ctx context.Context, path string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// BackendSwitcher is implemented by search adapters whose backend address can change at runtime.
type BackendSwitcher interface {
	SetBaseURL(baseURL string) error
	BaseURL() string
}
