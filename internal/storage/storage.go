// Package storage provides local temporary-artifact storage for downloaded
// and merged media files, best-effort cleanup, and an optional object-storage
// publisher for final deliverables.
package storage

import (
	"context"
	"io"
	"os"
)

// TempStore is the temporary-artifact surface used by the job orchestrator.
// Every file it creates is owned by exactly one job record until handed to
// Cleanup.
type TempStore interface {
	// SaveTemp writes data to a new temporary file and returns its path.
	// The name parameter is used as a filename hint.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CreateTemp opens a new empty temporary file for incremental writing.
	// The caller owns the file and must close it.
	CreateTemp(name string) (*os.File, error)

	// Cleanup removes the given files. Deletion is best-effort: missing
	// paths are ignored and failures are logged, never returned, so cleanup
	// can never abort the caller's control flow.
	Cleanup(ctx context.Context, paths ...string)
}

// Publisher uploads a final artifact to durable storage and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
