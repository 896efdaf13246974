// Package storage provides temporary and persistent file storage for
// trimming sessions. It defines the Storage port and implementations for
// local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage is the port for session file handling. Implementations hold
// uploaded source media in temporary files while a session is live, and
// publish rendered output when the session completes.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Upload publishes rendered output under key and returns a URL or
	// path the result can be fetched from.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
