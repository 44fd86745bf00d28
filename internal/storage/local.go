package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Compile-time check that LocalStore implements TempStore.
var _ TempStore = (*LocalStore)(nil)

// LocalStore implements TempStore on local disk. Temporary artifacts live in
// a configurable directory and are removed by Cleanup once no job record
// references them.
type LocalStore struct {
	tempDir string
	logger  *slog.Logger
}

// NewLocalStore creates a LocalStore rooted at tempDir, creating the
// directory if needed. If tempDir is empty, a subdirectory of os.TempDir()
// is used.
func NewLocalStore(tempDir string, logger *slog.Logger) (*LocalStore, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "adgen")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStore{tempDir: tempDir, logger: logger}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStore) TempDir() string {
	return s.tempDir
}

// SaveTemp writes data to a new temporary file and returns its path. The
// name is used as a base for the filename with a unique suffix.
func (s *LocalStore) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := s.CreateTemp(name)
	if err != nil {
		return "", err
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// CreateTemp opens a new empty temporary file for incremental writing.
func (s *LocalStore) CreateTemp(name string) (*os.File, error) {
	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Cleanup removes the given files best-effort. Already-removed paths are
// ignored; any other failure is logged and swallowed.
func (s *LocalStore) Cleanup(_ context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove temp file",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
}
