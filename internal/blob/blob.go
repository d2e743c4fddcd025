// Package blob resolves architecture-diagram references to raw bytes.
// Resolution is tolerant: a missing or oversized blob yields nil data,
// never an error that would fail the surrounding job.
package blob

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes caps resolved blobs at 8 MiB, comfortably above any
// reasonable architecture diagram.
const DefaultMaxBytes = 8 << 20

// Resolver turns a diagram reference into bytes. Implementations return
// (nil, nil) when the reference cannot be honored; a non-nil error is
// reserved for infrastructure failures worth logging loudly.
type Resolver interface {
	Resolve(ctx context.Context, ref string) ([]byte, error)
}

// FileResolver reads diagram references from a root directory. References
// are relative paths; anything escaping the root resolves to nothing.
type FileResolver struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
}

var _ Resolver = (*FileResolver)(nil)

// NewFileResolver creates a resolver rooted at dir. A non-positive
// maxBytes selects DefaultMaxBytes.
func NewFileResolver(dir string, maxBytes int64, logger *slog.Logger) *FileResolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileResolver{
		root:     dir,
		maxBytes: maxBytes,
		logger:   logger.With("component", "blob"),
	}
}

// Resolve reads the referenced file. Missing files, traversal attempts,
// and oversized blobs all resolve to nil data.
func (r *FileResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, nil
	}

	cleaned := filepath.Clean(ref)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		r.logger.Warn("diagram reference escapes blob root, ignoring", "ref", ref)
		return nil, nil
	}

	path := filepath.Join(r.root, cleaned)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("diagram reference not found, continuing without it", "ref", ref)
			return nil, nil
		}
		return nil, err
	}

	if info.Size() > r.maxBytes {
		r.logger.Warn("diagram exceeds size cap, continuing without it",
			"ref", ref, "size", info.Size(), "max", r.maxBytes)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// NopResolver resolves every reference to nothing. It backs deployments
// that accept submissions without diagram storage.
type NopResolver struct{}

var _ Resolver = NopResolver{}

func (NopResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	return nil, nil
}
