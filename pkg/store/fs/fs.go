// Package fs implements a filesystem-backed resource store.
//
// Resources are plain files under a base directory; uploads land in an
// "uploads" subdirectory created at startup. This is the default backend and
// matches what a static web root looks like on disk.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittoweb/pkg/store"
)

// FSResourceStore serves resources from a local directory tree.
//
// Thread safety:
// Filesystem operations are safe at the OS level. Upload names are unique
// per request, so concurrent uploads never collide on the same file.
type FSResourceStore struct {
	basePath string
}

// NewFSResourceStore creates a filesystem resource store rooted at basePath.
//
// The base directory and its uploads subdirectory are created if missing
// (permissions 0755).
func NewFSResourceStore(ctx context.Context, basePath string) (*FSResourceStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(basePath, store.UploadsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create resource directories: %w", err)
	}

	return &FSResourceStore{basePath: basePath}, nil
}

// resolve maps a resource name to a path under the base directory, rejecting
// names that would escape it. The protocol layer already blocks ".." in
// request paths; this is the store's own containment check.
func (s *FSResourceStore) resolve(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("name %q escapes store root: %w", name, store.ErrInvalidName)
	}
	return filepath.Join(s.basePath, cleaned), nil
}

// ReadResource returns the content of the named file.
func (s *FSResourceStore) ReadResource(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("resource %s: %w", name, store.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("failed to read resource %s: %w", name, err)
	}

	return data, nil
}

// WriteUpload writes data to the named file (permissions 0644). Parent
// directories must already exist; the server only writes under UploadsDir.
func (s *FSResourceStore) WriteUpload(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write upload %s: %w", name, err)
	}

	return nil
}

// BasePath returns the directory this store serves from.
func (s *FSResourceStore) BasePath() string {
	return s.basePath
}
