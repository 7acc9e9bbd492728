package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoweb/pkg/store"
)

func newTestStore(t *testing.T) *FSResourceStore {
	t.Helper()

	s, err := NewFSResourceStore(context.Background(), t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewFSResourceStore(t *testing.T) {
	base := filepath.Join(t.TempDir(), "webroot")

	s, err := NewFSResourceStore(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, base, s.BasePath())

	// Base and uploads directories are created up front.
	info, err := os.Stat(filepath.Join(base, store.UploadsDir))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFSReadResource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.BasePath(), "index.html"), []byte("<html></html>"), 0644))

	t.Run("ReadsExistingFile", func(t *testing.T) {
		data, err := s.ReadResource(ctx, "index.html")
		require.NoError(t, err)
		assert.Equal(t, []byte("<html></html>"), data)
	})

	t.Run("MissingFileIsNotFound", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "missing.html")
		assert.ErrorIs(t, err, store.ErrResourceNotFound)
	})

	t.Run("EscapingNameIsInvalid", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "../outside.html")
		assert.ErrorIs(t, err, store.ErrInvalidName)
	})

	t.Run("AbsoluteNameIsInvalid", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "/etc/passwd")
		assert.ErrorIs(t, err, store.ErrInvalidName)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.ReadResource(cancelled, "index.html")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFSWriteUpload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("WriteThenRead", func(t *testing.T) {
		name := store.UploadsDir + "/upload_20240315_103045_ab12.json"
		require.NoError(t, s.WriteUpload(ctx, name, []byte(`{"k": "v"}`)))

		data, err := s.ReadResource(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"k": "v"}`), data)
	})

	t.Run("EscapingNameIsInvalid", func(t *testing.T) {
		err := s.WriteUpload(ctx, "../evil.json", []byte("{}"))
		assert.ErrorIs(t, err, store.ErrInvalidName)
	})
}
