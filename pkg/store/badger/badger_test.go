package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoweb/pkg/store"
)

func newTestStore(t *testing.T) *BadgerResourceStore {
	t.Helper()

	s, err := NewBadgerResourceStore(context.Background(), BadgerResourceStoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestBadgerResourceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("WriteThenRead", func(t *testing.T) {
		s := newTestStore(t)

		require.NoError(t, s.WriteUpload(ctx, "uploads/a.json", []byte(`{"k":1}`)))

		data, err := s.ReadResource(ctx, "uploads/a.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"k":1}`), data)
	})

	t.Run("MissingKeyIsNotFound", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.ReadResource(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrResourceNotFound)
	})

	t.Run("OverwriteReplacesValue", func(t *testing.T) {
		s := newTestStore(t)

		require.NoError(t, s.WriteUpload(ctx, "a", []byte("one")))
		require.NoError(t, s.WriteUpload(ctx, "a", []byte("two")))

		data, err := s.ReadResource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), data)
	})

	t.Run("RequiresDBPathWhenPersistent", func(t *testing.T) {
		_, err := NewBadgerResourceStore(ctx, BadgerResourceStoreConfig{})
		assert.Error(t, err)
	})
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := t.TempDir()

	s, err := NewBadgerResourceStore(ctx, BadgerResourceStoreConfig{DBPath: dbPath})
	require.NoError(t, err)
	require.NoError(t, s.WriteUpload(ctx, "uploads/keep.json", []byte("{}")))
	require.NoError(t, s.Close())

	s, err = NewBadgerResourceStore(ctx, BadgerResourceStoreConfig{DBPath: dbPath})
	require.NoError(t, err)
	defer s.Close()

	data, err := s.ReadResource(ctx, "uploads/keep.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), data)
}
