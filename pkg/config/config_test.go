package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeFs "github.com/marmos91/dittoweb/pkg/store/fs"
	storeMemory "github.com/marmos91/dittoweb/pkg/store/memory"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("DefaultsWithoutFile", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
		require.NoError(t, err)

		assert.Equal(t, "INFO", cfg.Logging.Level)
		assert.Equal(t, "filesystem", cfg.Storage.Type)
		assert.Equal(t, "resources", cfg.Storage.Filesystem["path"])
	})

	t.Run("ReadsValuesFromFile", func(t *testing.T) {
		path := writeConfigFile(t, `
logging:
  level: debug
server:
  port: 9090
  workers: 4
  queue_size: 16
  idle_timeout: 10s
storage:
  type: memory
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to upper case")
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 4, cfg.Server.Workers)
		assert.Equal(t, 16, cfg.Server.QueueSize)
		assert.Equal(t, 10*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, "memory", cfg.Storage.Type)
	})

	t.Run("RejectsUnknownStorageType", func(t *testing.T) {
		path := writeConfigFile(t, `
storage:
  type: carrier-pigeon
`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("RejectsUnknownLogLevel", func(t *testing.T) {
		path := writeConfigFile(t, `
logging:
  level: verbose
`)

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("RejectsQueueSmallerThanPool", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  workers: 10
  queue_size: 2
`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "queue_size")
	})

	t.Run("RejectsBurstWithoutRate", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  accept_burst: 5
`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "accept_burst")
	})

	t.Run("MalformedYAMLIsAnError", func(t *testing.T) {
		path := writeConfigFile(t, "storage: [not: valid: yaml")

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestDumpYAML(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	out, err := cfg.DumpYAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "level: INFO")
	assert.Contains(t, string(out), "type: filesystem")
}

func TestCreateResourceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Filesystem", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "webroot")
		s, err := CreateResourceStore(ctx, &StorageConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": base},
		})
		require.NoError(t, err)

		fsStore, ok := s.(*storeFs.FSResourceStore)
		require.True(t, ok)
		assert.Equal(t, base, fsStore.BasePath())
	})

	t.Run("FilesystemRequiresPath", func(t *testing.T) {
		_, err := CreateResourceStore(ctx, &StorageConfig{Type: "filesystem"})
		assert.Error(t, err)
	})

	t.Run("Memory", func(t *testing.T) {
		s, err := CreateResourceStore(ctx, &StorageConfig{Type: "memory"})
		require.NoError(t, err)

		_, ok := s.(*storeMemory.MemoryResourceStore)
		assert.True(t, ok)
	})

	t.Run("BadgerInMemory", func(t *testing.T) {
		s, err := CreateResourceStore(ctx, &StorageConfig{
			Type:   "badger",
			Badger: map[string]any{"in_memory": true},
		})
		require.NoError(t, err)

		require.NoError(t, s.WriteUpload(ctx, "a", []byte("x")))
		data, err := s.ReadResource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), data)

		closer, ok := s.(interface{ Close() error })
		require.True(t, ok)
		assert.NoError(t, closer.Close())
	})

	t.Run("BadgerRequiresPathOrInMemory", func(t *testing.T) {
		_, err := CreateResourceStore(ctx, &StorageConfig{Type: "badger"})
		assert.Error(t, err)
	})

	t.Run("S3RequiresBucketAndRegion", func(t *testing.T) {
		_, err := CreateResourceStore(ctx, &StorageConfig{
			Type: "s3",
			S3:   map[string]any{"region": "eu-west-1"},
		})
		assert.Error(t, err)

		_, err = CreateResourceStore(ctx, &StorageConfig{
			Type: "s3",
			S3:   map[string]any{"bucket": "b"},
		})
		assert.Error(t, err)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := CreateResourceStore(ctx, &StorageConfig{Type: "redis"})
		assert.Error(t, err)
	})
}
