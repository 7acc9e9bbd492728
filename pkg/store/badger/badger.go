// Package badger implements a BadgerDB-backed resource store.
//
// Resources and uploads share one embedded key-value database, which gives
// uploads durability across restarts without an external dependency. Keys
// are the resource names prefixed with "res/" (see keyFor).
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittoweb/pkg/store"
)

// BadgerResourceStore persists resources in BadgerDB.
//
// Thread safety:
// BadgerDB transactions provide isolation; no additional locking is needed.
type BadgerResourceStore struct {
	db *badger.DB
}

// BadgerResourceStoreConfig configures the store.
type BadgerResourceStoreConfig struct {
	// DBPath is the directory holding the database files.
	// Ignored when InMemory is true.
	DBPath string

	// InMemory runs BadgerDB without disk persistence. Used in tests.
	InMemory bool
}

// keyPrefix namespaces resource entries so future key kinds (sessions,
// counters) can share the database without collisions.
const keyPrefix = "res/"

func keyFor(name string) []byte {
	return []byte(keyPrefix + name)
}

// NewBadgerResourceStore opens (or creates) the database and returns a store.
// The caller owns the store and must Close it.
func NewBadgerResourceStore(ctx context.Context, cfg BadgerResourceStoreConfig) (*BadgerResourceStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger resource store: db path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerResourceStore{db: db}, nil
}

// ReadResource returns the value stored under the resource key.
func (s *BadgerResourceStore) ReadResource(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFor(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("resource %s: %w", name, store.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("failed to read resource %s: %w", name, err)
	}

	return data, nil
}

// WriteUpload stores data under the resource key.
func (s *BadgerResourceStore) WriteUpload(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyFor(name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write upload %s: %w", name, err)
	}

	return nil
}

// Close releases the database. Must be called before process exit to flush
// pending writes.
func (s *BadgerResourceStore) Close() error {
	return s.db.Close()
}
