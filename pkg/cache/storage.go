package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrStoreDeleted is returned by Put on a handle whose store was deleted
	// after it was opened. The entry is not written.
	ErrStoreDeleted = errors.New("cache store deleted")
)

// Store is one named key to response mapping.
type Store interface {
	// Name returns the versioned store name
	Name() string

	// Match returns the entry stored for key, or ErrCacheMiss.
	Match(ctx context.Context, key Key) (*Entry, error)

	// Put stores entry under key, replacing any previous entry. A store
	// deleted since it was opened stays deleted and Put returns
	// ErrStoreDeleted.
	Put(ctx context.Context, key Key, entry *Entry) error

	// Delete removes the entry stored for key.
	Delete(ctx context.Context, key Key) error

	// Len returns the number of entries in the store.
	Len(ctx context.Context) (int, error)
}

// Storage is the set of named stores.
type Storage interface {
	// Open returns the named store, creating it on first open.
	Open(ctx context.Context, name string) (Store, error)

	// Names lists existing stores in creation order.
	Names(ctx context.Context) ([]string, error)

	// Has reports whether the named store exists.
	Has(ctx context.Context, name string) (bool, error)

	// Delete removes a store and all its entries.
	// It reports whether the store existed.
	Delete(ctx context.Context, name string) (bool, error)

	// Match searches every store in creation order and returns the first
	// entry stored for key, or ErrCacheMiss.
	Match(ctx context.Context, key Key) (*Entry, error)
}

// DeleteAll removes every store. Running it on an empty storage is a no-op.
func DeleteAll(ctx context.Context, storage Storage) (int, error) {
	names, err := storage.Names(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, name := range names {
		ok, err := storage.Delete(ctx, name)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}
