package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/interfaces"
)

// cacheKeyPrefix namespaces cache entries away from badgerhold records
const cacheKeyPrefix = "cache:"

// KVStorage implements the CacheStorage interface on raw Badger entries so
// TTLs are enforced by the store itself rather than application timers.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

// normalizeKey converts a key to lowercase for case-insensitive storage
func (s *KVStorage) normalizeKey(key string) []byte {
	return []byte(cacheKeyPrefix + strings.ToLower(strings.TrimSpace(key)))
}

// Get retrieves a value by key (case-insensitive). Expired entries surface as
// ErrKeyNotFound because badger drops them on read.
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(s.normalizeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return "", interfaces.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Set inserts or updates a key/value pair with no expiry
func (s *KVStorage) Set(ctx context.Context, key string, value string) error {
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Set(s.normalizeKey(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to set key/value: %w", err)
	}
	return nil
}

// SetWithTTL inserts or updates a key/value pair that badger expires after ttl
func (s *KVStorage) SetWithTTL(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry(s.normalizeKey(key), []byte(value)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key/value with ttl: %w", err)
	}
	return nil
}

// Delete removes a key/value pair. Deleting an absent key is not an error.
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(s.normalizeKey(key))
	})
	if err != nil && err != badgerdb.ErrKeyNotFound {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}
