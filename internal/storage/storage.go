package storage

import (
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	// walSyncInterval is how often the background loop syncs the WAL.
	walSyncInterval = 200 * time.Millisecond
)

// KeyValue is one entry of an atomic batch write.
type KeyValue struct {
	Key   []byte // Key is the key to store
	Value []byte // Value is the value to store
}

// Storage is a key-value store backed by Pebble. Writes go in with NoSync
// and a background goroutine syncs the WAL periodically, so individual
// operations stay cheap while the store remains durable across restarts.
type Storage struct {
	db   *pebble.DB    // db is the underlying Pebble database
	done chan struct{} // done signals the WAL sync goroutine to stop
	wg   sync.WaitGroup
}

// New opens (or creates) a store at the given path and starts the WAL
// sync loop.
func New(path string) (*Storage, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20), // 32 MB cache
		MemTableSize:                16 << 20,                  // 16 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		db:   db,
		done: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.syncLoop()

	return s, nil
}

// Get returns the value stored under key, or nil if the key is absent.
// The returned slice is a copy and stays valid after further writes.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Has reports whether a key exists without copying its value. Marker keys
// (delegates, claims, condensers) only ever need this.
func (s *Storage) Has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	closer.Close()

	return true, nil
}

// Set stores a key-value pair. Durability is provided by the sync loop.
func (s *Storage) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.NoSync)
}

// Delete removes a key. Durability is provided by the sync loop.
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key, pebble.NoSync)
}

// SetBatch writes all pairs atomically: either every pair lands or none.
func (s *Storage) SetBatch(pairs []KeyValue) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, kv := range pairs {
		if err := batch.Set(kv.Key, kv.Value, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.NoSync)
}

// DeleteBatch removes all keys atomically.
func (s *Storage) DeleteBatch(keys [][]byte) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, key := range keys {
		if err := batch.Delete(key, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.NoSync)
}

// Iterate calls fn for every key-value pair in lexicographic key order.
// Iteration stops at the first error fn returns.
func (s *Storage) Iterate(fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// IteratePrefix calls fn for every key-value pair whose key starts with
// prefix, using iterator bounds so the scan touches only that range.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound returns the exclusive upper bound for a prefix scan:
// the prefix with its last byte incremented, or nil when the prefix is
// all 0xFF and the scan is unbounded above.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}

	return nil
}

// Sync forces a WAL sync to disk.
func (s *Storage) Sync() error {
	return s.db.LogData(nil, pebble.Sync)
}

// Close stops the sync loop, performs a final WAL sync, and closes the
// database.
func (s *Storage) Close() error {
	close(s.done)
	s.wg.Wait()

	if err := s.Sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// syncLoop periodically syncs the WAL until Close is called.
func (s *Storage) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(walSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.Sync()
		case <-s.done:
			return
		}
	}
}
