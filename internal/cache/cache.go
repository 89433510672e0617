// Copyright 2025 Blockscout
//
// Package cache implements a durable TTL cache over cometbft-db. A
// stale entry is still returned alongside its staleness flag, so a
// caller can serve the stale value while triggering a refresh.
package cache

import (
	"encoding/binary"
	"fmt"
	"log"
	"time"

	dbm "github.com/cometbft/cometbft-db"
)

// Cache wraps a dbm.DB with a fixed TTL applied uniformly to every
// entry. Values are stored as an 8-byte big-endian Unix-nano write
// timestamp followed by the raw payload, so staleness can be checked
// without a second read.
type Cache struct {
	db     dbm.DB
	ttl    time.Duration
	logger *log.Logger
}

// Option configures a Cache at construction time.
type Option func(*Cache)

func WithLogger(logger *log.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// Open creates or opens a named cometbft-db database under dir using
// backend (dbm.GoLevelDBBackend in production, dbm.MemDBBackend in
// tests).
func Open(name string, backend dbm.BackendType, dir string, ttl time.Duration, opts ...Option) (*Cache, error) {
	db, err := dbm.NewDB(name, backend, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db %s: %w", name, err)
	}
	c := &Cache{db: db, ttl: ttl, logger: log.New(log.Writer(), "[Cache] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached value for key and whether an entry was found
// (hit). An expired entry is still returned, with hit=true and
// stale=true, so callers can serve it while a background refresh runs.
func (c *Cache) Get(key []byte) (value []byte, hit bool, stale bool, err error) {
	raw, err := c.db.Get(key)
	if err != nil {
		return nil, false, false, fmt.Errorf("cache get: %w", err)
	}
	if raw == nil || len(raw) < 8 {
		return nil, false, false, nil
	}
	writtenAt := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8])))
	value = raw[8:]
	if c.ttl > 0 && time.Since(writtenAt) > c.ttl {
		return value, true, true, nil
	}
	return value, true, false, nil
}

// Set durably writes value under key with the current time as its
// freshness stamp.
func (c *Cache) Set(key, value []byte) error {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano()))
	copy(buf[8:], value)
	if err := c.db.SetSync(key, buf); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes a cached entry.
func (c *Cache) Delete(key []byte) error {
	if err := c.db.DeleteSync(key); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
