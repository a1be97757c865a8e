package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedStore serves GetConnection and GetTables from an in-process cache
// and invalidates on every write that touches a connection.
//
// Each entry records the connection's generation at read time. Writers bump
// the generation before deleting the key, so a Set that lands after the
// delete (ristretto buffers writes) is recognised as stale and ignored.
type CachedStore struct {
	Store

	cache *ristretto.Cache[string, cacheEntry]
	ttl   time.Duration

	mu   sync.Mutex
	gens map[int64]uint64
}

type cacheEntry struct {
	gen    uint64
	conn   *Connection
	tables []*Table
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps next. maxEntries bounds the number of cached
// connections plus table sets; ttl of 0 means entries never expire.
func NewCachedStore(next Store, maxEntries int64, ttl time.Duration) (*CachedStore, error) {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, cacheEntry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	return &CachedStore{
		Store: next,
		cache: cache,
		ttl:   ttl,
		gens:  make(map[int64]uint64),
	}, nil
}

func connKey(id int64) string   { return fmt.Sprintf("conn:%d", id) }
func tablesKey(id int64) string { return fmt.Sprintf("tables:%d", id) }

func (s *CachedStore) generation(id int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[id]
}

func (s *CachedStore) invalidate(id int64) {
	s.mu.Lock()
	s.gens[id]++
	s.mu.Unlock()
	s.cache.Del(connKey(id))
	s.cache.Del(tablesKey(id))
}

func (s *CachedStore) put(key string, e cacheEntry) {
	if s.ttl > 0 {
		s.cache.SetWithTTL(key, e, 1, s.ttl)
	} else {
		s.cache.Set(key, e, 1)
	}
}

func (s *CachedStore) GetConnection(ctx context.Context, id int64) (*Connection, error) {
	gen := s.generation(id)
	if e, ok := s.cache.Get(connKey(id)); ok && e.gen == gen {
		return e.conn, nil
	}

	c, err := s.Store.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(connKey(id), cacheEntry{gen: gen, conn: c})
	return c, nil
}

func (s *CachedStore) GetTables(ctx context.Context, connID int64) ([]*Table, error) {
	gen := s.generation(connID)
	if e, ok := s.cache.Get(tablesKey(connID)); ok && e.gen == gen {
		return e.tables, nil
	}

	tables, err := s.Store.GetTables(ctx, connID)
	if err != nil {
		return nil, err
	}
	// An empty set is "not indexed yet"; caching it would hide the first
	// index pass until the entry expired.
	if len(tables) > 0 {
		s.put(tablesKey(connID), cacheEntry{gen: gen, tables: tables})
	}
	return tables, nil
}

func (s *CachedStore) DeleteConnection(ctx context.Context, id int64) error {
	defer s.invalidate(id)
	return s.Store.DeleteConnection(ctx, id)
}

func (s *CachedStore) ReplaceTables(ctx context.Context, connID int64, tables []TableSpec) error {
	defer s.invalidate(connID)
	return s.Store.ReplaceTables(ctx, connID, tables)
}

// Wait blocks until buffered cache writes are applied. Tests use it to make
// hits deterministic.
func (s *CachedStore) Wait() {
	s.cache.Wait()
}

func (s *CachedStore) Close() error {
	s.cache.Close()
	return s.Store.Close()
}
