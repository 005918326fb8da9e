// Package artifacts holds generated certificates between the end of a run
// and their download.
//
// Two backends exist: an in-process MemoryStore, used by default and by
// the CLI, and a RedisStore for deployments that run several server
// replicas behind a load balancer. Either can be wrapped with Sealed so
// documents are encrypted at rest.
package artifacts

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned for keys that were never stored or have expired.
var ErrNotFound = errors.New("artifact not found")

// DefaultTTL bounds how long a generated document stays downloadable.
const DefaultTTL = time.Hour

// Store keeps opaque blobs by key with an expiry.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Sweeper is implemented by stores that need periodic expiry passes.
type Sweeper interface {
	Sweep() int
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is a Store backed by a map. Expired entries are removed on
// access and by Sweep.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: buf, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	return e.data, nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error { return nil }
