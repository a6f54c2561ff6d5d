// Package cache holds short-lived byte payloads shared across concurrent
// export calls. Entries expire after a fixed TTL and are checked on read.
// Writers race with last-writer-wins semantics; any value can be rebuilt by
// fetching again, so a miss is always safe.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is the lifetime of an entry unless configured otherwise.
const DefaultTTL = time.Hour

// Cache is a key to bytes store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Close() error
}

// Memory is an in-process Cache.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemory creates an in-process cache and starts its expiry loop.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	items := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](ttl),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &Memory{items: items}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	item := m.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.items.Set(key, value, ttlcache.DefaultTTL)
}

// Len is the number of live entries.
func (m *Memory) Len() int {
	return m.items.Len()
}

func (m *Memory) Close() error {
	m.items.Stop()
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) Set(context.Context, string, []byte)        {}
func (Nop) Close() error                               { return nil }
