package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type memoryEntry struct {
	value    json.RawMessage
	storedAt time.Time
}

type memoryKeyStore struct {
	cache   *ttlcache.Cache[string, memoryEntry]
	nowFunc func() time.Time
}

// NewMemoryKeyStore returns a process local KeyStore. Entries never expire.
func NewMemoryKeyStore(nowFunc func() time.Time) *memoryKeyStore {
	cache := ttlcache.New[string, memoryEntry](
		ttlcache.WithTTL[string, memoryEntry](ttlcache.NoTTL),
		ttlcache.WithDisableTouchOnHit[string, memoryEntry](),
	)
	return &memoryKeyStore{
		cache:   cache,
		nowFunc: nowFunc,
	}
}

func (m *memoryKeyStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	item := m.cache.Get(key)
	if item == nil {
		return Entry{}, false, nil
	}

	entry := item.Value()
	return Entry{
		Key:      key,
		Value:    entry.value,
		StoredAt: entry.storedAt,
	}, true, nil
}

func (m *memoryKeyStore) Put(ctx context.Context, key string, value json.RawMessage) error {
	// NOTE: Copy so callers can't mutate the stored value
	stored := make(json.RawMessage, len(value))
	copy(stored, value)

	m.cache.Set(key, memoryEntry{value: stored, storedAt: m.nowFunc()}, ttlcache.NoTTL)
	return nil
}

func (m *memoryKeyStore) Invalidate(ctx context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *memoryKeyStore) InvalidatePrefix(ctx context.Context, prefix string) error {
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}
	return nil
}
