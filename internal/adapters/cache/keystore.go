package cache

import (
	"context"
	"encoding/json"
	"time"
)

type Entry struct {
	Key   string
	Value json.RawMessage
	// StoredAt is set by the store. Only used for diagnostics.
	StoredAt time.Time
}

// KeyStore is the persistence layer behind the SWR cache.
//
// Implementations hold entries until they are overwritten or invalidated. There is no
// expiry. InvalidatePrefix is byte-wise: "batch:c1" also matches "batch:c10".
type KeyStore interface {
	// Get returns false when the key was never stored or has been invalidated
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, value json.RawMessage) error
	Invalidate(ctx context.Context, key string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}
