package cache

import (
	"context"
	"encoding/base64"
	"net/url"
	"time"

	"github.com/vkarpovich/shopglance/internal/marketplace"
)

// Record is the unit stored per product name. A nil Offer is a first-class
// negative entry: the marketplace was asked and had no match, which is
// distinct from the record being absent.
type Record struct {
	StoredAt time.Time          `json:"storedAt"`
	Offer    *marketplace.Offer `json:"offer"`
}

// Store is the persistent key-value boundary. Implementations hold opaque
// records; freshness policy lives in the adapter, not here.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Set(ctx context.Context, key string, record Record) error
	Remove(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Key derives the cache key for a product name. The name is percent-encoded,
// base64'd and squashed to [A-Za-z0-9_] so any store accepts it, then scoped
// under the namespace prefix to keep clear of unrelated keys. Deterministic,
// not reversible.
func Key(prefix, name string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(url.QueryEscape(name)))
	safe := make([]byte, len(encoded))
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			safe[i] = c
		default:
			safe[i] = '_'
		}
	}
	return prefix + string(safe)
}
