package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soyeahso/rewardbot/internal/metrics"
)

// Named wraps a Cache and records every lookup under a metrics label.
type Named struct {
	Cache
	name string
}

// NewNamed labels c for metrics.
func NewNamed(name string, c Cache) *Named {
	return &Named{Cache: c, name: name}
}

func (n *Named) Name() string { return n.name }

func (n *Named) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := n.Cache.Get(ctx, key)
	metrics.RecordCacheLookup(n.name, ok)
	return v, ok
}

// GetJSON decodes a cached JSON value. A value that fails to decode is
// treated as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var out T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// SetJSON encodes v and stores it. Values that cannot be encoded are skipped.
func SetJSON[T any](ctx context.Context, c Cache, key string, v T, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, raw, ttl)
}
