package external

import (
	"context"
	"encoding/json"
)

// Cache stores collaborator responses as JSON payloads. A miss or a broken
// entry is not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// cached returns the value stored under key, or calls fetch and stores its
// result. Errors are never cached.
func cached[T any](ctx context.Context, cache Cache, key string, fetch func() (T, error)) (T, error) {
	if cache != nil {
		if raw, ok := cache.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
		}
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}
	if cache != nil {
		if raw, err := json.Marshal(v); err == nil {
			cache.Set(ctx, key, raw)
		}
	}
	return v, nil
}
