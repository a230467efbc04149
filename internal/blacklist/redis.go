package blacklist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces blacklist entries in the shared store.
const keyPrefix = "jwt:blacklist:"

// RedisTier implements SharedTier backed by Redis. Entries are stored as JSON
// under jwt:blacklist:<jti> with a per-key TTL, so revocations self-expire
// alongside the tokens they shadow.
type RedisTier struct {
	client redis.UniversalClient
}

var _ SharedTier = (*RedisTier)(nil)

// NewRedisTier wraps an existing Redis client. The caller owns the client's
// lifecycle.
func NewRedisTier(client redis.UniversalClient) *RedisTier {
	return &RedisTier{client: client}
}

// Ping verifies connectivity; used at startup so a misconfigured shared tier
// surfaces immediately rather than on the first revocation.
func (t *RedisTier) Ping(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// Get returns the entry for jti, or (nil, nil) when absent.
func (t *RedisTier) Get(ctx context.Context, jti string) (*Entry, error) {
	payload, err := t.client.Get(ctx, keyPrefix+jti).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrCacheOperation, jti, err)
	}
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrSerialization, jti, err)
	}
	return &e, nil
}

// Set stores the entry under its jti with the given TTL.
func (t *RedisTier) Set(ctx context.Context, e *Entry, ttl time.Duration) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrSerialization, e.TokenID, err)
	}
	if err := t.client.Set(ctx, keyPrefix+e.TokenID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrCacheOperation, e.TokenID, err)
	}
	return nil
}
