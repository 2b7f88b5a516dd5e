package cache

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// NullCacheValue is a sentinel value to represent null/empty data in cache
// This prevents cache penetration by caching the absence of data
const NullCacheValue = "$NULL$"

// GetWithCached implements cache-aside pattern with null value caching
// It tries to get data from cache first, if cache miss, it calls the fetch function
// and stores the result in cache. Empty results are also cached to prevent cache penetration.
// Cache faults never fail the read; the source of truth is consulted instead.
//
// Example:
//
//	problem, err := GetWithCached(ctx, cache, "problem:123", time.Hour, time.Minute,
//		func(p *Problem) bool { return p == nil },
//		encodeProblem,
//		decodeProblem,
//		func(ctx context.Context) (*Problem, error) {
//			return db.GetProblem(ctx, 123)
//		})
func GetWithCached[T any](
	ctx context.Context,
	cache Cache,
	key string,
	ttl time.Duration,
	emptyTTL time.Duration,
	isEmpty func(T) bool,
	marshal func(T) (string, error),
	unmarshal func(string) (T, error),
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	if cached, err := cache.Get(ctx, key); err == nil && cached != "" {
		if cached == NullCacheValue {
			return zero, nil
		}
		if result, err := unmarshal(cached); err == nil {
			return result, nil
		}
	}

	data, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if isEmpty(data) {
		if emptyTTL > 0 {
			_ = cache.Set(ctx, key, NullCacheValue, emptyTTL)
		}
		return zero, nil
	}

	if encoded, err := marshal(data); err == nil {
		_ = cache.Set(ctx, key, encoded, JitterTTL(ttl))
	}
	return data, nil
}

// UpdateCached runs the write and then invalidates the cache key
//
// Example:
//
//	err := UpdateCached(ctx, cache, "result:123", func(ctx context.Context) error {
//		return store.Complete(ctx, claim, outcome)
//	})
func UpdateCached(
	ctx context.Context,
	cache Cache,
	key string,
	fn func(context.Context) error,
) error {
	if err := fn(ctx); err != nil {
		return err
	}
	_ = cache.Del(ctx, key)
	return nil
}

// JitterTTL shortens ttl by up to 10% so keys written together do not expire together.
func JitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	maxJitter := int64(ttl / 10)
	if maxJitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter+1))
	if err != nil {
		return ttl
	}
	return ttl - time.Duration(n.Int64())
}
