package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"judgeresult/internal/common/cache"
	"judgeresult/internal/result/model"
	pkgrepo "judgeresult/pkg/repository"
	"judgeresult/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	problemKeyPrefix = "result:problem:"
	userKeyPrefix    = "result:user:"
	labelKeyPrefix   = "result:label:"

	defaultEntityCacheTTL      = 30 * time.Minute
	defaultEntityCacheEmptyTTL = 5 * time.Minute
)

// CacheTTL configures a cache-aside decorator. Zero values use the defaults.
type CacheTTL struct {
	TTL      time.Duration
	EmptyTTL time.Duration
}

func (t CacheTTL) withDefaults() CacheTTL {
	if t.TTL <= 0 {
		t.TTL = defaultEntityCacheTTL
	}
	if t.EmptyTTL <= 0 {
		t.EmptyTTL = defaultEntityCacheEmptyTTL
	}
	return t
}

// CachedReader puts a Redis cache in front of a Reader. Absent ids are cached as null values.
type CachedReader[T any] struct {
	inner  pkgrepo.Reader[T]
	cache  cache.Cache
	prefix string
	ttl    CacheTTL
}

func NewCachedReader[T any](inner pkgrepo.Reader[T], cacheClient cache.Cache, prefix string, ttl CacheTTL) *CachedReader[T] {
	return &CachedReader[T]{inner: inner, cache: cacheClient, prefix: prefix, ttl: ttl.withDefaults()}
}

// NewCachedProblemProvider caches problems under result:problem:<id>.
func NewCachedProblemProvider(inner ProblemProvider, cacheClient cache.Cache, ttl CacheTTL) *CachedReader[model.Problem] {
	return NewCachedReader[model.Problem](inner, cacheClient, problemKeyPrefix, ttl)
}

// NewCachedUserProvider caches users under result:user:<id>.
func NewCachedUserProvider(inner UserProvider, cacheClient cache.Cache, ttl CacheTTL) *CachedReader[model.User] {
	return NewCachedReader[model.User](inner, cacheClient, userKeyPrefix, ttl)
}

func (c *CachedReader[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	v, err := cache.GetWithCached[*T](
		ctx,
		c.cache,
		c.key(id),
		c.ttl.TTL,
		c.ttl.EmptyTTL,
		func(v *T) bool { return v == nil },
		marshalJSON[T],
		unmarshalJSON[T],
		func(ctx context.Context) (*T, error) {
			v, err := c.inner.GetByID(ctx, id)
			if pkgrepo.IsNotFoundError(err) {
				return nil, nil
			}
			return v, err
		},
	)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, pkgrepo.ErrNotFound
	}
	return v, nil
}

// BatchGet reads every key with one MGet and loads only the misses from the inner reader.
func (c *CachedReader[T]) BatchGet(ctx context.Context, ids []int64) (map[int64]*T, error) {
	out := make(map[int64]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.cache.MGet(ctx, keys...)
	if err != nil || len(values) != len(ids) {
		logger.Warn(ctx, "entity cache read failed", zap.String("prefix", c.prefix), zap.Error(err))
		values = make([]string, len(ids))
	}

	missing := make([]int64, 0)
	for i, id := range ids {
		switch values[i] {
		case "":
			missing = append(missing, id)
		case cache.NullCacheValue:
		default:
			v, err := unmarshalJSON[T](values[i])
			if err != nil {
				missing = append(missing, id)
				continue
			}
			out[id] = v
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.inner.BatchGet(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		v, ok := loaded[id]
		if !ok {
			_ = c.cache.Set(ctx, c.key(id), cache.NullCacheValue, c.ttl.EmptyTTL)
			continue
		}
		out[id] = v
		if encoded, err := marshalJSON(v); err == nil {
			_ = c.cache.Set(ctx, c.key(id), encoded, cache.JitterTTL(c.ttl.TTL))
		}
	}
	return out, nil
}

func (c *CachedReader[T]) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

// CachedLabels puts a Redis cache in front of a LabelProvider.
type CachedLabels struct {
	inner LabelProvider
	cache cache.Cache
	ttl   CacheTTL
}

func NewCachedLabels(inner LabelProvider, cacheClient cache.Cache, ttl CacheTTL) *CachedLabels {
	return &CachedLabels{inner: inner, cache: cacheClient, ttl: ttl.withDefaults()}
}

func (c *CachedLabels) Labels(ctx context.Context, keys []model.LabelKey) (map[model.LabelKey]string, error) {
	out := make(map[model.LabelKey]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = labelKey(k)
	}
	values, err := c.cache.MGet(ctx, cacheKeys...)
	if err != nil || len(values) != len(keys) {
		logger.Warn(ctx, "label cache read failed", zap.Error(err))
		values = make([]string, len(keys))
	}

	missing := make([]model.LabelKey, 0)
	for i, k := range keys {
		switch values[i] {
		case "":
			missing = append(missing, k)
		case cache.NullCacheValue:
		default:
			out[k] = values[i]
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.inner.Labels(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, k := range missing {
		label, ok := loaded[k]
		if !ok {
			_ = c.cache.Set(ctx, labelKey(k), cache.NullCacheValue, c.ttl.EmptyTTL)
			continue
		}
		out[k] = label
		_ = c.cache.Set(ctx, labelKey(k), label, cache.JitterTTL(c.ttl.TTL))
	}
	return out, nil
}

func labelKey(k model.LabelKey) string {
	return fmt.Sprintf("%s%d:%d", labelKeyPrefix, k.ContestID, k.ContestProblemID)
}

func marshalJSON[T any](v *T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJSON[T any](data string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	return &v, nil
}
