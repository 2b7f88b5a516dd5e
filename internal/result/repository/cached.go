package repository

import (
	"context"
	"strconv"
	"time"

	"judgeresult/internal/common/cache"
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/spec"
	pkgrepo "judgeresult/pkg/repository"
	"judgeresult/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	resultKeyPrefix = "result:"

	defaultResultCacheTTL = 10 * time.Minute
)

// CachedStore serves Get from the cache for terminal results and delegates everything else.
// A terminal result never changes, so only Complete has to invalidate.
type CachedStore struct {
	Store
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedStore wraps inner with cacheClient. A non-positive ttl uses the default.
func NewCachedStore(inner Store, cacheClient cache.Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = defaultResultCacheTTL
	}
	return &CachedStore{Store: inner, cache: cacheClient, ttl: ttl}
}

func (c *CachedStore) Get(ctx context.Context, id int64) (*model.SubmissionResult, error) {
	if c.cache == nil {
		return c.Store.Get(ctx, id)
	}
	// Pending results fail encodeRecord and are therefore never written.
	return cache.GetWithCached[*model.SubmissionResult](
		ctx,
		c.cache,
		resultKey(id),
		c.ttl,
		0,
		func(r *model.SubmissionResult) bool { return r == nil },
		encodeRecord,
		decodeRecord,
		func(ctx context.Context) (*model.SubmissionResult, error) {
			return c.Store.Get(ctx, id)
		},
	)
}

func (c *CachedStore) Complete(ctx context.Context, resultID int64, token string, outcome model.Outcome) (*model.SubmissionResult, error) {
	if c.cache == nil {
		return c.Store.Complete(ctx, resultID, token, outcome)
	}
	var done *model.SubmissionResult
	err := cache.UpdateCached(ctx, c.cache, resultKey(resultID), func(ctx context.Context) error {
		var err error
		done, err = c.Store.Complete(ctx, resultID, token, outcome)
		return err
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Query is delegated as is; listing relies on the store's own ordering.
func (c *CachedStore) Query(ctx context.Context, s spec.Spec, page pkgrepo.PageRequest) ([]*model.SubmissionResult, error) {
	results, err := c.Store.Query(ctx, s, page)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.warm(ctx, results)
	}
	return results, nil
}

// warm writes terminal results of a page so that follow-up Get calls hit the cache.
func (c *CachedStore) warm(ctx context.Context, results []*model.SubmissionResult) {
	for _, r := range results {
		if !r.Status.Terminal() {
			continue
		}
		encoded, err := encodeRecord(r)
		if err != nil {
			continue
		}
		if err := c.cache.Set(ctx, resultKey(r.ID), encoded, cache.JitterTTL(c.ttl)); err != nil {
			logger.Debug(ctx, "warm result cache failed", zap.Int64("result_id", r.ID), zap.Error(err))
			return
		}
	}
}

func resultKey(id int64) string {
	return resultKeyPrefix + strconv.FormatInt(id, 10)
}
