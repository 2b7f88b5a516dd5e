package provider_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"judgeresult/internal/common/cache"
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/provider"
	pkgrepo "judgeresult/pkg/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingReader struct {
	pkgrepo.Reader[model.Problem]
	mu      sync.Mutex
	gets    int
	batches [][]int64
}

func (c *countingReader) GetByID(ctx context.Context, id int64) (*model.Problem, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Reader.GetByID(ctx, id)
}

func (c *countingReader) BatchGet(ctx context.Context, ids []int64) (map[int64]*model.Problem, error) {
	c.mu.Lock()
	c.batches = append(c.batches, append([]int64(nil), ids...))
	c.mu.Unlock()
	return c.Reader.BatchGet(ctx, ids)
}

type countingLabels struct {
	provider.LabelProvider
	calls int
}

func (c *countingLabels) Labels(ctx context.Context, keys []model.LabelKey) (map[model.LabelKey]string, error) {
	c.calls++
	return c.LabelProvider.Labels(ctx, keys)
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache failed: %v", err)
	}
	return mr, rc
}

func seededProblems() *countingReader {
	mem := provider.NewMemoryReader[model.Problem]()
	mem.Put(1, model.Problem{ID: 1, Name: "A+B", TimeLimitMs: 1000})
	mem.Put(2, model.Problem{ID: 2, Name: "Graph", TimeLimitMs: 2000})
	return &countingReader{Reader: mem}
}

func TestMemoryReader(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := provider.NewMemoryReader[model.User]()
	mem.Put(7, model.User{ID: 7, Name: "bob"})

	u, err := mem.GetByID(ctx, 7)
	if err != nil || u.Name != "bob" {
		t.Fatalf("unexpected user %+v %v", u, err)
	}
	if _, err := mem.GetByID(ctx, 8); !pkgrepo.IsNotFoundError(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	batch, err := mem.BatchGet(ctx, []int64{7, 8, 7})
	if err != nil {
		t.Fatalf("batch get failed: %v", err)
	}
	if len(batch) != 1 || batch[7] == nil {
		t.Fatalf("unexpected batch %v", batch)
	}
}

func TestCachedReaderGetByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, rc := newTestCache(t)
	inner := seededProblems()
	cached := provider.NewCachedProblemProvider(inner, rc, provider.CacheTTL{TTL: time.Minute, EmptyTTL: time.Second})

	for i := 0; i < 3; i++ {
		p, err := cached.GetByID(ctx, 1)
		if err != nil || p.Name != "A+B" {
			t.Fatalf("unexpected problem %+v %v", p, err)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("expected one inner read, got %d", inner.gets)
	}

	for i := 0; i < 2; i++ {
		if _, err := cached.GetByID(ctx, 99); !pkgrepo.IsNotFoundError(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if inner.gets != 2 {
		t.Fatalf("expected absent id to be cached, got %d inner reads", inner.gets)
	}
	if v, _ := mr.Get("result:problem:99"); v != cache.NullCacheValue {
		t.Fatalf("expected null marker, got %q", v)
	}
}

func TestCachedReaderBatchGetLoadsOnlyMisses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, rc := newTestCache(t)
	inner := seededProblems()
	cached := provider.NewCachedProblemProvider(inner, rc, provider.CacheTTL{})

	if _, err := cached.GetByID(ctx, 1); err != nil {
		t.Fatalf("warm failed: %v", err)
	}

	got, err := cached.BatchGet(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("batch get failed: %v", err)
	}
	if len(got) != 2 || got[1].Name != "A+B" || got[2].Name != "Graph" {
		t.Fatalf("unexpected batch %v", got)
	}
	if len(inner.batches) != 1 || len(inner.batches[0]) != 2 {
		t.Fatalf("expected one inner batch for the two misses, got %v", inner.batches)
	}

	again, err := cached.BatchGet(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("batch get failed: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("unexpected batch %v", again)
	}
	if len(inner.batches) != 1 {
		t.Fatalf("expected second batch served from cache, got %v", inner.batches)
	}
}

func TestCachedLabels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, rc := newTestCache(t)
	inner := &countingLabels{LabelProvider: provider.NewMemoryLabels(
		model.ContestTaskLabel{ContestID: 5, ContestProblemID: 1, Label: "A"},
		model.ContestTaskLabel{ContestID: 5, ContestProblemID: 2, Label: "B"},
	)}
	cached := provider.NewCachedLabels(inner, rc, provider.CacheTTL{})
	keys := []model.LabelKey{
		{ContestID: 5, ContestProblemID: 1},
		{ContestID: 5, ContestProblemID: 2},
		{ContestID: 5, ContestProblemID: 3},
	}

	for i := 0; i < 2; i++ {
		labels, err := cached.Labels(ctx, keys)
		if err != nil {
			t.Fatalf("labels failed: %v", err)
		}
		if len(labels) != 2 || labels[keys[0]] != "A" || labels[keys[1]] != "B" {
			t.Fatalf("unexpected labels %v", labels)
		}
		if _, ok := labels[keys[2]]; ok {
			t.Fatalf("missing label must be absent")
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one inner call, got %d", inner.calls)
	}
	if v, _ := mr.Get("result:label:5:1"); v != "A" {
		t.Fatalf("unexpected cached label %q", v)
	}
}
