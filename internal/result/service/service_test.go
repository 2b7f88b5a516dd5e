package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/provider"
	"judgeresult/internal/result/repository"
	"judgeresult/internal/result/service"
	"judgeresult/internal/result/spec"
	appErr "judgeresult/pkg/errors"
	pkgrepo "judgeresult/pkg/repository"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// gatedStore blocks SolvedProblems until release is closed.
type gatedStore struct {
	*repository.MemoryStore
	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	calls    int
	queryErr error
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: repository.NewMemoryStore(nil),
		entered:     make(chan struct{}, 16),
		release:     make(chan struct{}),
	}
}

func (g *gatedStore) SolvedProblems(ctx context.Context, s spec.Spec) ([]int64, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		g.mu.Lock()
		g.queryErr = err
		g.mu.Unlock()
		return nil, err
	}
	return g.MemoryStore.SolvedProblems(ctx, s)
}

func (g *gatedStore) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	store    *gatedStore
	problems *provider.MemoryReader[model.Problem]
	users    *provider.MemoryReader[model.User]
	labels   *provider.MemoryLabels
	svc      *service.ResultService
}

func newFixture() *fixture {
	f := &fixture{
		store:    newGatedStore(),
		problems: provider.NewMemoryReader[model.Problem](),
		users:    provider.NewMemoryReader[model.User](),
		labels:   provider.NewMemoryLabels(model.ContestTaskLabel{ContestID: 4, ContestProblemID: 2, Label: "B"}),
	}
	f.problems.Put(1, model.Problem{ID: 1, Name: "A+B", TimeLimitMs: 1000, MemoryLimitBytes: 64 << 20})
	f.problems.Put(2, model.Problem{ID: 2, Name: "Paths", TimeLimitMs: 2000, MemoryLimitBytes: 64 << 20})
	f.users.Put(10, model.User{ID: 10, Name: "alice"})
	f.users.Put(11, model.User{ID: 11, Name: "bob"})
	f.svc = service.New(service.Dependencies{
		Store:    f.store,
		Problems: f.problems,
		Users:    f.users,
		Labels:   f.labels,
	}, service.Config{AsyncConcurrency: 4, AsyncTimeout: 5 * time.Second})
	return f
}

func (f *fixture) put(id, user int64, scope model.Scope, st model.Status) *model.SubmissionResult {
	r := &model.SubmissionResult{
		ID:     id,
		Status: st,
		Submission: model.Submission{
			UserID:      user,
			Language:    "cpp",
			SubmittedAt: epoch.Add(time.Duration(id) * time.Minute),
			Scope:       scope,
		},
		CompileOutput:     ptr("boom"),
		PassedTests:       ptr(2),
		TotalMilliseconds: ptr(5000),
		TotalBytes:        ptr(int64(1 << 20)),
	}
	f.store.Put(r)
	return r
}

func TestGetViewRendersContestResult(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.put(1, 10, model.ContestScope{ContestID: 4, ContestProblemID: 2}, model.StatusCompilationError)

	view, err := f.svc.GetView(context.Background(), 1, model.Viewer{UserID: ptr(int64(10))})
	if err != nil {
		t.Fatalf("get view failed: %v", err)
	}
	if view.ProblemName != "Paths" || view.UserName != "alice" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Contest == nil || view.Contest.Label != "B" || view.Contest.ContestID != 4 {
		t.Fatalf("unexpected contest block %+v", view.Contest)
	}
	if view.CompileOutput == nil || *view.CompileOutput != "boom" {
		t.Fatalf("owner should see compile output")
	}
	if view.TotalMilliseconds != nil {
		t.Fatalf("compilation errors carry no totals")
	}
}

func TestGetViewErrors(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.put(1, 10, model.StandaloneScope{ProblemID: 99}, model.StatusAccepted)
	f.put(2, 77, model.StandaloneScope{ProblemID: 1}, model.StatusAccepted)
	f.put(3, 10, model.StandaloneScope{ProblemID: 1}, model.StatusCount)
	ctx := context.Background()

	if _, err := f.svc.GetView(ctx, 404, model.Anonymous()); !appErr.Is(err, appErr.ResultNotFound) {
		t.Fatalf("expected ResultNotFound, got %v", err)
	}
	if _, err := f.svc.GetView(ctx, 1, model.Anonymous()); !appErr.Is(err, appErr.MissingRequiredEntity) {
		t.Fatalf("expected MissingRequiredEntity for problem, got %v", err)
	}
	if _, err := f.svc.GetView(ctx, 2, model.Anonymous()); !appErr.Is(err, appErr.MissingRequiredEntity) {
		t.Fatalf("expected MissingRequiredEntity for owner, got %v", err)
	}
	if _, err := f.svc.GetView(ctx, 3, model.Anonymous()); !appErr.Is(err, appErr.InvalidStatus) {
		t.Fatalf("expected InvalidStatus, got %v", err)
	}
}

func TestListViews(t *testing.T) {
	t.Parallel()
	f := newFixture()
	for i := int64(1); i <= 5; i++ {
		f.put(i, 10, model.StandaloneScope{ProblemID: 1}, model.StatusWrongAnswer)
	}
	f.put(6, 10, model.ContestScope{ContestID: 4, ContestProblemID: 2}, model.StatusCompilationError)
	f.put(7, 11, model.StandaloneScope{ProblemID: 2}, model.StatusAccepted)

	page, err := f.svc.ListViews(context.Background(), spec.ByUser(10), pkgrepo.PageRequest{Page: 0, PageSize: 4}, model.Viewer{Privileged: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Total != 6 || len(page.Items) != 4 || page.PageSize != 4 || page.TotalPages() != 2 {
		t.Fatalf("unexpected page total=%d items=%d size=%d", page.Total, len(page.Items), page.PageSize)
	}
	first := page.Items[0]
	if first.ResultID != 6 {
		t.Fatalf("expected newest first, got %d", first.ResultID)
	}
	if first.CompileOutput != nil {
		t.Fatalf("lists never carry compile output")
	}
	if first.Contest == nil || first.Contest.Label != "B" {
		t.Fatalf("unexpected contest block %+v", first.Contest)
	}
	for _, v := range page.Items[1:] {
		if v.TotalMilliseconds == nil || *v.TotalMilliseconds != 1000 {
			t.Fatalf("expected totals clamped to the time limit, got %+v", v.TotalMilliseconds)
		}
	}

	last, err := f.svc.ListViews(context.Background(), spec.ByUser(10), pkgrepo.PageRequest{Page: 1, PageSize: 4}, model.Anonymous())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(last.Items) != 2 || last.Page != 1 {
		t.Fatalf("unexpected last page %+v", last)
	}
}

func TestListViewsFailsOnIntegrityError(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.put(1, 10, model.StandaloneScope{ProblemID: 1}, model.StatusAccepted)
	f.put(2, 10, model.StandaloneScope{ProblemID: 55}, model.StatusAccepted)

	_, err := f.svc.ListViews(context.Background(), spec.All(), pkgrepo.PageRequest{}, model.Anonymous())
	if !appErr.Is(err, appErr.MissingRequiredEntity) {
		t.Fatalf("expected MissingRequiredEntity, got %v", err)
	}
}

func TestListViewsRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.ListViews(ctx, spec.Present(spec.FieldStatus), pkgrepo.PageRequest{}, model.Anonymous()); !appErr.Is(err, appErr.InvalidPredicate) {
		t.Fatalf("expected InvalidPredicate, got %v", err)
	}
	if _, err := f.svc.ListViews(ctx, spec.All(), pkgrepo.PageRequest{Page: -1}, model.Anonymous()); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
}

func TestListViewsEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture()
	page, err := f.svc.ListViews(context.Background(), spec.All(), pkgrepo.PageRequest{}, model.Anonymous())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 || page.PageSize != pkgrepo.DefaultPageSize {
		t.Fatalf("unexpected empty page %+v", page)
	}
}

func TestSolvedProblemsAsyncSharesInflightQuery(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.put(1, 10, model.StandaloneScope{ProblemID: 2}, model.StatusAccepted)
	f.put(2, 10, model.StandaloneScope{ProblemID: 1}, model.StatusAccepted)
	f.put(3, 10, model.StandaloneScope{ProblemID: 1}, model.StatusWrongAnswer)
	ctx := context.Background()

	first := f.svc.SolvedProblemsAsync(ctx, spec.ByUser(10))
	<-f.store.entered
	second := f.svc.SolvedProblemsAsync(ctx, spec.ByUser(10))
	// Give the second call time to join the query in flight.
	time.Sleep(50 * time.Millisecond)
	close(f.store.release)

	for _, fut := range []*service.Future[[]int64]{first, second} {
		ids, err := fut.Await(ctx)
		if err != nil {
			t.Fatalf("await failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Fatalf("unexpected solved problems %v", ids)
		}
	}
	if n := f.store.callCount(); n != 1 {
		t.Fatalf("expected one shared store query, got %d", n)
	}
}

func TestSolvedProblemsAsyncCancelDoesNotAbortQuery(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.put(1, 10, model.StandaloneScope{ProblemID: 2}, model.StatusAccepted)

	ctx, cancel := context.WithCancel(context.Background())
	fut := f.svc.SolvedProblemsAsync(ctx, spec.ByUser(10))
	<-f.store.entered
	cancel()

	if _, err := fut.Await(context.Background()); !appErr.Is(err, appErr.Timeout) {
		t.Fatalf("expected Timeout after cancel, got %v", err)
	}
	close(f.store.release)

	// A later caller still gets an answer, proving the store was not poisoned by the cancel.
	again, err := f.svc.SolvedProblemsAsync(context.Background(), spec.ByUser(10)).Await(context.Background())
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if len(again) != 1 || again[0] != 2 {
		t.Fatalf("unexpected solved problems %v", again)
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.store.queryErr != nil {
		t.Fatalf("store query saw cancellation: %v", f.store.queryErr)
	}
}

func TestSolvedProblemsAsyncInvalidFilter(t *testing.T) {
	t.Parallel()
	f := newFixture()
	fut := f.svc.SolvedProblemsAsync(context.Background(), spec.Range(spec.FieldLanguage, "a", "b"))
	select {
	case <-fut.Done():
	default:
		t.Fatalf("invalid filter must fail immediately")
	}
	if _, err := fut.Await(context.Background()); !appErr.Is(err, appErr.InvalidPredicate) {
		t.Fatalf("expected InvalidPredicate, got %v", err)
	}
	if f.store.callCount() != 0 {
		t.Fatalf("invalid filter must not reach the store")
	}
}

func TestFutureAwaitTimesOut(t *testing.T) {
	t.Parallel()
	f := newFixture()
	fut := f.svc.SolvedProblemsAsync(context.Background(), spec.All())
	<-f.store.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := fut.Await(ctx); !appErr.Is(err, appErr.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	close(f.store.release)
	if _, err := fut.Await(context.Background()); err != nil {
		t.Fatalf("future should still complete: %v", err)
	}
}
