package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/queue"
	"judgeresult/internal/result/repository"
	"judgeresult/internal/result/spec"
	appErr "judgeresult/pkg/errors"
)

func fastWorkerConfig() queue.WorkerConfig {
	return queue.WorkerConfig{
		Owner:         "worker-test",
		PollInterval:  time.Millisecond,
		RenewInterval: 5 * time.Millisecond,
		BackoffBase:   time.Millisecond,
		BackoffMax:    5 * time.Millisecond,
	}
}

func accept(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
	return model.Outcome{Status: model.StatusAccepted, TotalMilliseconds: ptr(10)}, nil
}

func TestWorkerRunOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repository.NewMemoryStore(nil)
	seed(store, 1)
	var graded *model.Claim
	w := queue.NewWorker(queue.New(store, nil, queue.Config{}), queue.GraderFunc(func(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
		graded = claim
		return accept(ctx, claim)
	}), fastWorkerConfig())

	claimed, err := w.RunOnce(ctx)
	if err != nil || !claimed {
		t.Fatalf("run once failed: %v %v", claimed, err)
	}
	if graded == nil || graded.Owner != "worker-test" || graded.Submission.Language != "go" {
		t.Fatalf("unexpected graded claim %+v", graded)
	}
	r, _ := store.Get(ctx, 1)
	if r.Status != model.StatusAccepted {
		t.Fatalf("unexpected status %s", r.Status)
	}

	claimed, err = w.RunOnce(ctx)
	if err != nil || claimed {
		t.Fatalf("expected empty queue, got %v %v", claimed, err)
	}
}

func TestWorkerGraderClaimIsStableWhileLeaseRenews(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repository.NewMemoryStore(nil)
	seed(store, 1)
	w := queue.NewWorker(queue.New(store, nil, queue.Config{}), queue.GraderFunc(func(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
		initial := claim.LeaseUntil
		deadline := time.Now().Add(40 * time.Millisecond)
		for time.Now().Before(deadline) {
			if !claim.LeaseUntil.Equal(initial) {
				return model.Outcome{}, errors.New("claim changed while grading")
			}
			time.Sleep(time.Millisecond)
		}
		leased, err := store.Get(ctx, claim.ResultID)
		if err != nil {
			return model.Outcome{}, err
		}
		if leased.Claim == nil || !leased.Claim.LeaseUntil.After(initial) {
			return model.Outcome{}, errors.New("lease was not renewed")
		}
		return accept(ctx, claim)
	}), fastWorkerConfig())

	claimed, err := w.RunOnce(ctx)
	if err != nil || !claimed {
		t.Fatalf("run once failed: %v %v", claimed, err)
	}
	r, _ := store.Get(ctx, 1)
	if r.Status != model.StatusAccepted {
		t.Fatalf("expected grading to finish, got %s", r.Status)
	}
}

func TestWorkerGraderErrorLeavesResultPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &scriptedStore{MemoryStore: repository.NewMemoryStore(nil)}
	seed(store.MemoryStore, 1)
	w := queue.NewWorker(queue.New(store, nil, queue.Config{}), queue.GraderFunc(func(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
		return model.Outcome{}, errors.New("judge unreachable")
	}), fastWorkerConfig())

	claimed, err := w.RunOnce(ctx)
	if err != nil || !claimed {
		t.Fatalf("grader errors are not worker errors: %v %v", claimed, err)
	}
	if store.calls() != 0 {
		t.Fatalf("failed grading must not complete the result")
	}
	r, _ := store.Get(ctx, 1)
	if r.Status != model.StatusPending || r.Claim == nil || r.Claim.Token == "" {
		t.Fatalf("expected result to stay leased and pending, got %+v", r)
	}
}

func TestWorkerStopsGradingWhenLeaseIsLost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &scriptedStore{MemoryStore: repository.NewMemoryStore(nil), renewErr: appErr.New(appErr.LeaseLost)}
	seed(store.MemoryStore, 1)
	w := queue.NewWorker(queue.New(store, nil, queue.Config{}), queue.GraderFunc(func(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
		select {
		case <-ctx.Done():
			return model.Outcome{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return model.Outcome{Status: model.StatusAccepted}, nil
		}
	}), fastWorkerConfig())

	start := time.Now()
	claimed, err := w.RunOnce(ctx)
	if err != nil || !claimed {
		t.Fatalf("run once failed: %v %v", claimed, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("grading was not cancelled after losing the lease")
	}
	if store.calls() != 0 {
		t.Fatalf("outcome must not be recorded without the lease")
	}
}

func TestWorkerRetriesTransientCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &scriptedStore{
		MemoryStore: repository.NewMemoryStore(nil),
		completeErrs: []error{
			appErr.New(appErr.ResultStoreUnavailable),
			appErr.New(appErr.ResultStoreUnavailable),
		},
	}
	seed(store.MemoryStore, 1)
	w := queue.NewWorker(queue.New(store, nil, queue.Config{}), queue.GraderFunc(accept), fastWorkerConfig())

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	if store.calls() != 3 {
		t.Fatalf("expected 3 complete calls, got %d", store.calls())
	}
	r, _ := store.Get(ctx, 1)
	if r.Status != model.StatusAccepted {
		t.Fatalf("unexpected status %s", r.Status)
	}
}

func TestWorkerGivesUpOnPermanentCompletionError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &scriptedStore{
		MemoryStore:  repository.NewMemoryStore(nil),
		completeErrs: []error{appErr.New(appErr.DatabaseError)},
	}
	seed(store.MemoryStore, 1)
	w := queue.NewWorker(queue.New(store, nil, queue.Config{}), queue.GraderFunc(accept), fastWorkerConfig())

	if _, err := w.RunOnce(ctx); !appErr.Is(err, appErr.DatabaseError) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
	if store.calls() != 1 {
		t.Fatalf("permanent errors must not be retried, got %d calls", store.calls())
	}
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	t.Parallel()
	store := repository.NewMemoryStore(nil)
	seed(store, 6)
	var graded atomic.Int32
	cfg := fastWorkerConfig()
	cfg.Concurrency = 3
	w := queue.NewWorker(queue.New(store, nil, queue.Config{}), queue.GraderFunc(func(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
		graded.Add(1)
		return accept(ctx, claim)
	}), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := store.Count(context.Background(), spec.WithStatus(model.StatusAccepted))
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n == 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker graded only %d of 6 results", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancellation")
	}
	if graded.Load() != 6 {
		t.Fatalf("expected each result graded once, got %d", graded.Load())
	}
}
