package queue_test

import (
	"context"
	"sync"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/repository"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeStatusPublisher struct {
	mu     sync.Mutex
	events []model.FinalStatusEvent
	err    error
}

func (f *fakeStatusPublisher) PublishFinalStatus(ctx context.Context, event model.FinalStatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeStatusPublisher) published() []model.FinalStatusEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.FinalStatusEvent(nil), f.events...)
}

// scriptedStore wraps a memory store and lets a test inject failures.
type scriptedStore struct {
	*repository.MemoryStore
	mu            sync.Mutex
	claimErr      error
	renewErr      error
	completeErrs  []error
	completeCalls int
}

func (s *scriptedStore) ClaimNextPending(ctx context.Context, owner string, lease time.Duration) (*model.Claim, error) {
	s.mu.Lock()
	err := s.claimErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.ClaimNextPending(ctx, owner, lease)
}

func (s *scriptedStore) RenewLease(ctx context.Context, resultID int64, token string, lease time.Duration) (time.Time, error) {
	s.mu.Lock()
	err := s.renewErr
	s.mu.Unlock()
	if err != nil {
		return time.Time{}, err
	}
	return s.MemoryStore.RenewLease(ctx, resultID, token, lease)
}

func (s *scriptedStore) Complete(ctx context.Context, resultID int64, token string, outcome model.Outcome) (*model.SubmissionResult, error) {
	s.mu.Lock()
	s.completeCalls++
	var err error
	if len(s.completeErrs) > 0 {
		err = s.completeErrs[0]
		s.completeErrs = s.completeErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.Complete(ctx, resultID, token, outcome)
}

func (s *scriptedStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeCalls
}

func seed(store *repository.MemoryStore, n int) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, _ = store.Create(ctx, model.Submission{
			UserID:      int64(i + 1),
			Language:    "go",
			SubmittedAt: epoch.Add(time.Duration(i) * time.Second),
			Scope:       model.StandaloneScope{ProblemID: 10},
		})
	}
}

func ptr[T any](v T) *T { return &v }
