package repository_test

import (
	"sync"
	"time"

	"judgeresult/internal/result/model"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
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

func submission(user, problem int64, at time.Time) model.Submission {
	return model.Submission{
		UserID:      user,
		Language:    "cpp",
		SubmittedAt: at,
		Scope:       model.StandaloneScope{ProblemID: problem},
	}
}

func terminal(id, user, problem int64, st model.Status) *model.SubmissionResult {
	return &model.SubmissionResult{
		ID:         id,
		Submission: submission(user, problem, epoch.Add(time.Duration(id)*time.Second)),
		Status:     st,
		UpdatedAt:  epoch,
	}
}

func ptr[T any](v T) *T { return &v }
