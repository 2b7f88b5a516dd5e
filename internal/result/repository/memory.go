package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/spec"
	pkgrepo "judgeresult/pkg/repository"

	"github.com/google/uuid"
)

// MemoryStore keeps results in process. It is used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[int64]*model.SubmissionResult
	nextID  int64
	now     Clock
}

// NewMemoryStore creates an empty store. A nil clock uses the system clock.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = systemClock
	}
	return &MemoryStore{results: make(map[int64]*model.SubmissionResult), now: now}
}

// Create stores a new pending result and returns it.
func (m *MemoryStore) Create(ctx context.Context, submission model.Submission) (*model.SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "create result")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r := &model.SubmissionResult{
		ID:         m.nextID,
		Submission: submission,
		Status:     model.StatusPending,
		UpdatedAt:  m.now(),
	}
	r.Submission.SubmittedAt = r.Submission.SubmittedAt.UTC()
	m.results[r.ID] = r
	return r.Clone(), nil
}

// Put inserts or replaces a result as is. Tests use it to seed arbitrary states.
func (m *MemoryStore) Put(r *model.SubmissionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.ID] = r.Clone()
	if r.ID > m.nextID {
		m.nextID = r.ID
	}
}

func (m *MemoryStore) Get(ctx context.Context, id int64) (*model.SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "get result")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return nil, notFound(id)
	}
	return r.Clone(), nil
}

func (m *MemoryStore) Query(ctx context.Context, s spec.Spec, page pkgrepo.PageRequest) ([]*model.SubmissionResult, error) {
	if err := validateQuery(s, &page); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "query results")
	}
	m.mu.RLock()
	matched := m.matchLocked(s)
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *model.SubmissionResult) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	start := page.Offset()
	if start < 0 || start >= len(matched) {
		return []*model.SubmissionResult{}, nil
	}
	end := min(start+page.Limit(), len(matched))
	return matched[start:end], nil
}

func (m *MemoryStore) Count(ctx context.Context, s spec.Spec) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, storeError(err, "count results")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, r := range m.results {
		if s.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SolvedProblems(ctx context.Context, s spec.Spec) ([]int64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "solved problems")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int64]struct{})
	for _, r := range m.results {
		if r.Status == model.StatusAccepted && s.Matches(r) {
			seen[r.Submission.ProblemID()] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (m *MemoryStore) ClaimNextPending(ctx context.Context, owner string, lease time.Duration) (*model.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "claim pending result")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var next *model.SubmissionResult
	for _, r := range m.results {
		if !r.Claimable(now) {
			continue
		}
		if next == nil || olderThan(r, next) {
			next = r
		}
	}
	if next == nil {
		return nil, nil
	}

	attempts := 0
	if next.Claim != nil {
		attempts = next.Claim.Attempts
	}
	next.Claim = &model.ClaimInfo{
		Token:      uuid.NewString(),
		Owner:      owner,
		LeaseUntil: now.Add(lease),
		Attempts:   attempts + 1,
	}
	next.UpdatedAt = now
	return claimOf(next), nil
}

func (m *MemoryStore) RenewLease(ctx context.Context, resultID int64, token string, lease time.Duration) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, storeError(err, "renew lease")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[resultID]
	if !ok {
		return time.Time{}, notFound(resultID)
	}
	if !holdsClaim(r, token) {
		return time.Time{}, leaseLost(resultID)
	}
	now := m.now()
	r.Claim.LeaseUntil = now.Add(lease)
	r.UpdatedAt = now
	return r.Claim.LeaseUntil, nil
}

func (m *MemoryStore) Complete(ctx context.Context, resultID int64, token string, outcome model.Outcome) (*model.SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "complete result")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[resultID]
	if !ok {
		return nil, notFound(resultID)
	}
	if !holdsClaim(r, token) {
		return nil, leaseLost(resultID)
	}
	outcome.Apply(r, m.now())
	return r.Clone(), nil
}

func (m *MemoryStore) matchLocked(s spec.Spec) []*model.SubmissionResult {
	out := make([]*model.SubmissionResult, 0)
	for _, r := range m.results {
		if s.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func olderThan(a, b *model.SubmissionResult) bool {
	if !a.Submission.SubmittedAt.Equal(b.Submission.SubmittedAt) {
		return a.Submission.SubmittedAt.Before(b.Submission.SubmittedAt)
	}
	return a.ID < b.ID
}

func holdsClaim(r *model.SubmissionResult, token string) bool {
	return token != "" && r.Status == model.StatusPending && r.Claim != nil && r.Claim.Token == token
}

func claimOf(r *model.SubmissionResult) *model.Claim {
	return &model.Claim{
		ResultID:   r.ID,
		Token:      r.Claim.Token,
		Owner:      r.Claim.Owner,
		LeaseUntil: r.Claim.LeaseUntil,
		Attempt:    r.Claim.Attempts,
		Submission: r.Submission,
	}
}
