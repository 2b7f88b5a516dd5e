// Package repository persists submission results and implements the claim protocol of the grading queue.
package repository

import (
	"context"
	"errors"
	"time"

	"judgeresult/internal/common/db"
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/spec"
	appErr "judgeresult/pkg/errors"
	pkgrepo "judgeresult/pkg/repository"
)

// ResultStore is the read and create side of result persistence.
// Query orders by id descending so pages never overlap.
type ResultStore interface {
	Create(ctx context.Context, submission model.Submission) (*model.SubmissionResult, error)
	Get(ctx context.Context, id int64) (*model.SubmissionResult, error)
	Query(ctx context.Context, s spec.Spec, page pkgrepo.PageRequest) ([]*model.SubmissionResult, error)
	Count(ctx context.Context, s spec.Spec) (int64, error)
	// SolvedProblems returns, in ascending order, the distinct problems of accepted results matching s.
	SolvedProblems(ctx context.Context, s spec.Spec) ([]int64, error)
}

// QueueStore holds the atomic primitives behind the grading queue.
type QueueStore interface {
	// ClaimNextPending atomically takes the oldest claimable pending result,
	// ordered by submission time then id, and leases it to owner.
	// It returns nil, nil when nothing is claimable.
	ClaimNextPending(ctx context.Context, owner string, lease time.Duration) (*model.Claim, error)
	// RenewLease extends the lease of a claim whose token is still current.
	RenewLease(ctx context.Context, resultID int64, token string, lease time.Duration) (time.Time, error)
	// Complete moves a claimed result to a terminal status if token is still current.
	Complete(ctx context.Context, resultID int64, token string, outcome model.Outcome) (*model.SubmissionResult, error)
}

// Store is a full result store.
type Store interface {
	ResultStore
	QueueStore
}

// Clock returns the current time. Stores take one so lease expiry can be tested.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func notFound(id int64) error {
	return appErr.Newf(appErr.ResultNotFound, "submission result %d not found", id).WithDetail("result_id", id)
}

func leaseLost(id int64) error {
	return appErr.Newf(appErr.LeaseLost, "lease on submission result %d is no longer held", id).WithDetail("result_id", id)
}

// storeError converts a driver error into the error taxonomy of the result store.
func storeError(err error, op string) error {
	if err == nil {
		return nil
	}
	var coded *appErr.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErr.Wrapf(err, appErr.Timeout, "%s: %v", op, err)
	case db.IsTransient(err), pkgrepo.IsConnectionError(err):
		return appErr.Wrapf(err, appErr.ResultStoreUnavailable, "%s: result store unavailable: %v", op, err)
	default:
		return appErr.Wrapf(err, appErr.DatabaseError, "%s: %v", op, err)
	}
}

func validateQuery(s spec.Spec, page *pkgrepo.PageRequest) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := page.Validate(); err != nil {
		return appErr.Wrapf(err, appErr.InvalidParams, "%v", err)
	}
	return nil
}
