// Package queue hands pending results to grading workers under a lease and records their outcomes.
package queue

import (
	"context"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/repository"
	appErr "judgeresult/pkg/errors"
	"judgeresult/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultLeaseDuration = 60 * time.Second
	defaultMaxAttempts   = 3

	// maxPoisonPerClaim bounds how many exhausted results one claim call finalizes before giving up.
	maxPoisonPerClaim = 8
)

// Config controls leases and retry limits.
type Config struct {
	LeaseDuration time.Duration `yaml:"leaseDuration"`
	// MaxAttempts is how many claims a result may receive. Zero uses the default, negative disables the limit.
	MaxAttempts int `yaml:"maxAttempts"`
}

func (c Config) withDefaults() Config {
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = defaultLeaseDuration
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// Queue is the grading queue over a QueueStore.
type Queue struct {
	store     repository.QueueStore
	publisher repository.StatusEventPublisher
	cfg       Config
}

// New creates a queue. A nil publisher drops final-status events.
func New(store repository.QueueStore, publisher repository.StatusEventPublisher, cfg Config) *Queue {
	if publisher == nil {
		publisher = repository.NoopStatusEventPublisher{}
	}
	return &Queue{store: store, publisher: publisher, cfg: cfg.withDefaults()}
}

// LeaseDuration is the lease granted by each claim and renewal.
func (q *Queue) LeaseDuration() time.Duration {
	return q.cfg.LeaseDuration
}

// ClaimNextPending leases the oldest pending result to owner.
// It returns nil, nil when nothing is pending or another worker won every candidate.
func (q *Queue) ClaimNextPending(ctx context.Context, owner string) (*model.Claim, error) {
	if owner == "" {
		return nil, appErr.BadRequest("worker owner is required")
	}
	for i := 0; i < maxPoisonPerClaim; i++ {
		claim, err := q.store.ClaimNextPending(ctx, owner, q.cfg.LeaseDuration)
		if err != nil {
			if appErr.Is(err, appErr.ClaimConflict) {
				return nil, nil
			}
			return nil, err
		}
		if claim == nil {
			return nil, nil
		}
		if q.cfg.MaxAttempts < 0 || claim.Attempt <= q.cfg.MaxAttempts {
			logger.Info(ctx, "submission result claimed",
				zap.Int64("result_id", claim.ResultID),
				zap.String("owner", owner),
				zap.Int("attempt", claim.Attempt),
				zap.Time("lease_until", claim.LeaseUntil),
			)
			return claim, nil
		}
		if err := q.finalizePoison(ctx, claim); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// finalizePoison ends a result that exhausted its attempts as ServerError.
func (q *Queue) finalizePoison(ctx context.Context, claim *model.Claim) error {
	logger.Warn(ctx, "submission result exceeded max attempts",
		zap.Int64("result_id", claim.ResultID),
		zap.Int("attempt", claim.Attempt),
		zap.Int("max_attempts", q.cfg.MaxAttempts),
	)
	_, err := q.Complete(ctx, claim, model.Outcome{Status: model.StatusServerError})
	if appErr.Is(err, appErr.LeaseLost) {
		return nil
	}
	return err
}

// Renew extends the lease of claim and updates its LeaseUntil.
func (q *Queue) Renew(ctx context.Context, claim *model.Claim) error {
	if claim == nil || claim.Token == "" {
		return appErr.BadRequest("claim token is required")
	}
	until, err := q.store.RenewLease(ctx, claim.ResultID, claim.Token, q.cfg.LeaseDuration)
	if err != nil {
		return err
	}
	claim.LeaseUntil = until
	return nil
}

// Complete records outcome for claim. The final-status event is published best effort.
func (q *Queue) Complete(ctx context.Context, claim *model.Claim, outcome model.Outcome) (*model.SubmissionResult, error) {
	if claim == nil || claim.Token == "" {
		return nil, appErr.BadRequest("claim token is required")
	}
	if err := outcome.Validate(); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "invalid outcome: %v", err)
	}
	result, err := q.store.Complete(ctx, claim.ResultID, claim.Token, outcome)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "submission result completed",
		zap.Int64("result_id", result.ID),
		zap.String("status", result.Status.String()),
		zap.Int("attempt", claim.Attempt),
	)

	event := finalStatusEvent(result, claim.Attempt)
	if err := q.publisher.PublishFinalStatus(ctx, event); err != nil {
		logger.Warn(ctx, "publish final status failed", zap.Int64("result_id", result.ID), zap.Error(err))
	}
	return result, nil
}

func finalStatusEvent(r *model.SubmissionResult, attempt int) model.FinalStatusEvent {
	event := model.FinalStatusEvent{
		ResultID:   r.ID,
		UserID:     r.Submission.UserID,
		ProblemID:  r.Submission.ProblemID(),
		Status:     r.Status,
		Attempts:   attempt,
		FinishedAt: r.UpdatedAt,
	}
	if id, ok := r.Submission.ContestID(); ok {
		event.ContestID = &id
	}
	return event
}
