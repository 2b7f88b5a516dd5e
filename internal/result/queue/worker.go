package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"judgeresult/internal/result/model"
	appErr "judgeresult/pkg/errors"
	"judgeresult/pkg/utils/contextkey"
	"judgeresult/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval    = time.Second
	defaultBackoffBase     = 200 * time.Millisecond
	defaultBackoffMax      = 30 * time.Second
	defaultCompleteRetries = 5
)

// Grader produces the outcome of a claimed submission.
// An error leaves the result pending; it is retried after the lease expires.
type Grader interface {
	Grade(ctx context.Context, claim *model.Claim) (model.Outcome, error)
}

// GraderFunc adapts a function to Grader.
type GraderFunc func(ctx context.Context, claim *model.Claim) (model.Outcome, error)

func (f GraderFunc) Grade(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
	return f(ctx, claim)
}

// WorkerConfig controls the claim loop.
type WorkerConfig struct {
	Owner       string `yaml:"owner"`
	Concurrency int    `yaml:"concurrency"`
	// PollInterval is the first idle delay when nothing is pending. It doubles up to BackoffMax.
	PollInterval time.Duration `yaml:"pollInterval"`
	// RenewInterval defaults to a third of the lease.
	RenewInterval   time.Duration `yaml:"renewInterval"`
	BackoffBase     time.Duration `yaml:"backoffBase"`
	BackoffMax      time.Duration `yaml:"backoffMax"`
	CompleteRetries int           `yaml:"completeRetries"`
}

func (c WorkerConfig) withDefaults(lease time.Duration) WorkerConfig {
	if c.Owner == "" {
		host, _ := os.Hostname()
		c.Owner = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RenewInterval <= 0 {
		c.RenewInterval = max(lease/3, time.Millisecond)
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = defaultBackoffMax
	}
	if c.CompleteRetries <= 0 {
		c.CompleteRetries = defaultCompleteRetries
	}
	return c
}

// Worker claims pending results, grades them and records the outcome.
type Worker struct {
	queue  *Queue
	grader Grader
	cfg    WorkerConfig
}

func NewWorker(q *Queue, grader Grader, cfg WorkerConfig) *Worker {
	return &Worker{queue: q, grader: grader, cfg: cfg.withDefaults(q.LeaseDuration())}
}

// Owner is the identity stamped on every claim this worker makes.
func (w *Worker) Owner() string {
	return w.cfg.Owner
}

// Run starts Concurrency claim loops and blocks until ctx is done.
// Store faults are retried with backoff and never stop the loops.
func (w *Worker) Run(ctx context.Context) error {
	ctx = context.WithValue(ctx, contextkey.WorkerID, w.cfg.Owner)
	logger.Info(ctx, "grading worker started", zap.String("owner", w.cfg.Owner), zap.Int("concurrency", w.cfg.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			return w.loop(gctx)
		})
	}
	err := g.Wait()
	logger.Info(ctx, "grading worker stopped", zap.String("owner", w.cfg.Owner))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	failures, idle := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, err := w.RunOnce(ctx)
		var delay time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay = ComputeBackoff(failures, w.cfg.BackoffBase, w.cfg.BackoffMax)
			failures++
			logger.Warn(ctx, "grading iteration failed", zap.Error(err), zap.Duration("backoff", delay))
		case !claimed:
			failures = 0
			delay = ComputeBackoff(idle, w.cfg.PollInterval, w.cfg.BackoffMax)
			idle++
		default:
			failures, idle = 0, 0
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// RunOnce claims and processes at most one result. It reports whether a result was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	claim, err := w.queue.ClaimNextPending(ctx, w.cfg.Owner)
	if err != nil {
		return false, err
	}
	if claim == nil {
		return false, nil
	}
	return true, w.process(ctx, claim)
}

func (w *Worker) process(ctx context.Context, claim *model.Claim) error {
	gradeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The grader gets its own copy; keepAlive updates claim.LeaseUntil.
	graded := *claim

	var (
		wg       sync.WaitGroup
		leaseErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.keepAlive(gradeCtx, claim); err != nil {
			leaseErr = err
			cancel()
		}
	}()

	outcome, gradeErr := w.grader.Grade(gradeCtx, &graded)
	cancel()
	wg.Wait()

	if leaseErr != nil {
		logger.Warn(ctx, "lease lost while grading", zap.Int64("result_id", claim.ResultID), zap.Error(leaseErr))
		return nil
	}
	if gradeErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error(ctx, "grading failed, result will be retried after lease expiry",
			zap.Int64("result_id", claim.ResultID), zap.Int("attempt", claim.Attempt), zap.Error(gradeErr))
		return nil
	}
	return w.complete(ctx, claim, outcome)
}

// keepAlive renews the lease until ctx is done. It returns an error only when the lease is gone.
func (w *Worker) keepAlive(ctx context.Context, claim *model.Claim) error {
	ticker := time.NewTicker(w.cfg.RenewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := w.queue.Renew(ctx, claim)
			if err == nil {
				continue
			}
			if appErr.Is(err, appErr.LeaseLost) || appErr.Is(err, appErr.ResultNotFound) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn(ctx, "lease renewal failed", zap.Int64("result_id", claim.ResultID), zap.Error(err))
		}
	}
}

func (w *Worker) complete(ctx context.Context, claim *model.Claim, outcome model.Outcome) error {
	for retry := 0; ; retry++ {
		_, err := w.queue.Complete(ctx, claim, outcome)
		if err == nil {
			return nil
		}
		if appErr.Is(err, appErr.LeaseLost) {
			logger.Warn(ctx, "outcome discarded, lease no longer held", zap.Int64("result_id", claim.ResultID))
			return nil
		}
		if !appErr.IsTransient(err) || retry >= w.cfg.CompleteRetries {
			return err
		}
		if err := sleep(ctx, ComputeBackoff(retry, w.cfg.BackoffBase, w.cfg.BackoffMax)); err != nil {
			return err
		}
	}
}
