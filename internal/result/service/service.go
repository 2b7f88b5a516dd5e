// Package service combines the result store, the entity providers and the projector.
package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/projector"
	"judgeresult/internal/result/provider"
	"judgeresult/internal/result/repository"
	"judgeresult/internal/result/spec"
	appErr "judgeresult/pkg/errors"
	pkgrepo "judgeresult/pkg/repository"
	"judgeresult/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	defaultAsyncConcurrency = 16
	defaultAsyncTimeout     = 30 * time.Second
)

// Config tunes the asynchronous queries.
type Config struct {
	AsyncConcurrency int64         `yaml:"asyncConcurrency"`
	AsyncTimeout     time.Duration `yaml:"asyncTimeout"`
}

// Dependencies are the collaborators of ResultService. Labels may be nil.
type Dependencies struct {
	Store    repository.ResultStore
	Problems provider.ProblemProvider
	Users    provider.UserProvider
	Labels   provider.LabelProvider
}

// ResultService answers result queries and renders results for viewers.
type ResultService struct {
	store    repository.ResultStore
	problems provider.ProblemProvider
	users    provider.UserProvider
	labels   provider.LabelProvider

	asyncTimeout time.Duration
	sem          *semaphore.Weighted
	inflight     singleflight.Group
}

func New(deps Dependencies, cfg Config) *ResultService {
	if cfg.AsyncConcurrency <= 0 {
		cfg.AsyncConcurrency = defaultAsyncConcurrency
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = defaultAsyncTimeout
	}
	labels := deps.Labels
	if labels == nil {
		labels = provider.NewMemoryLabels()
	}
	return &ResultService{
		store:        deps.Store,
		problems:     deps.Problems,
		users:        deps.Users,
		labels:       labels,
		asyncTimeout: cfg.AsyncTimeout,
		sem:          semaphore.NewWeighted(cfg.AsyncConcurrency),
	}
}

// Get returns the stored result without rendering it.
func (s *ResultService) Get(ctx context.Context, id int64) (*model.SubmissionResult, error) {
	return s.store.Get(ctx, id)
}

// GetView renders one result with every block viewer may see.
func (s *ResultService) GetView(ctx context.Context, id int64, viewer model.Viewer) (*projector.View, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in := projector.Input{Result: r, Viewer: viewer}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := lookup(gctx, s.problems, r.Submission.ProblemID(), "problem")
		in.Problem = p
		return err
	})
	g.Go(func() error {
		u, err := lookup(gctx, s.users, r.Submission.UserID, "user")
		in.Owner = u
		return err
	})
	if key, ok := labelKeyOf(r); ok {
		g.Go(func() error {
			labels, err := s.labels.Labels(gctx, []model.LabelKey{key})
			in.Labels = labels
			return providerError(err, "labels")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view, err := projector.Project(in, projector.FieldsAll)
	if err != nil {
		logIntegrity(ctx, err, r.ID)
		return nil, err
	}
	return view, nil
}

// ListViews renders one page of results matching filter, newest first, along with the total match count.
// Compile output is never part of a list.
func (s *ResultService) ListViews(ctx context.Context, filter spec.Spec, page pkgrepo.PageRequest, viewer model.Viewer) (*pkgrepo.PaginationResult[projector.View], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "%v", err)
	}

	var (
		results []*model.SubmissionResult
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = s.store.Query(gctx, filter, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	problems, users, labels, err := s.loadRelated(ctx, results)
	if err != nil {
		return nil, err
	}

	views := make([]*projector.View, 0, len(results))
	for _, r := range results {
		view, err := projector.Project(projector.Input{
			Result:  r,
			Problem: problems[r.Submission.ProblemID()],
			Owner:   users[r.Submission.UserID],
			Viewer:  viewer,
			Labels:  labels,
		}, projector.FieldsList)
		if err != nil {
			logIntegrity(ctx, err, r.ID)
			return nil, err
		}
		views = append(views, view)
	}
	return &pkgrepo.PaginationResult[projector.View]{
		Items:    views,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func (s *ResultService) loadRelated(ctx context.Context, results []*model.SubmissionResult) (
	map[int64]*model.Problem, map[int64]*model.User, map[model.LabelKey]string, error,
) {
	problemIDs := make([]int64, 0, len(results))
	userIDs := make([]int64, 0, len(results))
	labelKeys := make([]model.LabelKey, 0)
	for _, r := range results {
		problemIDs = append(problemIDs, r.Submission.ProblemID())
		userIDs = append(userIDs, r.Submission.UserID)
		if key, ok := labelKeyOf(r); ok {
			labelKeys = append(labelKeys, key)
		}
	}
	problemIDs = compact(problemIDs)
	userIDs = compact(userIDs)

	var (
		problems map[int64]*model.Problem
		users    map[int64]*model.User
		labels   map[model.LabelKey]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		problems, err = s.problems.BatchGet(gctx, problemIDs)
		return providerError(err, "problems")
	})
	g.Go(func() error {
		var err error
		users, err = s.users.BatchGet(gctx, userIDs)
		return providerError(err, "users")
	})
	if len(labelKeys) > 0 {
		g.Go(func() error {
			var err error
			labels, err = s.labels.Labels(gctx, labelKeys)
			return providerError(err, "labels")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return problems, users, labels, nil
}

// Count returns how many results match filter.
func (s *ResultService) Count(ctx context.Context, filter spec.Spec) (int64, error) {
	return s.store.Count(ctx, filter)
}

// SolvedProblems returns the distinct problems with an accepted result matching filter.
func (s *ResultService) SolvedProblems(ctx context.Context, filter spec.Spec) ([]int64, error) {
	return s.store.SolvedProblems(ctx, filter)
}

// SolvedProblemsAsync runs SolvedProblems in the background and returns immediately.
// Identical filters in flight share one store query. Cancelling ctx abandons the wait only.
func (s *ResultService) SolvedProblemsAsync(ctx context.Context, filter spec.Spec) *Future[[]int64] {
	if err := filter.Validate(); err != nil {
		return failedFuture[[]int64](err)
	}
	f := newFuture[[]int64]()
	key := filter.Key()
	go func() {
		defer close(f.done)
		if err := s.sem.Acquire(ctx, 1); err != nil {
			f.err = appErr.Wrapf(err, appErr.Timeout, "solved problems: %v", err)
			return
		}
		defer s.sem.Release(1)

		ch := s.inflight.DoChan(key, func() (interface{}, error) {
			qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.asyncTimeout)
			defer cancel()
			return s.store.SolvedProblems(qctx, filter)
		})
		select {
		case <-ctx.Done():
			f.err = appErr.Wrapf(ctx.Err(), appErr.Timeout, "solved problems: %v", ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				f.err = res.Err
				return
			}
			f.val = slices.Clone(res.Val.([]int64))
		}
	}()
	return f
}

func lookup[T any](ctx context.Context, r pkgrepo.Reader[T], id int64, what string) (*T, error) {
	v, err := r.GetByID(ctx, id)
	if err != nil {
		if pkgrepo.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, providerError(err, what)
	}
	return v, nil
}

func providerError(err error, what string) error {
	if err == nil {
		return nil
	}
	var coded *appErr.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErr.Wrapf(err, appErr.Timeout, "load %s: %v", what, err)
	case pkgrepo.IsConnectionError(err):
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "load %s: %v", what, err)
	}
	return appErr.Wrapf(err, appErr.InternalServerError, "load %s: %v", what, err)
}

func logIntegrity(ctx context.Context, err error, resultID int64) {
	if appErr.IsIntegrity(err) {
		logger.Error(ctx, "submission result cannot be rendered",
			zap.Int64("result_id", resultID),
			zap.Int("code", int(appErr.GetCode(err))),
			zap.Error(err),
		)
	}
}

func labelKeyOf(r *model.SubmissionResult) (model.LabelKey, bool) {
	scope, ok := r.Submission.Scope.(model.ContestScope)
	if !ok {
		return model.LabelKey{}, false
	}
	return model.LabelKey{ContestID: scope.ContestID, ContestProblemID: scope.ContestProblemID}, true
}

func compact(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}
