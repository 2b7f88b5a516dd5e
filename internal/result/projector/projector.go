// Package projector renders submission results for a particular viewer.
package projector

import (
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/status"
	appErr "judgeresult/pkg/errors"
)

// Input is everything needed to render one result.
type Input struct {
	Result  *model.SubmissionResult
	Problem *model.Problem
	Owner   *model.User
	Viewer  model.Viewer
	// Labels maps contest tasks to display labels. It may be nil.
	Labels map[model.LabelKey]string
}

// Project renders in.Result as seen by in.Viewer.
//
// Compile output is shown only for a compilation error and only to privileged viewers or
// the owner. Totals are hidden for compilation and server errors and are clamped to the
// problem limits. Passed tests are hidden for accepted results as well.
func Project(in Input, fields Fields) (*View, error) {
	r := in.Result
	if r == nil {
		return nil, appErr.New(appErr.MissingRequiredEntity).WithMessage("result is missing")
	}
	if in.Problem == nil {
		return nil, appErr.Newf(appErr.MissingRequiredEntity, "problem %d of result %d is missing", r.Submission.ProblemID(), r.ID).
			WithDetail("result_id", r.ID)
	}
	if in.Owner == nil {
		return nil, appErr.Newf(appErr.MissingRequiredEntity, "owner %d of result %d is missing", r.Submission.UserID, r.ID).
			WithDetail("result_id", r.ID)
	}

	ext, err := status.ToExternal(r.Status)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidStatus, "result %d has invalid status %d", r.ID, int(r.Status))
	}

	view := &View{
		ResultID:    r.ID,
		Language:    r.Submission.Language,
		SubmittedAt: r.Submission.SubmittedAt,
		ProblemName: in.Problem.Name,
		Status:      ext,
		UserID:      in.Owner.ID,
		UserName:    in.Owner.Name,
	}

	if fields.Has(FieldCompileOutput) && r.Status == model.StatusCompilationError &&
		(in.Viewer.Privileged || in.Viewer.Owns(r.Submission.UserID)) {
		view.CompileOutput = copyPtr(r.CompileOutput)
	}

	showTotals := r.Status != model.StatusCompilationError && r.Status != model.StatusServerError
	if fields.Has(FieldTotals) && showTotals {
		view.TotalMilliseconds = clampInt(r.TotalMilliseconds, in.Problem.TimeLimitMs)
		view.TotalBytes = clampInt64(r.TotalBytes, in.Problem.MemoryLimitBytes)
	}
	if fields.Has(FieldPassedTests) && showTotals && r.Status != model.StatusAccepted {
		view.PassedTests = copyPtr(r.PassedTests)
	}

	if fields.Has(FieldScope) {
		switch scope := r.Submission.Scope.(type) {
		case model.ContestScope:
			label, ok := in.Labels[model.LabelKey{ContestID: scope.ContestID, ContestProblemID: scope.ContestProblemID}]
			if !ok {
				label = UnknownLabel
			}
			view.Contest = &ContestBlock{ContestID: scope.ContestID, Label: label}
		case model.StandaloneScope:
			id := scope.ProblemID
			view.ProblemID = &id
		default:
			return nil, appErr.Newf(appErr.MissingRequiredEntity, "result %d has no submission scope", r.ID)
		}
	}

	return view, nil
}

// clampInt reports min(raw, limit). A non-positive limit means the problem has none.
func clampInt(raw *int, limit int) *int {
	if raw == nil {
		return nil
	}
	v := *raw
	if limit > 0 {
		v = min(v, limit)
	}
	return &v
}

func clampInt64(raw *int64, limit int64) *int64 {
	if raw == nil {
		return nil
	}
	v := *raw
	if limit > 0 {
		v = min(v, limit)
	}
	return &v
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
