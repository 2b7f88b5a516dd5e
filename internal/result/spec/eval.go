package spec

import (
	"strings"
	"time"

	"judgeresult/internal/result/model"
)

// Matches evaluates s against r in memory. The tree is assumed valid.
func (s Spec) Matches(r *model.SubmissionResult) bool {
	if r == nil {
		return false
	}
	switch s.Op {
	case "", OpAll:
		return true
	case OpAnd:
		for i := range s.Children {
			if !s.Children[i].Matches(r) {
				return false
			}
		}
		return true
	case OpOr:
		for i := range s.Children {
			if s.Children[i].Matches(r) {
				return true
			}
		}
		return false
	case OpNot:
		if len(s.Children) != 1 {
			return false
		}
		return !s.Children[0].Matches(r)
	}

	v, ok := extract(r, s.Field)
	switch s.Op {
	case OpPresent:
		return ok
	case OpEq, OpIn:
		if !ok {
			return false
		}
		for _, want := range s.Values {
			if compare(v, want) == 0 {
				return true
			}
		}
		return false
	case OpRange:
		if !ok {
			return false
		}
		if s.From != nil && compare(v, s.From) < 0 {
			return false
		}
		if s.To != nil && compare(v, s.To) >= 0 {
			return false
		}
		return true
	}
	return false
}

// extract returns the value of f on r and false when the field is empty.
func extract(r *model.SubmissionResult, f Field) (any, bool) {
	switch f {
	case FieldID:
		return r.ID, true
	case FieldUserID:
		return r.Submission.UserID, true
	case FieldProblemID:
		return r.Submission.ProblemID(), r.Submission.Scope != nil
	case FieldContestID:
		id, ok := r.Submission.ContestID()
		return id, ok
	case FieldStatus:
		return r.Status, true
	case FieldLanguage:
		return r.Submission.Language, true
	case FieldSubmittedAt:
		return r.Submission.SubmittedAt, true
	}
	return nil, false
}

// compare orders two values of the same kind; mismatched kinds never compare equal.
func compare(a, b any) int {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			return -2
		}
		return cmpOrdered(x, y)
	case model.Status:
		y, ok := b.(model.Status)
		if !ok {
			return -2
		}
		return cmpOrdered(int(x), int(y))
	case string:
		y, ok := b.(string)
		if !ok {
			return -2
		}
		return strings.Compare(x, y)
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return -2
		}
		return x.Compare(y)
	}
	return -2
}

func cmpOrdered[T int | int64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
