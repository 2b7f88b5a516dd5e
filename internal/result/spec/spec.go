// Package spec is a serializable predicate tree over submission results.
//
// A Spec can be evaluated in memory with Matches or pushed down to SQL with ToSQL;
// both give the same answer for the same data. New filter dimensions are added as
// a Field with an extractor and a column, without touching the store interface.
package spec

import (
	"fmt"
	"time"

	"judgeresult/internal/result/model"
	appErr "judgeresult/pkg/errors"
)

// Op is the node operator.
type Op string

const (
	OpAll     Op = "all"     // matches every result
	OpEq      Op = "eq"      // field equals Values[0]
	OpIn      Op = "in"      // field equals any of Values
	OpRange   Op = "range"   // From <= field < To, either bound optional
	OpPresent Op = "present" // nullable field has a value
	OpAnd     Op = "and"
	OpOr      Op = "or"
	OpNot     Op = "not"
)

// Field names a filterable dimension of a result.
type Field string

const (
	FieldID          Field = "id"
	FieldUserID      Field = "user_id"
	FieldProblemID   Field = "problem_id"
	FieldContestID   Field = "contest_id"
	FieldStatus      Field = "status"
	FieldLanguage    Field = "language"
	FieldSubmittedAt Field = "submitted_at"
)

type kind int

const (
	kindInt kind = iota + 1
	kindStatus
	kindString
	kindTime
)

type fieldInfo struct {
	kind     kind
	column   string
	ordered  bool
	nullable bool
}

var fields = map[Field]fieldInfo{
	FieldID:          {kind: kindInt, column: "id", ordered: true},
	FieldUserID:      {kind: kindInt, column: "user_id", ordered: true},
	FieldProblemID:   {kind: kindInt, column: "problem_id", ordered: true},
	FieldContestID:   {kind: kindInt, column: "contest_id", ordered: true, nullable: true},
	FieldStatus:      {kind: kindStatus, column: "status"},
	FieldLanguage:    {kind: kindString, column: "language"},
	FieldSubmittedAt: {kind: kindTime, column: "submitted_at", ordered: true},
}

// Spec is one node of a predicate tree. The zero value matches everything.
//
// Values hold int64 for id fields, model.Status for status, string for language
// and time.Time for submitted_at.
type Spec struct {
	Op       Op     `json:"op"`
	Field    Field  `json:"field,omitempty"`
	Values   []any  `json:"values,omitempty"`
	From     any    `json:"from,omitempty"`
	To       any    `json:"to,omitempty"`
	Children []Spec `json:"children,omitempty"`
}

// All matches every result.
func All() Spec { return Spec{Op: OpAll} }

// Eq matches results whose field equals v.
func Eq(f Field, v any) Spec { return Spec{Op: OpEq, Field: f, Values: []any{normalize(v)}} }

// In matches results whose field equals any of vs. An empty set matches nothing.
func In(f Field, vs ...any) Spec {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = normalize(v)
	}
	return Spec{Op: OpIn, Field: f, Values: values}
}

// Range matches from <= field < to. A nil bound is open.
func Range(f Field, from, to any) Spec {
	return Spec{Op: OpRange, Field: f, From: normalize(from), To: normalize(to)}
}

// Present matches results where a nullable field is set.
func Present(f Field) Spec { return Spec{Op: OpPresent, Field: f} }

// And matches when every child matches. No children matches everything.
func And(children ...Spec) Spec { return Spec{Op: OpAnd, Children: children} }

// Or matches when any child matches. No children matches nothing.
func Or(children ...Spec) Spec { return Spec{Op: OpOr, Children: children} }

// Not negates s.
func Not(s Spec) Spec { return Spec{Op: OpNot, Children: []Spec{s}} }

// ByUser restricts to one submitter.
func ByUser(userID int64) Spec { return Eq(FieldUserID, userID) }

// ByProblem restricts to one problem, in or out of contests.
func ByProblem(problemID int64) Spec { return Eq(FieldProblemID, problemID) }

// ByContest restricts to one contest.
func ByContest(contestID int64) Spec { return Eq(FieldContestID, contestID) }

// Standalone restricts to submissions made outside contests.
func Standalone() Spec { return Not(Present(FieldContestID)) }

// WithStatus restricts to the given statuses.
func WithStatus(statuses ...model.Status) Spec {
	vs := make([]any, len(statuses))
	for i, s := range statuses {
		vs[i] = s
	}
	return In(FieldStatus, vs...)
}

// SubmittedBetween restricts to [from, to). A zero time leaves that side open.
func SubmittedBetween(from, to time.Time) Spec {
	var lo, hi any
	if !from.IsZero() {
		lo = from
	}
	if !to.IsZero() {
		hi = to
	}
	return Range(FieldSubmittedAt, lo, hi)
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

// Validate checks the tree is well formed and every value has its field's type.
func (s Spec) Validate() error {
	if err := s.validate(); err != nil {
		return appErr.Wrapf(err, appErr.InvalidPredicate, "invalid result filter: %v", err)
	}
	return nil
}

func (s Spec) validate() error {
	switch s.Op {
	case "", OpAll:
		return nil
	case OpAnd, OpOr:
		for i := range s.Children {
			if err := s.Children[i].validate(); err != nil {
				return err
			}
		}
		return nil
	case OpNot:
		if len(s.Children) != 1 {
			return fmt.Errorf("not requires exactly one child")
		}
		return s.Children[0].validate()
	}

	info, ok := fields[s.Field]
	if !ok {
		return fmt.Errorf("unknown field %q", s.Field)
	}
	switch s.Op {
	case OpEq:
		if len(s.Values) != 1 {
			return fmt.Errorf("eq on %s requires exactly one value", s.Field)
		}
		return checkValues(info, s.Field, s.Values...)
	case OpIn:
		return checkValues(info, s.Field, s.Values...)
	case OpRange:
		if !info.ordered {
			return fmt.Errorf("field %s does not support range", s.Field)
		}
		if s.From != nil {
			if err := checkValues(info, s.Field, s.From); err != nil {
				return err
			}
		}
		if s.To != nil {
			if err := checkValues(info, s.Field, s.To); err != nil {
				return err
			}
		}
		return nil
	case OpPresent:
		if !info.nullable {
			return fmt.Errorf("field %s is never empty", s.Field)
		}
		return nil
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

func checkValues(info fieldInfo, f Field, values ...any) error {
	for _, v := range values {
		ok := false
		switch info.kind {
		case kindInt:
			_, ok = v.(int64)
		case kindStatus:
			var st model.Status
			st, ok = v.(model.Status)
			ok = ok && st.Valid()
		case kindString:
			_, ok = v.(string)
		case kindTime:
			_, ok = v.(time.Time)
		}
		if !ok {
			return fmt.Errorf("value %v (%T) does not fit field %s", v, v, f)
		}
	}
	return nil
}
