package spec

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"judgeresult/internal/result/model"
)

// Column returns the storage column behind f.
func Column(f Field) (string, bool) {
	info, ok := fields[f]
	return info.column, ok
}

// ToSQL translates s into a WHERE condition over the results table.
// The tree must be valid; placeholders follow the builder the condition is used with.
func ToSQL(s Spec) sq.Sqlizer {
	switch s.Op {
	case "", OpAll:
		return sq.Expr("1=1")
	case OpAnd:
		if len(s.Children) == 0 {
			return sq.Expr("1=1")
		}
		and := make(sq.And, 0, len(s.Children))
		for i := range s.Children {
			and = append(and, ToSQL(s.Children[i]))
		}
		return and
	case OpOr:
		if len(s.Children) == 0 {
			return sq.Expr("1=0")
		}
		or := make(sq.Or, 0, len(s.Children))
		for i := range s.Children {
			or = append(or, ToSQL(s.Children[i]))
		}
		return or
	case OpNot:
		if len(s.Children) != 1 {
			return sq.Expr("1=0")
		}
		return notExpr{inner: ToSQL(s.Children[0])}
	}

	col := fields[s.Field].column
	switch s.Op {
	case OpPresent:
		return sq.NotEq{col: nil}
	case OpEq:
		if len(s.Values) != 1 {
			return sq.Expr("1=0")
		}
		return sq.Eq{col: sqlValue(s.Values[0])}
	case OpIn:
		if len(s.Values) == 0 {
			return sq.Expr("1=0")
		}
		vs := make([]any, len(s.Values))
		for i, v := range s.Values {
			vs[i] = sqlValue(v)
		}
		return sq.Eq{col: vs}
	case OpRange:
		cond := sq.And{}
		if s.From != nil {
			cond = append(cond, sq.GtOrEq{col: sqlValue(s.From)})
		}
		if s.To != nil {
			cond = append(cond, sq.Lt{col: sqlValue(s.To)})
		}
		if len(cond) == 0 {
			return sq.Expr("1=1")
		}
		return cond
	}
	return sq.Expr("1=0")
}

// sqlValue converts a tree value to the form stored in the results table.
func sqlValue(v any) any {
	switch x := v.(type) {
	case model.Status:
		return x.String()
	case time.Time:
		return x.UTC()
	}
	return v
}

// notExpr negates a condition. A NULL inside is treated as false before negation
// so the result matches the in-memory evaluation of nullable fields.
type notExpr struct {
	inner sq.Sqlizer
}

func (n notExpr) ToSql() (string, []interface{}, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT COALESCE((" + sql + "), FALSE)", args, nil
}
