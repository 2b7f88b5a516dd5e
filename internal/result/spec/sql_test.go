package spec_test

import (
	"reflect"
	"testing"
	"time"

	"judgeresult/internal/common/db"
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/spec"
)

func TestToSQL(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		filter   spec.Spec
		wantSQL  string
		wantArgs []any
	}{
		{"all", spec.All(), "1=1", nil},
		{"empty or", spec.Or(), "1=0", nil},
		{"empty in", spec.In(spec.FieldUserID), "1=0", nil},
		{"eq", spec.ByUser(5), "user_id = ?", []any{int64(5)}},
		{
			"status is stored by name",
			spec.WithStatus(model.StatusAccepted, model.StatusWrongAnswer),
			"status IN (?,?)",
			[]any{"Accepted", "WrongAnswer"},
		},
		{"present", spec.Present(spec.FieldContestID), "contest_id IS NOT NULL", nil},
		{
			"standalone folds null before negation",
			spec.Standalone(),
			"NOT COALESCE((contest_id IS NOT NULL), FALSE)",
			nil,
		},
		{
			"and",
			spec.And(spec.ByUser(5), spec.ByProblem(9)),
			"(user_id = ? AND problem_id = ?)",
			[]any{int64(5), int64(9)},
		},
		{
			"range",
			spec.Range(spec.FieldID, 10, 20),
			"(id >= ? AND id < ?)",
			[]any{int64(10), int64(20)},
		},
		{"open range", spec.Range(spec.FieldID, nil, nil), "1=1", nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sql, args, err := spec.ToSQL(tc.filter).ToSql()
			if err != nil {
				t.Fatalf("to sql failed: %v", err)
			}
			if sql != tc.wantSQL {
				t.Fatalf("sql = %q, want %q", sql, tc.wantSQL)
			}
			if len(args) != len(tc.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tc.wantArgs)
			}
			if len(args) > 0 && !reflect.DeepEqual(args, tc.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tc.wantArgs)
			}
		})
	}
}

func TestToSQLTimeRangeUsesUTC(t *testing.T) {
	t.Parallel()
	local := time.Date(2024, 3, 1, 14, 0, 0, 0, time.FixedZone("CET", 3600))
	_, args, err := spec.ToSQL(spec.Range(spec.FieldSubmittedAt, local, nil)).ToSql()
	if err != nil {
		t.Fatalf("to sql failed: %v", err)
	}
	got, ok := args[0].(time.Time)
	if !ok || got.Location() != time.UTC || !got.Equal(local) {
		t.Fatalf("unexpected arg: %#v", args[0])
	}
}

func TestToSQLPostgresPlaceholders(t *testing.T) {
	t.Parallel()
	query, args, err := db.DialectPostgres.Builder().
		Select("id").
		From("submission_results").
		Where(spec.ToSQL(spec.And(spec.ByUser(1), spec.Not(spec.ByContest(2))))).
		ToSql()
	if err != nil {
		t.Fatalf("build query failed: %v", err)
	}
	want := "SELECT id FROM submission_results WHERE (user_id = $1 AND NOT COALESCE((contest_id = $2), FALSE))"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestColumn(t *testing.T) {
	t.Parallel()
	if col, ok := spec.Column(spec.FieldSubmittedAt); !ok || col != "submitted_at" {
		t.Fatalf("unexpected column %q %v", col, ok)
	}
	if _, ok := spec.Column(spec.Field("nope")); ok {
		t.Fatalf("expected unknown field")
	}
}
