package db_test

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"judgeresult/internal/common/db"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func TestExtractDuplicateKeyName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		message string
		want    string
	}{
		{"Duplicate entry '1' for key 'submission_results.PRIMARY'", "submission_results.PRIMARY"},
		{"Duplicate entry 'x' for key `uniq_label`", "uniq_label"},
		{"something else", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := db.ExtractDuplicateKeyName(tt.message); got != tt.want {
			t.Fatalf("ExtractDuplicateKeyName(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestUniqueViolation(t *testing.T) {
	t.Parallel()
	key, ok := db.UniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3-1' for key 'uniq_contest_problem'"})
	if !ok || key != "uniq_contest_problem" {
		t.Fatalf("unexpected mysql result %q %v", key, ok)
	}
	key, ok = db.UniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "contest_problems_pkey"}))
	if !ok || key != "contest_problems_pkey" {
		t.Fatalf("unexpected postgres result %q %v", key, ok)
	}
	if _, ok := db.UniqueViolation(errors.New("boom")); ok {
		t.Fatalf("plain errors are not unique violations")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", fmt.Errorf("query: %w", sql.ErrConnDone), true},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql syntax", &mysql.MySQLError{Number: 1064}, false},
		{"postgres serialization", &pq.Error{Code: "40001"}, true},
		{"postgres connection", &pq.Error{Code: "08006"}, true},
		{"postgres unique", &pq.Error{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
	}
	for _, tt := range tests {
		if got := db.IsTransient(tt.err); got != tt.want {
			t.Fatalf("%s: IsTransient = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDialectBuilderPlaceholders(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dialect db.Dialect
		want    string
	}{
		{db.DialectMySQL, "SELECT id FROM users WHERE id = ?"},
		{db.DialectPostgres, "SELECT id FROM users WHERE id = $1"},
	}
	for _, tt := range tests {
		query, _, err := tt.dialect.Builder().Select("id").From("users").Where("id = ?", 1).ToSql()
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if query != tt.want {
			t.Fatalf("%s: query = %q, want %q", tt.dialect, query, tt.want)
		}
	}
}
