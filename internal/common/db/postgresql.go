package db

import (
	"strings"

	"github.com/lib/pq"
)

// NewPostgreSQL opens a PostgreSQL pool.
// DSN format: "user=postgres password=password host=localhost port=5432 dbname=dbname sslmode=disable"
func NewPostgreSQL(config *PoolConfig) (Database, error) {
	return openPool("postgres", DialectPostgres, config)
}

const pqUniqueViolation = "23505"

// pqTransient covers connection exceptions (08), serialization failures and
// deadlocks (40001, 40P01) and operator intervention (57P0x).
func pqTransient(err *pq.Error) bool {
	code := string(err.Code)
	switch {
	case strings.HasPrefix(code, "08"):
		return true
	case code == "40001", code == "40P01":
		return true
	case strings.HasPrefix(code, "57P0"):
		return true
	}
	return false
}
