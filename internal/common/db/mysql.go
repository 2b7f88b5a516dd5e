package db

import (
	"github.com/go-sql-driver/mysql"
)

// NewMySQL opens a MySQL pool.
// DSN format: "user:password@tcp(host:port)/dbname?parseTime=true&loc=UTC"
func NewMySQL(config *PoolConfig) (Database, error) {
	if config != nil && config.DSN != "" {
		parsed, err := mysql.ParseDSN(config.DSN)
		if err == nil && !parsed.ParseTime {
			// Timestamps are scanned into time.Time.
			parsed.ParseTime = true
			config.DSN = parsed.FormatDSN()
		}
	}
	return openPool("mysql", DialectMySQL, config)
}

// MySQL error numbers that indicate the statement may succeed on retry.
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlTooManyConns     = 1040
	mysqlServerShutdown   = 1053
	mysqlQueryInterrupted = 1317
)

func mysqlTransient(err *mysql.MySQLError) bool {
	switch err.Number {
	case mysqlLockWaitTimeout, mysqlDeadlock, mysqlTooManyConns, mysqlServerShutdown, mysqlQueryInterrupted:
		return true
	}
	return false
}
