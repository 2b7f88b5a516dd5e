package repository

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"judgeresult/internal/common/db"
	"judgeresult/pkg/utils/logger"

	"go.uber.org/zap"
)

//go:embed schema
var schemaFiles embed.FS

// EnsureSchema creates the tables used by SQLStore and the SQL readers if they do not exist.
func EnsureSchema(ctx context.Context, database db.Database) error {
	name := "schema/mysql.sql"
	if database.Dialect() == db.DialectPostgres {
		name = "schema/postgres.sql"
	}
	data, err := schemaFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	statements := splitStatements(string(data))
	for _, stmt := range statements {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logger.Info(ctx, "result schema ensured", zap.String("dialect", string(database.Dialect())), zap.Int("statements", len(statements)))
	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
