package provider

import (
	"context"
	"fmt"

	"judgeresult/internal/common/db"
	"judgeresult/internal/result/model"
	pkgrepo "judgeresult/pkg/repository"

	sq "github.com/Masterminds/squirrel"
)

// sqlReader loads one entity type from a table keyed by id.
type sqlReader[T any] struct {
	dbProvider db.Provider
	table      string
	columns    []string
	scan       func(row interface{ Scan(...interface{}) error }) (*T, int64, error)
}

func (r *sqlReader[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	found, err := r.BatchGet(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	v, ok := found[id]
	if !ok {
		return nil, pkgrepo.ErrNotFound
	}
	return v, nil
}

func (r *sqlReader[T]) BatchGet(ctx context.Context, ids []int64) (map[int64]*T, error) {
	out := make(map[int64]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgrepo.ErrConnectionFailed, err)
	}
	query, args, err := database.Dialect().Builder().
		Select(r.columns...).From(r.table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := database.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err, r.table)
	}
	defer rows.Close()
	for rows.Next() {
		v, id, err := r.scan(rows)
		if err != nil {
			return nil, wrapDBError(err, r.table)
		}
		out[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, r.table)
	}
	return out, nil
}

// NewSQLProblemProvider reads the problems table.
func NewSQLProblemProvider(provider db.Provider) ProblemProvider {
	return &sqlReader[model.Problem]{
		dbProvider: provider,
		table:      "problems",
		columns:    []string{"id", "name", "time_limit_ms", "memory_limit_bytes"},
		scan: func(row interface{ Scan(...interface{}) error }) (*model.Problem, int64, error) {
			var p model.Problem
			if err := row.Scan(&p.ID, &p.Name, &p.TimeLimitMs, &p.MemoryLimitBytes); err != nil {
				return nil, 0, err
			}
			return &p, p.ID, nil
		},
	}
}

// NewSQLUserProvider reads the users table.
func NewSQLUserProvider(provider db.Provider) UserProvider {
	return &sqlReader[model.User]{
		dbProvider: provider,
		table:      "users",
		columns:    []string{"id", "username"},
		scan: func(row interface{ Scan(...interface{}) error }) (*model.User, int64, error) {
			var u model.User
			if err := row.Scan(&u.ID, &u.Name); err != nil {
				return nil, 0, err
			}
			return &u, u.ID, nil
		},
	}
}

// SQLLabelProvider reads contest_problems.
type SQLLabelProvider struct {
	dbProvider db.Provider
}

func NewSQLLabelProvider(provider db.Provider) *SQLLabelProvider {
	return &SQLLabelProvider{dbProvider: provider}
}

func (p *SQLLabelProvider) Labels(ctx context.Context, keys []model.LabelKey) (map[model.LabelKey]string, error) {
	out := make(map[model.LabelKey]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	database, err := db.CurrentDatabase(p.dbProvider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgrepo.ErrConnectionFailed, err)
	}
	byContest := make(map[int64][]int64)
	for _, k := range keys {
		byContest[k.ContestID] = append(byContest[k.ContestID], k.ContestProblemID)
	}
	cond := make(sq.Or, 0, len(byContest))
	for contestID, problemIDs := range byContest {
		cond = append(cond, sq.Eq{"contest_id": contestID, "problem_id": problemIDs})
	}
	query, args, err := database.Dialect().Builder().
		Select("contest_id", "problem_id", "label").From("contest_problems").Where(cond).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := database.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err, "contest_problems")
	}
	defer rows.Close()
	for rows.Next() {
		var l model.ContestTaskLabel
		if err := rows.Scan(&l.ContestID, &l.ContestProblemID, &l.Label); err != nil {
			return nil, wrapDBError(err, "contest_problems")
		}
		out[l.Key()] = l.Label
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "contest_problems")
	}
	return out, nil
}

func wrapDBError(err error, table string) error {
	if db.IsTransient(err) {
		return fmt.Errorf("%w: read %s: %v", pkgrepo.ErrConnectionFailed, table, err)
	}
	return fmt.Errorf("read %s: %w", table, err)
}
