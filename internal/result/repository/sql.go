package repository

import (
	"context"
	"database/sql"
	"time"

	"judgeresult/internal/common/db"
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/spec"
	appErr "judgeresult/pkg/errors"
	pkgrepo "judgeresult/pkg/repository"
	"judgeresult/pkg/utils/logger"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	resultsTable = "submission_results"

	// maxClaimRetries bounds how many candidates one claim call tries after losing races.
	maxClaimRetries = 3
)

var resultColumns = []string{
	"id", "user_id", "problem_id", "contest_id", "language", "submitted_at", "status",
	"compile_output", "passed_tests", "total_ms", "total_bytes",
	"claim_token", "claim_owner", "lease_until", "attempts", "updated_at",
}

// SQLStore persists results in a relational table. See schema/ for the DDL.
type SQLStore struct {
	dbProvider db.Provider
	now        Clock
}

// NewSQLStore creates a store over the current database of provider.
func NewSQLStore(provider db.Provider, now Clock) *SQLStore {
	if now == nil {
		now = systemClock
	}
	return &SQLStore{dbProvider: provider, now: now}
}

func (s *SQLStore) database() (db.Database, error) {
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ResultStoreUnavailable, "result store is not configured")
	}
	return database, nil
}

func (s *SQLStore) Create(ctx context.Context, submission model.Submission) (*model.SubmissionResult, error) {
	database, err := s.database()
	if err != nil {
		return nil, err
	}
	now := s.now()
	r := &model.SubmissionResult{
		Submission: submission,
		Status:     model.StatusPending,
		UpdatedAt:  now,
	}
	r.Submission.SubmittedAt = r.Submission.SubmittedAt.UTC()

	var contestID sql.NullInt64
	if id, ok := submission.ContestID(); ok {
		contestID = sql.NullInt64{Int64: id, Valid: true}
	}
	insert := database.Dialect().Builder().
		Insert(resultsTable).
		Columns("user_id", "problem_id", "contest_id", "language", "submitted_at", "status", "attempts", "updated_at").
		Values(submission.UserID, submission.ProblemID(), contestID, submission.Language, r.Submission.SubmittedAt,
			model.StatusPending.String(), 0, now)

	if database.Dialect() == db.DialectPostgres {
		query, args, err := insert.Suffix("RETURNING id").ToSql()
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ResultCreateFailed, "build insert failed")
		}
		if err := database.QueryRow(ctx, query, args...).Scan(&r.ID); err != nil {
			return nil, storeError(err, "create result")
		}
		return r, nil
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ResultCreateFailed, "build insert failed")
	}
	res, err := database.Exec(ctx, query, args...)
	if err != nil {
		return nil, storeError(err, "create result")
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return nil, storeError(err, "create result")
	}
	return r, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*model.SubmissionResult, error) {
	database, err := s.database()
	if err != nil {
		return nil, err
	}
	query, args, err := database.Dialect().Builder().
		Select(resultColumns...).From(resultsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, storeError(err, "build get")
	}
	r, err := scanResult(database.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, notFound(id)
		}
		return nil, storeError(err, "get result")
	}
	return r, nil
}

func (s *SQLStore) Query(ctx context.Context, filter spec.Spec, page pkgrepo.PageRequest) ([]*model.SubmissionResult, error) {
	if err := validateQuery(filter, &page); err != nil {
		return nil, err
	}
	database, err := s.database()
	if err != nil {
		return nil, err
	}
	query, args, err := database.Dialect().Builder().
		Select(resultColumns...).From(resultsTable).
		Where(spec.ToSQL(filter)).
		OrderBy("id DESC").
		Limit(uint64(page.Limit())).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, storeError(err, "build query")
	}
	rows, err := database.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(err, "query results")
	}
	defer rows.Close()

	out := make([]*model.SubmissionResult, 0, page.Limit())
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, storeError(err, "scan result")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate results")
	}
	return out, nil
}

func (s *SQLStore) Count(ctx context.Context, filter spec.Spec) (int64, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	database, err := s.database()
	if err != nil {
		return 0, err
	}
	query, args, err := database.Dialect().Builder().
		Select("COUNT(*)").From(resultsTable).Where(spec.ToSQL(filter)).ToSql()
	if err != nil {
		return 0, storeError(err, "build count")
	}
	var n int64
	if err := database.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, storeError(err, "count results")
	}
	return n, nil
}

func (s *SQLStore) SolvedProblems(ctx context.Context, filter spec.Spec) ([]int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	database, err := s.database()
	if err != nil {
		return nil, err
	}
	query, args, err := database.Dialect().Builder().
		Select("DISTINCT problem_id").From(resultsTable).
		Where(sq.And{spec.ToSQL(filter), sq.Eq{"status": model.StatusAccepted.String()}}).
		OrderBy("problem_id").
		ToSql()
	if err != nil {
		return nil, storeError(err, "build solved problems")
	}
	rows, err := database.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(err, "solved problems")
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeError(err, "scan solved problem")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate solved problems")
	}
	return out, nil
}

// claimable is the eligibility condition of a pending result at now.
func claimable(now time.Time) sq.Sqlizer {
	return sq.And{
		sq.Eq{"status": model.StatusPending.String()},
		sq.Or{sq.Eq{"lease_until": nil}, sq.Lt{"lease_until": now}},
	}
}

// ClaimNextPending selects the oldest claimable row with FOR UPDATE SKIP LOCKED and stamps
// a new lease with a conditional update in the same transaction. A lost race is a
// ClaimConflict and the next candidate is tried.
func (s *SQLStore) ClaimNextPending(ctx context.Context, owner string, lease time.Duration) (*model.Claim, error) {
	database, err := s.database()
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		claim, err := s.claimOnce(ctx, database, owner, lease)
		if err == nil {
			return claim, nil
		}
		if !appErr.Is(err, appErr.ClaimConflict) {
			return nil, err
		}
		logger.Debug(ctx, "claim lost race, retrying", zap.Int("attempt", attempt+1))
	}
	return nil, nil
}

func (s *SQLStore) claimOnce(ctx context.Context, database db.Database, owner string, lease time.Duration) (*model.Claim, error) {
	builder := database.Dialect().Builder()
	var claim *model.Claim

	err := database.Transaction(ctx, func(tx db.Transaction) error {
		now := s.now()
		query, args, err := builder.
			Select("id", "user_id", "problem_id", "contest_id", "language", "submitted_at", "attempts").
			From(resultsTable).
			Where(claimable(now)).
			OrderBy("submitted_at", "id").
			Limit(1).
			Suffix("FOR UPDATE SKIP LOCKED").
			ToSql()
		if err != nil {
			return err
		}

		var (
			c         model.Claim
			problemID int64
			contestID sql.NullInt64
			attempts  int
		)
		err = tx.QueryRow(ctx, query, args...).Scan(
			&c.ResultID, &c.Submission.UserID, &problemID, &contestID,
			&c.Submission.Language, &c.Submission.SubmittedAt, &attempts,
		)
		if err != nil {
			if db.IsNoRows(err) {
				return nil
			}
			return err
		}

		c.Token = uuid.NewString()
		c.Owner = owner
		c.LeaseUntil = now.Add(lease)
		c.Attempt = attempts + 1
		c.Submission.SubmittedAt = c.Submission.SubmittedAt.UTC()
		c.Submission.Scope = scopeOf(problemID, contestID)

		update, uargs, err := builder.Update(resultsTable).
			Set("claim_token", c.Token).
			Set("claim_owner", c.Owner).
			Set("lease_until", c.LeaseUntil).
			Set("attempts", c.Attempt).
			Set("updated_at", now).
			Where(sq.And{sq.Eq{"id": c.ResultID}, claimable(now)}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.Exec(ctx, update, uargs...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return appErr.Newf(appErr.ClaimConflict, "submission result %d was claimed concurrently", c.ResultID)
		}
		claim = &c
		return nil
	})
	if err != nil {
		return nil, storeError(err, "claim pending result")
	}
	return claim, nil
}

func (s *SQLStore) RenewLease(ctx context.Context, resultID int64, token string, lease time.Duration) (time.Time, error) {
	database, err := s.database()
	if err != nil {
		return time.Time{}, err
	}
	now := s.now()
	until := now.Add(lease)
	query, args, err := database.Dialect().Builder().Update(resultsTable).
		Set("lease_until", until).
		Set("updated_at", now).
		Where(sq.Eq{"id": resultID, "claim_token": token, "status": model.StatusPending.String()}).
		ToSql()
	if err != nil {
		return time.Time{}, storeError(err, "build renew")
	}
	res, err := database.Exec(ctx, query, args...)
	if err != nil {
		return time.Time{}, storeError(err, "renew lease")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, storeError(err, "renew lease")
	}
	if affected == 0 {
		return time.Time{}, leaseLost(resultID)
	}
	return until, nil
}

func (s *SQLStore) Complete(ctx context.Context, resultID int64, token string, outcome model.Outcome) (*model.SubmissionResult, error) {
	database, err := s.database()
	if err != nil {
		return nil, err
	}
	now := s.now()
	query, args, err := database.Dialect().Builder().Update(resultsTable).
		Set("status", outcome.Status.String()).
		Set("compile_output", compressText(outcome.CompileOutput)).
		Set("passed_tests", nullableInt(outcome.PassedTests)).
		Set("total_ms", nullableInt(outcome.TotalMilliseconds)).
		Set("total_bytes", nullableInt64(outcome.TotalBytes)).
		Set("claim_token", nil).
		Set("claim_owner", nil).
		Set("lease_until", nil).
		Set("updated_at", now).
		Where(sq.Eq{"id": resultID, "claim_token": token, "status": model.StatusPending.String()}).
		ToSql()
	if err != nil {
		return nil, storeError(err, "build complete")
	}
	res, err := database.Exec(ctx, query, args...)
	if err != nil {
		return nil, storeError(err, "complete result")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeError(err, "complete result")
	}
	if affected == 0 {
		return nil, leaseLost(resultID)
	}
	return s.Get(ctx, resultID)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*model.SubmissionResult, error) {
	var (
		r          model.SubmissionResult
		problemID  int64
		contestID  sql.NullInt64
		statusName string
		output     []byte
		passed     sql.NullInt64
		totalMs    sql.NullInt64
		totalBytes sql.NullInt64
		token      sql.NullString
		owner      sql.NullString
		leaseUntil sql.NullTime
		attempts   int
	)
	if err := row.Scan(
		&r.ID, &r.Submission.UserID, &problemID, &contestID, &r.Submission.Language, &r.Submission.SubmittedAt,
		&statusName, &output, &passed, &totalMs, &totalBytes,
		&token, &owner, &leaseUntil, &attempts, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Submission.Scope = scopeOf(problemID, contestID)
	r.Submission.SubmittedAt = r.Submission.SubmittedAt.UTC()
	if st, err := model.ParseStatus(statusName); err == nil {
		r.Status = st
	} else {
		// Kept out of range so the status mapper reports it when the result is rendered.
		r.Status = model.StatusCount
	}

	var err error
	if r.CompileOutput, err = decompressText(output, output != nil); err != nil {
		return nil, err
	}
	if passed.Valid {
		v := int(passed.Int64)
		r.PassedTests = &v
	}
	if totalMs.Valid {
		v := int(totalMs.Int64)
		r.TotalMilliseconds = &v
	}
	if totalBytes.Valid {
		v := totalBytes.Int64
		r.TotalBytes = &v
	}
	if token.Valid || attempts > 0 {
		r.Claim = &model.ClaimInfo{Token: token.String, Owner: owner.String, Attempts: attempts}
		if leaseUntil.Valid {
			r.Claim.LeaseUntil = leaseUntil.Time.UTC()
		}
	}
	return &r, nil
}

func scopeOf(problemID int64, contestID sql.NullInt64) model.Scope {
	if contestID.Valid {
		return model.ContestScope{ContestID: contestID.Int64, ContestProblemID: problemID}
	}
	return model.StandaloneScope{ProblemID: problemID}
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
