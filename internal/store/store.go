// Package store mirrors ledger records and campaign reports into PostgreSQL.
// The JSON ledger stays authoritative; this is an optional audit trail.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

var codec = json.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS interactions (
    subject_id  TEXT        NOT NULL,
    kind        TEXT        NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    details     JSONB       NOT NULL DEFAULT '{}',
    PRIMARY KEY (subject_id, kind)
);
CREATE TABLE IF NOT EXISTS campaign_runs (
    run_id      UUID        PRIMARY KEY,
    kind        TEXT        NOT NULL,
    dry_run     BOOLEAN     NOT NULL,
    budget      INTEGER     NOT NULL,
    sent        INTEGER     NOT NULL,
    skipped     INTEGER     NOT NULL,
    stop_reason TEXT        NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS campaign_run_errors (
    run_id   UUID    NOT NULL REFERENCES campaign_runs (run_id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    message  TEXT    NOT NULL,
    PRIMARY KEY (run_id, position)
);`

const sqlInsertInteraction = `
    INSERT INTO interactions (subject_id, kind, occurred_at, details)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (subject_id, kind) DO NOTHING;
`

const sqlInsertRun = `
    INSERT INTO campaign_runs (run_id, kind, dry_run, budget, sent, skipped, stop_reason, started_at, finished_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    ON CONFLICT (run_id) DO NOTHING;
`

const sqlInsertRunError = `
    INSERT INTO campaign_run_errors (run_id, position, message)
    VALUES ($1, $2, $3)
    ON CONFLICT (run_id, position) DO NOTHING;
`

const sqlRecentRuns = `
    SELECT run_id, kind, dry_run, budget, sent, skipped, stop_reason, started_at, finished_at
    FROM campaign_runs
    ORDER BY started_at DESC
    LIMIT $1;
`

// Store provides the PostgreSQL audit mirror.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.AuditSink = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Connect opens a pool for url and wraps it in a Store with the schema in place.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the audit tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// RecordInteraction inserts one ledger record. Re-recording the same subject
// and kind is a no-op.
func (s *Store) RecordInteraction(ctx context.Context, in schemas.Interaction) error {
	details, err := marshalDetails(in.Details)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sqlInsertInteraction, in.SubjectID, string(in.Kind), epochToTime(in.Timestamp), details); err != nil {
		return fmt.Errorf("failed to insert interaction %s/%s: %w", in.Kind, in.SubjectID, err)
	}
	return nil
}

// RecordRun stores a campaign report and its error lines in one transaction.
func (s *Store) RecordRun(ctx context.Context, report schemas.CampaignReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		report.RunID, string(report.Kind), report.DryRun,
		report.Budget, report.Sent, report.Skipped, string(report.StopReason),
		report.StartedAt.UTC(), report.FinishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert campaign run %s: %w", report.RunID, err)
	}

	for i, msg := range report.Errors {
		if _, err := tx.Exec(ctx, sqlInsertRunError, report.RunID, i, msg); err != nil {
			return fmt.Errorf("failed to insert error %d of run %s: %w", i, report.RunID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecentRuns returns the latest campaign runs, newest first. Error lines are
// not loaded.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]schemas.CampaignReport, error) {
	rows, err := s.pool.Query(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.CampaignReport
	for rows.Next() {
		var r schemas.CampaignReport
		var kind, stop string
		if err := rows.Scan(&r.RunID, &kind, &r.DryRun, &r.Budget, &r.Sent, &r.Skipped, &stop, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan campaign run row: %w", err)
		}
		r.Kind = schemas.ActionKind(kind)
		r.StopReason = schemas.StopReason(stop)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

func marshalDetails(details map[string]any) (string, error) {
	if len(details) == 0 {
		return "{}", nil
	}
	b, err := codec.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to encode interaction details: %w", err)
	}
	return string(b), nil
}

// epochToTime converts fractional epoch seconds to a UTC time.
func epochToTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
