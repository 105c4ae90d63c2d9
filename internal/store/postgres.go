package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS appraisal_rows (
		id         BIGSERIAL PRIMARY KEY,
		record_id  TEXT NOT NULL UNIQUE,
		ts         TIMESTAMPTZ NOT NULL,
		worker_id  TEXT NOT NULL,
		model      TEXT NOT NULL,
		category   TEXT NOT NULL,
		condition  TEXT NOT NULL,
		gold_mg    DOUBLE PRECISION NOT NULL,
		value_usd  DOUBLE PRECISION NOT NULL
	)
`

// PostgresStore persists appraisal rows in an append-only table. Rows are
// only ever inserted, never updated, so concurrent sessions interleave safely.
type PostgresStore struct {
	pool        *pgxpool.Pool
	timeout     time.Duration
	logger      *slog.Logger
	schemaReady atomic.Bool
}

// NewPostgresStore builds the store without requiring the database to be
// reachable: the pool connects lazily and an offline database simply reports
// unavailable until it comes back. Only a malformed connection string fails.
func NewPostgresStore(ctx context.Context, connString string, timeout time.Duration, logger *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	return &PostgresStore{
		pool:    pool,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// ensureSchema creates the target table on first contact, the tabular
// equivalent of auto-creating the spreadsheet header row.
func (s *PostgresStore) ensureSchema(ctx context.Context) bool {
	if s.schemaReady.Load() {
		return true
	}
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		s.logger.Warn("Failed to ensure appraisal table", "error", err)
		return false
	}
	s.schemaReady.Store(true)
	return true
}

func (s *PostgresStore) IsAvailable(ctx context.Context) bool {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pool.Ping(opCtx) == nil
}

// Append writes one row. true means durably committed; every failure mode
// (auth, missing table, network) comes back as false, never as a panic.
func (s *PostgresStore) Append(ctx context.Context, rec models.AnalysisRecord) bool {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if !s.ensureSchema(opCtx) {
		return false
	}

	query := `
		INSERT INTO appraisal_rows
			(record_id, ts, worker_id, model, category, condition, gold_mg, value_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (record_id) DO NOTHING
	`
	_, err := s.pool.Exec(opCtx, query,
		rec.ID, rec.Timestamp, rec.WorkerID,
		rec.Model, rec.Category, rec.Condition,
		rec.GoldMg, rec.ValueUSD,
	)
	if err != nil {
		s.logger.Error("Postgres append failed", "record_id", rec.ID, "error", err)
		return false
	}
	return true
}

// AppendBatch appends each record independently; a failure mid-batch does not
// roll back earlier successes.
func (s *PostgresStore) AppendBatch(ctx context.Context, recs []models.AnalysisRecord) models.BatchResult {
	ok := make([]bool, len(recs))
	for i, rec := range recs {
		ok[i] = s.Append(ctx, rec)
	}
	return models.BatchResult{OK: ok}
}

func (s *PostgresStore) ReadAll(ctx context.Context) ([]models.AnalysisRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if !s.ensureSchema(opCtx) {
		return nil, fmt.Errorf("appraisal table unavailable")
	}

	query := `
		SELECT record_id, ts, worker_id, model, category, condition, gold_mg, value_usd
		FROM appraisal_rows
		ORDER BY ts ASC, id ASC
	`
	rows, err := s.pool.Query(opCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read appraisal rows: %w", err)
	}
	defer rows.Close()

	records := []models.AnalysisRecord{}
	for rows.Next() {
		var rec models.AnalysisRecord
		err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.WorkerID,
			&rec.Model, &rec.Category, &rec.Condition,
			&rec.GoldMg, &rec.ValueUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
