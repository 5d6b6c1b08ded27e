package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"slipway/model"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func Migrate(db *DB) error {
	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS saga_events (
			id         TEXT PRIMARY KEY,
			saga_id    TEXT NOT NULL,
			timestamp  TIMESTAMPTZ NOT NULL DEFAULT now(),
			source     TEXT NOT NULL DEFAULT '',
			run        TEXT NOT NULL DEFAULT '',
			category   TEXT NOT NULL DEFAULT '',
			action     TEXT NOT NULL DEFAULT '',
			message    TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_saga_saga_id ON saga_events(saga_id, timestamp);

		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			bucket      TEXT NOT NULL,
			key         TEXT NOT NULL,
			targets     TEXT[] NOT NULL DEFAULT '{}',
			saga_id     TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'queued',
			message     TEXT NOT NULL DEFAULT '',
			started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`)
	return err
}

func (db *DB) InsertRun(ctx context.Context, r *model.Run) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO runs (id, bucket, key, targets, saga_id, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Artifact.Bucket, r.Artifact.Key, r.Targets, r.SagaID, r.Status, r.StartedAt,
	)
	return err
}

func (db *DB) FinishRun(ctx context.Context, id string, status model.RunStatus, message string) error {
	var finished *time.Time
	if status == model.RunSucceeded || status == model.RunFailed {
		now := time.Now()
		finished = &now
	}
	_, err := db.Pool.Exec(ctx,
		`UPDATE runs SET status = $1, message = $2, finished_at = $3 WHERE id = $4`,
		status, message, finished, id,
	)
	return err
}

func (db *DB) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, bucket, key, targets, saga_id, status, message, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Artifact.Bucket, &r.Artifact.Key, &r.Targets, &r.SagaID, &r.Status, &r.Message, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func (db *DB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	err := db.Pool.QueryRow(ctx,
		`SELECT id, bucket, key, targets, saga_id, status, message, started_at, finished_at
		 FROM runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.Artifact.Bucket, &r.Artifact.Key, &r.Targets, &r.SagaID, &r.Status, &r.Message, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecoverInFlightRuns marks runs interrupted by a restart as failed.
func (db *DB) RecoverInFlightRuns(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE runs SET status = 'failed', message = 'interrupted by restart', finished_at = now()
		 WHERE status NOT IN ('succeeded', 'failed')`,
	)
	return err
}

// Healthy checks the database connection.
func (db *DB) Healthy(ctx context.Context) error {
	var n int
	return db.Pool.QueryRow(ctx, "SELECT 1").Scan(&n)
}

// DailyStats returns basic run statistics for today.
type DailyStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

func (db *DB) GetDailyStats(ctx context.Context) (*DailyStats, error) {
	s := &DailyStats{}
	err := db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'succeeded'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM runs
		WHERE started_at >= CURRENT_DATE
	`).Scan(&s.Total, &s.Success, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return s, nil
}
