package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shivanshkc/tokbench/pkg/bench"
)

// SweepSummary is one row of the sweep history.
type SweepSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	BaseURL    string
	Model      string
	// Levels lists the measured concurrency levels in sweep order.
	Levels []int
	// PeakSystemTPS is the best system throughput over all levels.
	PeakSystemTPS float64
	// Failed is the number of failed requests over all levels.
	Failed int
}

// SweepStore handles sweep persistence
type SweepStore struct {
	db *DB
}

// NewSweepStore creates a new sweep store
func NewSweepStore(db *DB) *SweepStore {
	return &SweepStore{db: db}
}

// Save inserts a sweep and its levels. A sweep without an ID is given one.
//
// Saving the same ID twice fails.
func (s *SweepStore) Save(ctx context.Context, sweep *bench.SweepReport) (err error) {
	if sweep.ID == "" {
		sweep.ID = uuid.New().String()
	}

	report, err := json.Marshal(sweep)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, started_at, finished_at, base_url, model, total_requests, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sweep.ID, sweep.StartedAt.UTC(), sweep.FinishedAt.UTC(),
		sweep.Settings.BaseURL, sweep.Settings.Model, sweep.Settings.TotalRequests, string(report),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sweep: %w", err)
	}

	for i, level := range sweep.Levels {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO levels (
				sweep_id, position, concurrency, succeeded, failed, total_tokens, wall_time_ns,
				ttft_p50, itl_p50, latency_p50, system_tps, system_qps
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sweep.ID, i, level.Concurrency, level.Succeeded, level.Failed, level.TotalTokens, int64(level.WallTime),
			level.TTFT.P50, level.ITL.P50, level.Latency.P50, level.SystemTPS, level.SystemQPS,
		)
		if err != nil {
			return fmt.Errorf("failed to insert level %d: %w", level.Concurrency, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sweep: %w", err)
	}
	return nil
}

// Get retrieves a full sweep report by ID.
func (s *SweepStore) Get(ctx context.Context, id string) (*bench.SweepReport, error) {
	var report string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM sweeps WHERE id = ?`, id).Scan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep: %w", err)
	}

	sweep := &bench.SweepReport{}
	if err := json.Unmarshal([]byte(report), sweep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sweep: %w", err)
	}
	return sweep, nil
}

// List returns the most recent sweeps first. A limit of zero or less means no limit.
func (s *SweepStore) List(ctx context.Context, limit int) ([]SweepSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, base_url, model
		FROM sweeps
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}

	var summaries []SweepSummary
	for rows.Next() {
		var summary SweepSummary
		if err := rows.Scan(&summary.ID, &summary.StartedAt, &summary.FinishedAt, &summary.BaseURL, &summary.Model); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate sweeps: %w", err)
	}
	// One connection: close before querying levels.
	_ = rows.Close()

	for i := range summaries {
		if err := s.fillLevels(ctx, &summaries[i]); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

// fillLevels loads the per-level aggregates of one summary.
func (s *SweepStore) fillLevels(ctx context.Context, summary *SweepSummary) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT concurrency, failed, system_tps
		FROM levels
		WHERE sweep_id = ?
		ORDER BY position`, summary.ID)
	if err != nil {
		return fmt.Errorf("failed to list levels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var concurrency, failed int
		var systemTPS float64
		if err := rows.Scan(&concurrency, &failed, &systemTPS); err != nil {
			return fmt.Errorf("failed to scan level: %w", err)
		}
		summary.Levels = append(summary.Levels, concurrency)
		summary.Failed += failed
		summary.PeakSystemTPS = max(summary.PeakSystemTPS, systemTPS)
	}
	return rows.Err()
}
