package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/pkg"
)

// SyncLogRepository keeps one row per engine run for operators.
type SyncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// SyncRunRow is a stored run; identifiers are kept as a count only.
type SyncRunRow struct {
	RunID              string
	Source             string
	Mode               string
	Identifiers        int
	Succeeded          int
	Failed             int
	Fetched            int
	Created            int
	Updated            int
	SkippedDuplicate   int
	SkippedMarginFloor int
	SkippedInvalid     int
	StoreErrors        int
	ImageFailures      int
	StartedAt          time.Time
	FinishedAt         time.Time
	Errors             []string
}

// Save must be called after run.Finish.
func (r *SyncLogRepository) Save(ctx context.Context, run *models.SyncRun) error {
	const query = `INSERT INTO sync_runs (
		run_id, source, mode, identifiers, succeeded, failed, fetched, created, updated,
		skipped_duplicate, skipped_margin, skipped_invalid, store_errors, image_failures,
		started_at, finished_at, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Source, run.Mode.String(), len(run.Identifiers), run.Succeeded, run.Failed,
		run.Fetched, run.Created, run.Updated, run.SkippedDuplicate, run.SkippedMarginFloor,
		run.SkippedInvalid, run.StoreErrors, run.ImageFailures,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), strings.Join(run.Errors, "\n"),
	)
	if err != nil {
		return fmt.Errorf("save sync run %s: %w", run.ID, err)
	}
	return nil
}

func (r *SyncLogRepository) Last(ctx context.Context) (*SyncRunRow, error) {
	const query = `SELECT run_id, source, mode, identifiers, succeeded, failed, fetched, created,
		updated, skipped_duplicate, skipped_margin, skipped_invalid, store_errors, image_failures,
		started_at, finished_at, errors
		FROM sync_runs ORDER BY id DESC LIMIT 1`

	var (
		row    SyncRunRow
		errStr string
	)
	err := r.db.QueryRowContext(ctx, query).Scan(
		&row.RunID, &row.Source, &row.Mode, &row.Identifiers, &row.Succeeded, &row.Failed,
		&row.Fetched, &row.Created, &row.Updated, &row.SkippedDuplicate, &row.SkippedMarginFloor,
		&row.SkippedInvalid, &row.StoreErrors, &row.ImageFailures, &row.StartedAt, &row.FinishedAt,
		&errStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last sync run: %w", err)
	}
	if errStr != "" {
		row.Errors = strings.Split(errStr, "\n")
	}
	return &row, nil
}
