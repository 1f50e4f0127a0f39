// Package store persists the fund directory, daily NAV rows and the seeding
// run log. Postgres is the production backend; SQLite serves local use.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/nav"
)

// Default batch sizes.
const (
	DefaultNavBatchSize  = 1000
	DefaultFundBatchSize = 2000
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a row of fund_sync_log.
type Run struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Status      RunStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsSynced  int64          `json:"rows_synced"`
	Errors      int            `json:"errors"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RunResult is recorded when a run completes.
type RunResult struct {
	RowsSynced int64          `json:"rows_synced"`
	Errors     int            `json:"errors"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   string    `json:"kind,omitempty"`
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// UpsertResult summarizes a batched upsert. Rows counts the input rows of
// batches that committed.
type UpsertResult struct {
	Rows          int64    `json:"rows"`
	Batches       int      `json:"batches"`
	FailedBatches int      `json:"failed_batches"`
	Errors        []string `json:"errors,omitempty"`
}

// Store defines the persistence interface for the seeding path.
type Store interface {
	// Fund directory
	UpsertFunds(ctx context.Context, funds []nav.Fund, batchSize int) (UpsertResult, error)
	ListFundIDs(ctx context.Context) ([]string, error)

	// Daily NAV
	UpsertNav(ctx context.Context, rows []nav.UpsertRow, batchSize int) (UpsertResult, error)

	// Sync log
	StartRun(ctx context.Context, kind string, metadata map[string]any) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result RunResult) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// upsertBatches runs fn over consecutive [lo, hi) windows of n items. A failing
// batch is logged and counted; later batches are still attempted. Only context
// cancellation stops the loop early.
func upsertBatches(ctx context.Context, table string, n, size int, fn func(ctx context.Context, lo, hi int) error) (UpsertResult, error) {
	var res UpsertResult
	if n == 0 {
		return res, nil
	}
	if size <= 0 {
		size = n
	}

	log := zap.L().With(zap.String("component", "store"), zap.String("table", table))
	for lo := 0; lo < n; lo += size {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		hi := min(lo+size, n)
		res.Batches++
		if err := fn(ctx, lo, hi); err != nil {
			res.FailedBatches++
			res.Errors = append(res.Errors, err.Error())
			log.Error("batch upsert failed",
				zap.Int("batch", res.Batches),
				zap.Int("rows", hi-lo),
				zap.Error(err),
			)
			continue
		}
		res.Rows += int64(hi - lo)
	}
	return res, nil
}
