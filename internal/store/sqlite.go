package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fundnav/internal/nav"
)

// SQLiteStore implements Store using modernc.org/sqlite. Decimals are stored
// as TEXT to keep them exact; dates as YYYY-MM-DD.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS fund_info (
	fund_id    TEXT PRIMARY KEY,
	fund_name  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fund_nav_daily (
	fund_id                 TEXT NOT NULL,
	nav_date                TEXT NOT NULL,
	net_asset_value         TEXT,
	accumulated_asset_value TEXT,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (fund_id, nav_date)
);

CREATE INDEX IF NOT EXISTS idx_fund_nav_daily_nav_date ON fund_nav_daily(nav_date);

CREATE TABLE IF NOT EXISTS fund_sync_log (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	rows_synced  INTEGER NOT NULL DEFAULT 0,
	errors       INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     TEXT
);

CREATE INDEX IF NOT EXISTS idx_fund_sync_log_kind_started ON fund_sync_log(kind, started_at DESC);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertFunds writes fund_info rows, updating names on conflict.
func (s *SQLiteStore) UpsertFunds(ctx context.Context, funds []nav.Fund, batchSize int) (UpsertResult, error) {
	const q = `INSERT INTO fund_info (fund_id, fund_name) VALUES (?, ?)
		ON CONFLICT (fund_id) DO UPDATE SET fund_name = excluded.fund_name, updated_at = datetime('now')`
	return upsertBatches(ctx, "fund_info", len(funds), batchSize, func(ctx context.Context, lo, hi int) error {
		return s.inTx(ctx, q, func(stmt *sql.Stmt) error {
			for _, f := range funds[lo:hi] {
				if _, err := stmt.ExecContext(ctx, f.ID, f.Name); err != nil {
					return eris.Wrapf(err, "sqlite: upsert fund %s", f.ID)
				}
			}
			return nil
		})
	})
}

// ListFundIDs returns every fund_id ordered ascending.
func (s *SQLiteStore) ListFundIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fund_id FROM fund_info ORDER BY fund_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fund ids")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fund id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list fund ids")
}

// UpsertNav writes fund_nav_daily rows in fixed-size batches, one transaction
// per batch. Rows are applied in order so the last row for a key wins.
func (s *SQLiteStore) UpsertNav(ctx context.Context, rows []nav.UpsertRow, batchSize int) (UpsertResult, error) {
	const q = `INSERT INTO fund_nav_daily (fund_id, nav_date, net_asset_value, accumulated_asset_value) VALUES (?, ?, ?, ?)
		ON CONFLICT (fund_id, nav_date) DO UPDATE SET
			net_asset_value = excluded.net_asset_value,
			accumulated_asset_value = excluded.accumulated_asset_value,
			updated_at = datetime('now')`
	return upsertBatches(ctx, "fund_nav_daily", len(rows), batchSize, func(ctx context.Context, lo, hi int) error {
		return s.inTx(ctx, q, func(stmt *sql.Stmt) error {
			for _, r := range rows[lo:hi] {
				if _, err := stmt.ExecContext(ctx, r.FundID, nav.FormatDate(r.NavDate), r.NetAssetValue, r.AccumulatedAssetValue); err != nil {
					return eris.Wrapf(err, "sqlite: upsert nav %s %s", r.FundID, nav.FormatDate(r.NavDate))
				}
			}
			return nil
		})
	})
}

// inTx prepares query inside a transaction and commits if fn succeeds.
func (s *SQLiteStore) inTx(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	if err := fn(stmt); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// StartRun records the beginning of a sync run.
func (s *SQLiteStore) StartRun(ctx context.Context, kind string, metadata map[string]any) (*Run, error) {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fund_sync_log (id, kind, status, started_at, metadata) VALUES (?, ?, ?, ?, ?)`,
		run.ID, kind, string(RunStatusRunning), run.StartedAt, nullString(meta),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start run %s", kind)
	}
	return run, nil
}

// CompleteRun marks a run complete.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result RunResult) error {
	meta, err := marshalMetadata(result.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE fund_sync_log
		 SET status = ?, completed_at = ?, rows_synced = ?, errors = ?, metadata = COALESCE(?, metadata)
		 WHERE id = ?`,
		string(RunStatusComplete), time.Now().UTC(), result.RowsSynced, result.Errors, nullString(meta), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// FailRun marks a run failed.
func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fund_sync_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(RunStatusFailed), time.Now().UTC(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, status, started_at, completed_at, rows_synced, errors, COALESCE(error, ''), metadata
		FROM fund_sync_log WHERE 1=1`
	args := []any{}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var completed sql.NullTime
		var meta sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &status, &r.StartedAt, &completed, &r.RowsSynced, &r.Errors, &r.Error, &meta); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = RunStatus(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run metadata")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
