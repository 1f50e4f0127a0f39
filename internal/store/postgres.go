package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/fundnav/internal/db"
	"github.com/sells-group/fundnav/internal/nav"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
	TimeZone string `yaml:"timezone" mapstructure:"timezone"`
}

var (
	fundInfoUpsert = db.UpsertConfig{
		Table:        "public.fund_info",
		Columns:      []string{"fund_id", "fund_name"},
		ConflictKeys: []string{"fund_id"},
	}
	navUpsert = db.UpsertConfig{
		Table:        "public.fund_nav_daily",
		Columns:      []string{"fund_id", "nav_date", "net_asset_value", "accumulated_asset_value"},
		ConflictKeys: []string{"fund_id", "nav_date"},
	}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	tz := "UTC"
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
		if poolCfg.TimeZone != "" {
			tz = poolCfg.TimeZone
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.ConnConfig.RuntimeParams["timezone"] = tz
	pgxCfg.ConnConfig.RuntimeParams["client_encoding"] = "UTF8"

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate applies pending schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migrate(ctx, s.pool)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertFunds writes fund_info rows, updating names on conflict.
func (s *PostgresStore) UpsertFunds(ctx context.Context, funds []nav.Fund, batchSize int) (UpsertResult, error) {
	return upsertBatches(ctx, fundInfoUpsert.Table, len(funds), batchSize, func(ctx context.Context, lo, hi int) error {
		rows := make([][]any, 0, hi-lo)
		for _, f := range funds[lo:hi] {
			rows = append(rows, []any{f.ID, f.Name})
		}
		_, err := db.BulkUpsert(ctx, s.pool, fundInfoUpsert, rows)
		return err
	})
}

// ListFundIDs returns every fund_id ordered ascending.
func (s *PostgresStore) ListFundIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT fund_id FROM public.fund_info ORDER BY fund_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fund ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fund id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list fund ids")
}

// UpsertNav writes fund_nav_daily rows in fixed-size batches, one transaction
// per batch. Within a batch the last row for a key wins.
func (s *PostgresStore) UpsertNav(ctx context.Context, rows []nav.UpsertRow, batchSize int) (UpsertResult, error) {
	return upsertBatches(ctx, navUpsert.Table, len(rows), batchSize, func(ctx context.Context, lo, hi int) error {
		batch := make([][]any, 0, hi-lo)
		for _, r := range rows[lo:hi] {
			batch = append(batch, []any{r.FundID, r.NavDate, numeric(r.NetAssetValue), numeric(r.AccumulatedAssetValue)})
		}
		_, err := db.BulkUpsert(ctx, s.pool, navUpsert, batch)
		return err
	})
}

// numeric converts a nullable decimal into a value COPY can encode.
func numeric(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}

// StartRun records the beginning of a sync run.
func (s *PostgresStore) StartRun(ctx context.Context, kind string, metadata map[string]any) (*Run, error) {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO public.fund_sync_log (id, kind, status, started_at, metadata) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, kind, string(RunStatusRunning), run.StartedAt, meta,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start run %s", kind)
	}
	return run, nil
}

// CompleteRun marks a run complete.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result RunResult) error {
	meta, err := marshalMetadata(result.Metadata)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE public.fund_sync_log
		 SET status = $1, completed_at = now(), rows_synced = $2, errors = $3, metadata = COALESCE($4, metadata)
		 WHERE id = $5`,
		string(RunStatusComplete), result.RowsSynced, result.Errors, meta, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

// FailRun marks a run failed.
func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE public.fund_sync_log SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		string(RunStatusFailed), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

// ListRuns returns runs newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id::text, kind, status, started_at, completed_at, rows_synced, errors, COALESCE(error, ''), metadata
		FROM public.fund_sync_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var meta []byte
		if err := rows.Scan(&r.ID, &r.Kind, &status, &r.StartedAt, &r.CompletedAt, &r.RowsSynced, &r.Errors, &r.Error, &meta); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = RunStatus(status)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run metadata")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal metadata")
	}
	return b, nil
}
