package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/nav"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func dec(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func navRow(fund, date, net, acc string) nav.UpsertRow {
	d, _ := time.Parse(nav.DateLayout, date)
	return nav.UpsertRow{FundID: fund, NavDate: d, NetAssetValue: dec(net), AccumulatedAssetValue: dec(acc)}
}

type storedNav struct {
	net, acc *string
}

func readNav(t *testing.T, st *SQLiteStore) map[string]storedNav {
	t.Helper()
	rows, err := st.db.Query(`SELECT fund_id, nav_date, net_asset_value, accumulated_asset_value FROM fund_nav_daily`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	out := map[string]storedNav{}
	for rows.Next() {
		var fund, date string
		var v storedNav
		require.NoError(t, rows.Scan(&fund, &date, &v.net, &v.acc))
		out[fund+"/"+date] = v
	}
	require.NoError(t, rows.Err())
	return out
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_UpsertNav_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rows := []nav.UpsertRow{
		navRow("000001", "2024-01-02", "1.0100", "2.0100"),
		navRow("000001", "2024-01-03", "1.0200", ""),
		navRow("000002", "2024-01-02", "", "3.5"),
	}

	res, err := st.UpsertNav(ctx, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, 2, res.Batches)
	assert.Zero(t, res.FailedBatches)
	first := readNav(t, st)

	res, err = st.UpsertNav(ctx, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows)
	second := readNav(t, st)

	assert.Len(t, second, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "1.01", *second["000001/2024-01-02"].net)
	assert.Nil(t, second["000001/2024-01-03"].acc)
	assert.Nil(t, second["000002/2024-01-02"].net)
}

func TestSQLite_UpsertNav_UpdatesValues(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertNav(ctx, []nav.UpsertRow{navRow("000001", "2024-01-02", "1.0", "2.0")}, 0)
	require.NoError(t, err)
	_, err = st.UpsertNav(ctx, []nav.UpsertRow{navRow("000001", "2024-01-02", "1.5", "2.5")}, 0)
	require.NoError(t, err)

	got := readNav(t, st)
	require.Len(t, got, 1)
	assert.Equal(t, "1.5", *got["000001/2024-01-02"].net)
	assert.Equal(t, "2.5", *got["000001/2024-01-02"].acc)
}

func TestSQLite_UpsertNav_DuplicateKeyInBatchLastWins(t *testing.T) {
	st := newTestSQLiteStore(t)

	res, err := st.UpsertNav(context.Background(), []nav.UpsertRow{
		navRow("000001", "2024-01-02", "1.0", "2.0"),
		navRow("000001", "2024-01-02", "1.1", "2.1"),
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Batches)

	got := readNav(t, st)
	require.Len(t, got, 1)
	assert.Equal(t, "1.1", *got["000001/2024-01-02"].net)
}

func TestSQLite_UpsertNav_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	res, err := st.UpsertNav(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Batches)
}

func TestSQLite_UpsertNav_FailedBatchCounted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON fund_nav_daily
		WHEN NEW.fund_id = 'BAD' BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	res, err := st.UpsertNav(ctx, []nav.UpsertRow{
		navRow("000001", "2024-01-02", "1.0", "2.0"),
		navRow("BAD", "2024-01-02", "1.0", "2.0"),
		navRow("000002", "2024-01-02", "1.0", "2.0"),
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 1, res.FailedBatches)
	assert.Equal(t, int64(2), res.Rows)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "rejected")

	assert.Len(t, readNav(t, st), 2)
}

func TestSQLite_UpsertNav_CanceledContext(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.UpsertNav(ctx, []nav.UpsertRow{navRow("000001", "2024-01-02", "1.0", "2.0")}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSQLite_Funds(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.UpsertFunds(ctx, []nav.Fund{
		{ID: "000003", Name: "三"},
		{ID: "000001", Name: "一"},
	}, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Rows)

	_, err = st.UpsertFunds(ctx, []nav.Fund{{ID: "000001", Name: "一号"}}, 2000)
	require.NoError(t, err)

	ids, err := st.ListFundIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "000003"}, ids)

	var name string
	require.NoError(t, st.db.QueryRow(`SELECT fund_name FROM fund_info WHERE fund_id = '000001'`).Scan(&name))
	assert.Equal(t, "一号", name)
}

func TestSQLite_ListFundIDs_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	ids, err := st.ListFundIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartRun(ctx, "nav", map[string]any{"start_date": "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)

	require.NoError(t, st.CompleteRun(ctx, run.ID, RunResult{RowsSynced: 42, Errors: 3}))

	failed, err := st.StartRun(ctx, "funds", nil)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, failed.ID, "rank listing returned no funds"))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]Run{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	done := byID[run.ID]
	assert.Equal(t, RunStatusComplete, done.Status)
	assert.Equal(t, int64(42), done.RowsSynced)
	assert.Equal(t, 3, done.Errors)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "2024-01-01", done.Metadata["start_date"])

	bad := byID[failed.ID]
	assert.Equal(t, RunStatusFailed, bad.Status)
	assert.Equal(t, "rank listing returned no funds", bad.Error)

	navRuns, err := st.ListRuns(ctx, RunFilter{Kind: "nav"})
	require.NoError(t, err)
	assert.Len(t, navRuns, 1)

	failedRuns, err := st.ListRuns(ctx, RunFilter{Status: RunStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failedRuns, 1)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "missing", RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}
