package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundnav/internal/config"
)

func TestInitStore_SQLite(t *testing.T) {
	resetCfg(t)
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ids, err := st.ListFundIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	dir := chdirTemp(t)
	resetCfg(t)
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Ping(context.Background()))
	_, err = os.Stat(filepath.Join(dir, "fundnav.db"))
	assert.NoError(t, err)
}

func TestInitStore_PostgresRequiresURL(t *testing.T) {
	resetCfg(t)
	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	resetCfg(t)
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
