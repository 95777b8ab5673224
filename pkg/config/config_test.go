package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/pkg/concurrency/lock"
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/optimizer"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reldb.ini")
	content := `
[storage]
data_dir = /tmp/dbdata
pool_size = 8

[transaction]
isolation = read_committed
deadlock_policy = detection

[optimizer]
join_order = greedy
projection_pushdown = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/dbdata", cfg.DataDir)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, transaction.ReadCommitted, cfg.Isolation)
	assert.Equal(t, lock.Detection, cfg.DeadlockPolicy)
	assert.Equal(t, optimizer.JoinOrderGreedy, cfg.JoinOrder)
	assert.True(t, cfg.EnableProjectionPushdown)
}

func TestLoadPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reldb.ini")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\npool_size = 4\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, Default().Isolation, cfg.Isolation)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero pool", "[storage]\npool_size = 0\n"},
		{"bad isolation", "[transaction]\nisolation = chaos\n"},
		{"bad join order", "[optimizer]\njoin_order = quantum\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "reldb.ini")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
