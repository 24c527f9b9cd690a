package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Musing-io/musing-protocol/internal/types"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, uint32(DefaultWeightPPM), cfg.ConnectorWeightPPM)
	assert.Equal(t, DefaultGenesisSupply, cfg.GenesisSupply)
	assert.Equal(t, DefaultTreasury, cfg.Treasury)
	assert.Equal(t, DriverNone, cfg.Storage.Driver)
	assert.Equal(t, DefaultRetries, cfg.Storage.Retries)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTP.Addr)
	assert.Equal(t, DefaultSnapshotCron, cfg.SnapshotCron)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeConfig(t, "musing.yaml", `
connector_weight_ppm: 150000
genesis_supply: "1000"
storage:
  driver: sqlite
  dsn: "file:bond.db"
http:
  addr: "127.0.0.1:9090"
log:
  debug: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(150000), cfg.ConnectorWeightPPM)
	assert.Equal(t, "1000", cfg.GenesisSupply)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "file:bond.db", cfg.Storage.DSN)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "musing.json", `{"treasury": "0xfile"}`)
	t.Setenv("MUSING_TREASURY", "0xenv")
	t.Setenv("MUSING_STORAGE_DRIVER", "postgres")
	t.Setenv("MUSING_STORAGE_DSN", "postgres://bond@localhost/bond")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0xenv", cfg.Treasury)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://bond@localhost/bond", cfg.Storage.DSN)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"weight too high", `connector_weight_ppm: 1000001`},
		{"bad genesis", `genesis_supply: "lots"`},
		{"fee policy", `fee_policy: "flat"`},
		{"unknown driver", `storage: {driver: mongo}`},
		{"driver without dsn", `storage: {driver: sqlite}`},
		{"bad cron", `snapshot_cron: "every now and then"`},
		{"bad addr", `http: {addr: "nope"}`},
		{"treasury is engine", `{treasury: "0xbond"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "musing.yaml", tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(writeConfig(t, "musing.yaml", `connector_weight_ppm: 1000001`))
	assert.ErrorIs(t, err, types.ErrInvalidWeight)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
