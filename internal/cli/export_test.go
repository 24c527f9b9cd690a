package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Musing-io/musing-protocol/internal/storage/models"
	"github.com/Musing-io/musing-protocol/internal/storage/sqlite"
)

// seededConfig writes a config pointing at a sqlite file holding two trades.
func seededConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "bond.db")

	store, err := sqlite.NewStorage(dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())

	at := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	for i, side := range []string{models.SideBuy, models.SideSell} {
		require.NoError(t, store.SaveTrade(context.Background(), &models.TradeRecord{
			Token:        "0xeconomy",
			Account:      "0xalice",
			Side:         side,
			AmountIn:     "1000000000000000000",
			AmountOut:    "139594797900291386901",
			Fee:          "0",
			ReserveAfter: "2000000000000000000",
			SupplyAfter:  "10139594797900291386901",
			PricePPM:     "9862",
			ExecutedAt:   at.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Close())

	path := filepath.Join(dir, "musing.yaml")
	content := fmt.Sprintf("storage:\n  driver: sqlite\n  dsn: %q\nlog:\n  file: %q\n", dsn, filepath.Join(dir, "bond.log"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExport_CSVToStdout(t *testing.T) {
	cfg := seededConfig(t)

	out, err := execute(t, "export", "-c", cfg, "--token", "0xeconomy")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, models.SideBuy, rows[1][4])
	assert.Equal(t, models.SideSell, rows[2][4])
}

func TestExport_SideFilterToFile(t *testing.T) {
	cfg := seededConfig(t)
	dir := t.TempDir()

	out, err := execute(t, "export", "-c", cfg, "--token", "0xeconomy", "--side", "sell",
		"--file-format", "json", "--out", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "trades_sell_0xeconom_"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"trade_count": 1`)
}

func TestExport_DailyReport(t *testing.T) {
	cfg := seededConfig(t)
	dir := t.TempDir()

	out, err := execute(t, "export", "-c", cfg, "--token", "0xeconomy", "--daily", "2026-01-02", "--out", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "daily_report_20260102.json"), strings.TrimSpace(out))

	out, err = execute(t, "export", "-c", cfg, "--token", "0xeconomy", "--daily", "2026-01-03", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no trades on 2026-01-03")
}

func TestExport_Errors(t *testing.T) {
	cfg := seededConfig(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing token", []string{"export", "-c", cfg}, ExitFailure},
		{"bad side", []string{"export", "-c", cfg, "--token", "0xeconomy", "--side", "hold"}, ExitCommandError},
		{"bad file format", []string{"export", "-c", cfg, "--token", "0xeconomy", "--file-format", "xml"}, ExitCommandError},
		{"bad since", []string{"export", "-c", cfg, "--token", "0xeconomy", "--since", "yesterday"}, ExitCommandError},
		{"daily without out", []string{"export", "-c", cfg, "--token", "0xeconomy", "--daily", "2026-01-02"}, ExitCommandError},
		{"no storage", []string{"export", "--token", "0xeconomy"}, ExitCommandError},
		{"nothing matches", []string{"export", "-c", cfg, "--token", "0xother", "--out", t.TempDir()}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestExportOptions_TokenFilter(t *testing.T) {
	one := &ExportOptions{Tokens: []string{"0xeconomy"}, FileFormat: "csv"}
	opts, err := one.exportOptions()
	require.NoError(t, err)
	assert.Equal(t, "0xeconomy", opts.TokenFilter)

	two := &ExportOptions{Tokens: []string{"0xa", "0xb"}, FileFormat: "csv"}
	opts, err = two.exportOptions()
	require.NoError(t, err)
	assert.Empty(t, opts.TokenFilter, "several tokens are already selected by the storage query")
}
