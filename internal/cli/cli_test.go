package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "bondctl", cmd.Use)

	for _, name := range []string{"serve", "simulate", "quote", "export"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "false", verbose.DefValue)
}

func TestQuote_BuyJSON(t *testing.T) {
	out, err := execute(t, "quote", "buy", "--supply", "10000", "--reserve", "1", "--amount", "1", "--format", "json")
	require.NoError(t, err)

	var res QuoteResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "139.594797900291386901", res.AmountOut)
	assert.Equal(t, "10139.594797900291386901", res.SupplyAfter)
	assert.Equal(t, "2", res.ReserveAfter)
	assert.Equal(t, "5000", res.PricePPMBefore)
	assert.Equal(t, "9862", res.PricePPMAfter)
}

func TestQuote_SellText(t *testing.T) {
	out, err := execute(t, "quote", "sell",
		"--supply", "10139.594797900291386901", "--reserve", "2", "--amount", "139.594797900291386901")
	require.NoError(t, err)
	assert.Contains(t, out, "Quote: sell")
	assert.Contains(t, out, "0.999999999999999999")
}

func TestQuote_Errors(t *testing.T) {
	_, err := execute(t, "quote", "buy", "--supply", "10000", "--reserve", "1")
	assert.Error(t, err, "amount is required")

	_, err = execute(t, "quote", "buy", "--supply", "10000", "--reserve", "1", "--amount", "1", "--weight", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "quote", "buy", "--supply", "x", "--reserve", "1", "--amount", "1", "--format", "xml")
	assert.Error(t, err)
}

func TestSimulate_Reference(t *testing.T) {
	out, err := execute(t, "simulate")
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: bancor-reference")
	assert.Contains(t, out, "SMU")
	assert.Contains(t, out, "9862")
	assert.Contains(t, out, "PASS (12 steps, 2 events)")
}

func TestSimulate_FailingScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: wrong
accounts: {alice: "1"}
steps:
  - {action: init}
  - {action: approve, account: alice, amount: "1"}
  - {action: create, account: alice, economy: a, name: A, symbol: A, max_supply: "1000000", reserve: "1", initial_supply: "10000"}
  - {action: expect, economy: a, price_ppm: "1"}
`), 0o644))

	out, err := execute(t, "simulate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var res SimulateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Pass)
	assert.Len(t, res.Steps, 3)
	assert.Contains(t, res.Error, "price_ppm is 5000")
}

func TestSimulate_MissingFile(t *testing.T) {
	_, err := execute(t, "simulate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
}
