package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Musing-io/musing-protocol/internal/storage/models"
)

func newStore(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage("file:"+filepath.Join(t.TempDir(), "bond.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.RunMigrations())
	require.NoError(t, s.RunMigrations(), "migrations are idempotent")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_Economy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec := &models.EconomyRecord{
		Token:          "0xabc",
		Name:           "Alice Economy",
		Symbol:         "ALC",
		Creator:        "0xa11ce",
		WeightPPM:      20000,
		MaxSupply:      "1000000000000000000000000",
		InitialSupply:  "10000000000000000000000",
		InitialReserve: "1000000000000000000",
		InitialPrice:   "5000",
	}
	require.NoError(t, s.SaveEconomy(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := s.GetEconomy(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, rec.MaxSupply, got.MaxSupply)
	assert.Equal(t, uint32(20000), got.WeightPPM)
	assert.Equal(t, "ALC", got.Symbol)

	assert.Error(t, s.SaveEconomy(ctx, &models.EconomyRecord{Token: "0xabc", MaxSupply: "1", InitialSupply: "1", InitialReserve: "1", InitialPrice: "1"}))

	_, err = s.GetEconomy(ctx, "0xmissing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_TradesNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, side := range []string{models.SideBuy, models.SideBuy, models.SideSell} {
		require.NoError(t, s.SaveTrade(ctx, &models.TradeRecord{
			Token:        "0xabc",
			Account:      "0xa11ce",
			Side:         side,
			AmountIn:     "1000000000000000000",
			AmountOut:    "139594797900291386901",
			Fee:          "0",
			ReserveAfter: "2000000000000000000",
			SupplyAfter:  "10139594797900291386901",
			PricePPM:     "9862",
			ExecutedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.SaveTrade(ctx, &models.TradeRecord{Token: "0xother", Account: "0xb0b", Side: models.SideBuy,
		AmountIn: "1", AmountOut: "1", Fee: "0", ReserveAfter: "1", SupplyAfter: "1", PricePPM: "1"}))

	trades, err := s.ListTrades(ctx, "0xabc", 10, 0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, models.SideSell, trades[0].Side)
	assert.Equal(t, base.Add(2*time.Minute), trades[0].ExecutedAt)
	assert.Equal(t, "139594797900291386901", trades[1].AmountOut)
	assert.Empty(t, trades[1].Referrer)

	page, err := s.ListTrades(ctx, "0xabc", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, base, page[0].ExecutedAt)
}

func TestStorage_PriceSnapshots(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	for i, price := range []string{"5000", "9862", "9900"} {
		require.NoError(t, s.SavePriceSnapshot(ctx, &models.PriceSnapshot{
			Token:    "0xabc",
			Reserve:  "1",
			Supply:   "1",
			PricePPM: price,
			TakenAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	snaps, err := s.ListPriceSnapshots(ctx, "0xabc", 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "9900", snaps[0].PricePPM)
	assert.Equal(t, "9862", snaps[1].PricePPM)
}

func TestNewStorage_InMemory(t *testing.T) {
	s, err := NewStorage("file::memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.RunMigrations())

	trades, err := s.ListTrades(context.Background(), "0xabc", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
