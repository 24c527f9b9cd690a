package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Musing-io/musing-protocol/internal/config"
	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/types"
)

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	store, err := Open(ctx, config.StorageConfig{Driver: config.DriverNone}, logger)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, store)

	_, err = Open(ctx, config.StorageConfig{Driver: "mongo"}, logger)
	assert.Error(t, err)

	store, err = Open(ctx, config.StorageConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "bond.db"),
	}, logger)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestOpen_GivesUpAfterRetries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := Open(ctx, config.StorageConfig{
		Driver:  config.DriverPostgres,
		DSN:     "postgres://bond@127.0.0.1:1/bond?sslmode=disable&connect_timeout=1",
		Retries: 1,
	}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestSubscribe_PersistsEvents(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	store, err := Open(ctx, config.StorageConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "bond.db"),
	}, logger)
	require.NoError(t, err)
	defer store.Close()

	bus := events.NewBus(logger, 8)
	defer bus.Shutdown(ctx)
	subs := Subscribe(bus, store, logger)
	require.Len(t, subs, 4)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, bus.PublishSync(ctx, events.EconomyCreatedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EconomyCreated, EventTime: now},
		Token:     "0xabc",
		Name:      "Alice Economy",
		Symbol:    "ALC",
		Creator:   "0xa11ce",
		WeightPPM: 20000,
		MaxSupply: types.MustParseUnits("1000000"),
		Reserve:   types.MustParseUnits("1"),
		Supply:    types.MustParseUnits("10000"),
		PricePPM:  types.NewAmount(5000),
	}))
	require.NoError(t, bus.PublishSync(ctx, events.TradeEvent{
		BaseEvent:    events.BaseEvent{EventType: events.TokensBought, EventTime: now.Add(time.Second)},
		Token:        "0xabc",
		Account:      "0xa11ce",
		AmountIn:     types.MustParseUnits("1"),
		AmountOut:    types.MustParseUnits("139.594797900291386901"),
		Fee:          types.Zero(),
		ReserveAfter: types.MustParseUnits("2"),
		SupplyAfter:  types.MustParseUnits("10139.594797900291386901"),
		PricePPM:     types.NewAmount(9862),
	}))
	require.NoError(t, bus.PublishSync(ctx, events.SnapshotEvent{
		BaseEvent: events.BaseEvent{EventType: events.SnapshotTaken, EventTime: now.Add(time.Minute)},
		Token:     "0xabc",
		Reserve:   types.MustParseUnits("2"),
		Supply:    types.MustParseUnits("10139.594797900291386901"),
		PricePPM:  types.NewAmount(9862),
	}))

	econ, err := store.GetEconomy(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "5000", econ.InitialPrice)
	assert.Equal(t, "1000000000000000000", econ.InitialReserve)

	trades, err := store.ListTrades(ctx, "0xabc", 10, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "buy", trades[0].Side)
	assert.Equal(t, "139594797900291386901", trades[0].AmountOut)
	assert.Equal(t, now.Add(time.Second), trades[0].ExecutedAt)

	snaps, err := store.ListPriceSnapshots(ctx, "0xabc", 5)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "9862", snaps[0].PricePPM)

	for _, s := range subs {
		s.Unsubscribe()
	}
	assert.Empty(t, bus.Stats().Handlers)
}
