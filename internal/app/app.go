// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Musing-io/musing-protocol/internal/api"
	"github.com/Musing-io/musing-protocol/internal/bond"
	"github.com/Musing-io/musing-protocol/internal/config"
	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/scheduler"
	"github.com/Musing-io/musing-protocol/internal/storage"
	"github.com/Musing-io/musing-protocol/internal/token"
	"github.com/Musing-io/musing-protocol/internal/types"
	"github.com/Musing-io/musing-protocol/internal/utils/metrics"
)

// ReserveAddress is the address of the genesis reserve asset.
const ReserveAddress types.Address = "0xmusing"

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 15 * time.Second

// App wires the engine with its reserve asset, event bus, storage, metrics,
// scheduler and HTTP API.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	reserve *token.Fungible
	factory *token.Factory
	engine  *bond.Engine
	bus     *events.Bus
	metrics *metrics.Collector
}

// New builds the in-memory part of the application: the reserve asset with
// its genesis supply minted to the treasury, and an uninitialised engine.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	genesis, err := types.ParseUnits(cfg.GenesisSupply, types.Decimals)
	if err != nil {
		return nil, fmt.Errorf("genesis supply: %w", err)
	}
	fees, err := bond.FeePolicyByName(cfg.FeePolicy)
	if err != nil {
		return nil, err
	}

	treasury, engineAddr := types.Address(cfg.Treasury), types.Address(cfg.EngineAddress)
	a := &App{
		cfg:     cfg,
		logger:  logger,
		reserve: token.NewFungible("Musing", "MSC", ReserveAddress, treasury),
		factory: token.NewFactory(engineAddr, logger),
		bus:     events.NewBus(logger, cfg.EventBuffer),
	}
	if err := a.reserve.Mint(treasury, treasury, genesis); err != nil {
		return nil, fmt.Errorf("mint genesis supply: %w", err)
	}

	opts := []bond.Option{
		bond.WithLogger(logger),
		bond.WithFeePolicy(fees),
		bond.WithPublisher(a.bus),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewCollector()
		opts = append(opts, bond.WithMetrics(a.metrics))
	}
	a.engine = bond.New(bond.Config{Address: engineAddr, WeightPPM: cfg.ConnectorWeightPPM},
		a.reserve.Holder(engineAddr), a.factory, opts...)

	logger.Info("Application assembled",
		zap.String("engine", engineAddr.String()),
		zap.String("treasury", treasury.String()),
		zap.String("genesis", types.FormatUnits(genesis, types.Decimals).String()),
		zap.Uint32("weight_ppm", a.engine.WeightPPM()),
		zap.Bool("metrics", cfg.Metrics.Enabled))
	return a, nil
}

func (a *App) Engine() *bond.Engine     { return a.engine }
func (a *App) Reserve() *token.Fungible { return a.reserve }
func (a *App) Factory() *token.Factory  { return a.factory }
func (a *App) Bus() *events.Bus         { return a.bus }

// Metrics returns nil when metrics are disabled.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Run opens storage, starts the scheduler and serves the API on ln until ctx
// is cancelled or the server fails, then shuts everything down.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	shutdown := NewShutdownHandler(a.logger)

	store, err := storage.Open(ctx, a.cfg.Storage, a.logger)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("open storage: %w", err)
	}
	shutdown.AddCloser("storage", store.Close)

	subs := storage.Subscribe(a.bus, store, a.logger)
	shutdown.Add("event_bus", func(ctx context.Context) error {
		err := a.bus.Shutdown(ctx)
		for _, s := range subs {
			s.Unsubscribe()
		}
		return err
	})

	var (
		recorder       bond.MetricsRecorder
		metricsHandler http.Handler
	)
	if a.metrics != nil {
		recorder, metricsHandler = a.metrics, a.metrics.Handler()
	}
	sched, err := scheduler.New(a.cfg.SnapshotCron, a.engine, a.bus, recorder, a.logger)
	if err != nil {
		_ = ln.Close()
		return errors.Join(err, shutdown.Shutdown(ctx))
	}
	sched.Start()
	shutdown.Add("scheduler", sched.Stop)

	handlers := api.NewHandlers(a.engine, a.reserve, a.factory, store, a.logger).WithEvents(a.bus)
	server := api.NewServer(api.DefaultServerConfig(a.cfg.HTTP.Addr), handlers, metricsHandler, a.logger)
	shutdown.Add("http", server.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return shutdown.Shutdown(sctx)
	})
	return g.Wait()
}
