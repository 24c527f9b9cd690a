// internal/storage/open.go
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/config"
	"github.com/Musing-io/musing-protocol/internal/storage/postgres"
	"github.com/Musing-io/musing-protocol/internal/storage/sqlite"
)

const retryDelay = 500 * time.Millisecond

// Open selects the configured driver, connects with exponential backoff and
// runs migrations.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Storage, error) {
	logger = logger.Named("storage")

	var connect func() (Storage, error)
	switch cfg.Driver {
	case "", config.DriverNone:
		logger.Info("Persistence disabled")
		return Noop{}, nil
	case config.DriverSQLite:
		connect = func() (Storage, error) { return sqlite.NewStorage(cfg.DSN, logger) }
	case config.DriverPostgres:
		connect = func() (Storage, error) { return postgres.NewStorage(cfg.DSN, logger) }
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = retryDelay
	backoffPolicy.MaxInterval = retryDelay * 10

	notify := func(err error, duration time.Duration) {
		logger.Warn("Storage connection failed, retrying",
			zap.String("driver", cfg.Driver),
			zap.Error(err),
			zap.Duration("backoff", duration))
	}

	operation := func() (Storage, error) {
		store, err := connect()
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	}

	tries := uint(cfg.Retries) + 1
	store, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(notify))
	if err != nil {
		logger.Error("Storage unavailable",
			zap.String("driver", cfg.Driver),
			zap.Uint("tries", tries),
			zap.Error(err))
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}

	logger.Info("Storage ready", zap.String("driver", cfg.Driver))
	return store, nil
}
