// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/Musing-io/musing-protocol/internal/storage/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = models.ErrNotFound

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Экономики
	SaveEconomy(ctx context.Context, rec *models.EconomyRecord) error
	GetEconomy(ctx context.Context, token string) (*models.EconomyRecord, error)

	// Сделки
	SaveTrade(ctx context.Context, rec *models.TradeRecord) error
	ListTrades(ctx context.Context, token string, limit, offset int) ([]*models.TradeRecord, error)

	// Снимки цен
	SavePriceSnapshot(ctx context.Context, snap *models.PriceSnapshot) error
	ListPriceSnapshots(ctx context.Context, token string, limit int) ([]*models.PriceSnapshot, error)

	RunMigrations() error
	Close() error
}

// Noop discards everything. It backs storage.driver=none.
type Noop struct{}

func (Noop) SaveEconomy(context.Context, *models.EconomyRecord) error { return nil }
func (Noop) GetEconomy(context.Context, string) (*models.EconomyRecord, error) {
	return nil, ErrNotFound
}
func (Noop) SaveTrade(context.Context, *models.TradeRecord) error { return nil }
func (Noop) ListTrades(context.Context, string, int, int) ([]*models.TradeRecord, error) {
	return nil, nil
}
func (Noop) SavePriceSnapshot(context.Context, *models.PriceSnapshot) error { return nil }
func (Noop) ListPriceSnapshots(context.Context, string, int) ([]*models.PriceSnapshot, error) {
	return nil, nil
}
func (Noop) RunMigrations() error { return nil }
func (Noop) Close() error         { return nil }
