// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Musing-io/musing-protocol/internal/storage/models"
)

const migrationLock = 7301

// Storage persists engine history in PostgreSQL through GORM.
type Storage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage connects to dsn. It does not migrate; call RunMigrations.
func NewStorage(dsn string, zapLogger *zap.Logger) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Storage{
		db:     db,
		logger: zapLogger.Named("postgres"),
	}, nil
}

// RunMigrations migrates the schema under an advisory lock so that several
// instances can start together.
func (p *Storage) RunMigrations() error {
	var lockObtained bool
	if err := p.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLock).Scan(&lockObtained).Error; err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return errors.New("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(?)", migrationLock)

	if err := p.db.AutoMigrate(
		&models.EconomyRecord{},
		&models.TradeRecord{},
		&models.PriceSnapshot{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	p.logger.Info("Migrations applied")
	return nil
}

func (p *Storage) SaveEconomy(ctx context.Context, rec *models.EconomyRecord) error {
	return p.db.WithContext(ctx).Create(rec).Error
}

func (p *Storage) GetEconomy(ctx context.Context, token string) (*models.EconomyRecord, error) {
	var rec models.EconomyRecord
	err := p.db.WithContext(ctx).Where("token = ?", token).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *Storage) SaveTrade(ctx context.Context, rec *models.TradeRecord) error {
	return p.db.WithContext(ctx).Create(rec).Error
}

// ListTrades returns the newest trades of an economy first.
func (p *Storage) ListTrades(ctx context.Context, token string, limit, offset int) ([]*models.TradeRecord, error) {
	var recs []*models.TradeRecord
	err := p.db.WithContext(ctx).
		Where("token = ?", token).
		Order("executed_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	return recs, err
}

func (p *Storage) SavePriceSnapshot(ctx context.Context, snap *models.PriceSnapshot) error {
	return p.db.WithContext(ctx).Create(snap).Error
}

// ListPriceSnapshots returns the newest snapshots of an economy first.
func (p *Storage) ListPriceSnapshots(ctx context.Context, token string, limit int) ([]*models.PriceSnapshot, error) {
	var snaps []*models.PriceSnapshot
	err := p.db.WithContext(ctx).
		Where("token = ?", token).
		Order("taken_at desc, id desc").
		Limit(limit).
		Find(&snaps).Error
	return snaps, err
}

func (p *Storage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
