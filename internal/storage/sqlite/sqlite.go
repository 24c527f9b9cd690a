// internal/storage/sqlite/sqlite.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Musing-io/musing-protocol/internal/storage/models"
)

// Storage persists engine history in an embedded SQLite database.
type Storage struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewStorage opens (or creates) the database at dsn, e.g. "file:bond.db" or
// "file::memory:?cache=shared".
func NewStorage(dsn string, logger *zap.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if !strings.Contains(dsn, ":memory:") {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	// one writer; the mutex serialises inserts anyway
	db.SetMaxOpenConns(1)

	logger.Named("sqlite").Info("SQLite storage opened", zap.String("dsn", dsn))
	return &Storage{db: db, logger: logger.Named("sqlite")}, nil
}

func (s *Storage) RunMigrations() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS economy_records (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at      INTEGER NOT NULL,
			token           TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			creator         TEXT NOT NULL,
			weight_ppm      INTEGER NOT NULL,
			max_supply      TEXT NOT NULL,
			initial_supply  TEXT NOT NULL,
			initial_reserve TEXT NOT NULL,
			initial_price   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_economy_creator ON economy_records(creator)`,

		`CREATE TABLE IF NOT EXISTS trade_records (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at    INTEGER NOT NULL,
			token         TEXT NOT NULL,
			account       TEXT NOT NULL,
			side          TEXT NOT NULL,
			amount_in     TEXT NOT NULL,
			amount_out    TEXT NOT NULL,
			fee           TEXT NOT NULL,
			fee_recipient TEXT,
			referrer      TEXT,
			reserve_after TEXT NOT NULL,
			supply_after  TEXT NOT NULL,
			price_ppm     TEXT NOT NULL,
			executed_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_token_ts ON trade_records(token, executed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_account ON trade_records(account)`,

		`CREATE TABLE IF NOT EXISTS price_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			token      TEXT NOT NULL,
			reserve    TEXT NOT NULL,
			supply     TEXT NOT NULL,
			price_ppm  TEXT NOT NULL,
			taken_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshot_token_ts ON price_snapshots(token, taken_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(stmt)[:40], err)
		}
	}
	return nil
}

func (s *Storage) SaveEconomy(ctx context.Context, rec *models.EconomyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.CreatedAt = stamp(rec.CreatedAt)
	res, err := s.db.ExecContext(ctx, `INSERT INTO economy_records
		(created_at, token, name, symbol, creator, weight_ppm, max_supply, initial_supply, initial_reserve, initial_price)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.CreatedAt.UnixNano(), rec.Token, rec.Name, rec.Symbol, rec.Creator, rec.WeightPPM,
		rec.MaxSupply, rec.InitialSupply, rec.InitialReserve, rec.InitialPrice,
	)
	if err != nil {
		return err
	}
	return setID(res, &rec.BaseModel)
}

func (s *Storage) GetEconomy(ctx context.Context, token string) (*models.EconomyRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		id, created_at, token, name, symbol, creator, weight_ppm, max_supply, initial_supply, initial_reserve, initial_price
		FROM economy_records WHERE token = ?`, token)

	var (
		rec     models.EconomyRecord
		created int64
	)
	err := row.Scan(&rec.ID, &created, &rec.Token, &rec.Name, &rec.Symbol, &rec.Creator, &rec.WeightPPM,
		&rec.MaxSupply, &rec.InitialSupply, &rec.InitialReserve, &rec.InitialPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

func (s *Storage) SaveTrade(ctx context.Context, rec *models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.CreatedAt = stamp(rec.CreatedAt)
	rec.ExecutedAt = stamp(rec.ExecutedAt)
	res, err := s.db.ExecContext(ctx, `INSERT INTO trade_records
		(created_at, token, account, side, amount_in, amount_out, fee, fee_recipient, referrer,
		 reserve_after, supply_after, price_ppm, executed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.CreatedAt.UnixNano(), rec.Token, rec.Account, rec.Side, rec.AmountIn, rec.AmountOut,
		rec.Fee, rec.FeeRecipient, rec.Referrer, rec.ReserveAfter, rec.SupplyAfter, rec.PricePPM,
		rec.ExecutedAt.UnixNano(),
	)
	if err != nil {
		return err
	}
	return setID(res, &rec.BaseModel)
}

// ListTrades returns the newest trades of an economy first.
func (s *Storage) ListTrades(ctx context.Context, token string, limit, offset int) ([]*models.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, created_at, token, account, side, amount_in, amount_out, fee, fee_recipient, referrer,
		reserve_after, supply_after, price_ppm, executed_at
		FROM trade_records WHERE token = ?
		ORDER BY executed_at DESC, id DESC LIMIT ? OFFSET ?`, token, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TradeRecord
	for rows.Next() {
		var (
			rec               models.TradeRecord
			created, executed int64
			feeTo, referrer   sql.NullString
		)
		if err := rows.Scan(&rec.ID, &created, &rec.Token, &rec.Account, &rec.Side, &rec.AmountIn, &rec.AmountOut,
			&rec.Fee, &feeTo, &referrer, &rec.ReserveAfter, &rec.SupplyAfter, &rec.PricePPM, &executed); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		rec.ExecutedAt = time.Unix(0, executed).UTC()
		rec.FeeRecipient, rec.Referrer = feeTo.String, referrer.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Storage) SavePriceSnapshot(ctx context.Context, snap *models.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.CreatedAt = stamp(snap.CreatedAt)
	snap.TakenAt = stamp(snap.TakenAt)
	res, err := s.db.ExecContext(ctx, `INSERT INTO price_snapshots
		(created_at, token, reserve, supply, price_ppm, taken_at)
		VALUES (?,?,?,?,?,?)`,
		snap.CreatedAt.UnixNano(), snap.Token, snap.Reserve, snap.Supply, snap.PricePPM, snap.TakenAt.UnixNano(),
	)
	if err != nil {
		return err
	}
	return setID(res, &snap.BaseModel)
}

// ListPriceSnapshots returns the newest snapshots of an economy first.
func (s *Storage) ListPriceSnapshots(ctx context.Context, token string, limit int) ([]*models.PriceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, token, reserve, supply, price_ppm, taken_at
		FROM price_snapshots WHERE token = ?
		ORDER BY taken_at DESC, id DESC LIMIT ?`, token, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PriceSnapshot
	for rows.Next() {
		var (
			snap        models.PriceSnapshot
			created, ts int64
		)
		if err := rows.Scan(&snap.ID, &created, &snap.Token, &snap.Reserve, &snap.Supply, &snap.PricePPM, &ts); err != nil {
			return nil, err
		}
		snap.CreatedAt = time.Unix(0, created).UTC()
		snap.TakenAt = time.Unix(0, ts).UTC()
		out = append(out, &snap)
	}
	return out, rows.Err()
}

func (s *Storage) Close() error {
	s.logger.Info("Closing SQLite storage")
	return s.db.Close()
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func setID(res sql.Result, base *models.BaseModel) error {
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	base.ID = uint(id)
	return nil
}
