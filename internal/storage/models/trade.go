// internal/storage/models/trade.go
package models

import "time"

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeRecord is one committed buy or sell.
type TradeRecord struct {
	BaseModel
	Token        string    `gorm:"index;not null;type:varchar(66)"`
	Account      string    `gorm:"index;not null;type:varchar(66)"`
	Side         string    `gorm:"not null;type:varchar(4)"`
	AmountIn     string    `gorm:"not null;type:numeric(78,0)"`
	AmountOut    string    `gorm:"not null;type:numeric(78,0)"`
	Fee          string    `gorm:"not null;type:numeric(78,0)"`
	FeeRecipient string    `gorm:"type:varchar(66)"`
	Referrer     string    `gorm:"type:varchar(66)"`
	ReserveAfter string    `gorm:"not null;type:numeric(78,0)"`
	SupplyAfter  string    `gorm:"not null;type:numeric(78,0)"`
	PricePPM     string    `gorm:"not null;type:numeric(78,0)"`
	ExecutedAt   time.Time `gorm:"index;not null"`
}
