// internal/storage/models/economy.go
package models

// EconomyRecord is the persisted creation record of an economy. Amounts are
// base-unit decimal strings.
type EconomyRecord struct {
	BaseModel
	Token          string `gorm:"uniqueIndex;not null;type:varchar(66)"`
	Name           string `gorm:"not null;type:varchar(100)"`
	Symbol         string `gorm:"not null;type:varchar(20)"`
	Creator        string `gorm:"index;not null;type:varchar(66)"`
	WeightPPM      uint32 `gorm:"not null"`
	MaxSupply      string `gorm:"not null;type:numeric(78,0)"`
	InitialSupply  string `gorm:"not null;type:numeric(78,0)"`
	InitialReserve string `gorm:"not null;type:numeric(78,0)"`
	InitialPrice   string `gorm:"not null;type:numeric(78,0)"`
}
