// internal/storage/models/snapshot.go
package models

import "time"

// PriceSnapshot is the periodic state of one economy.
type PriceSnapshot struct {
	BaseModel
	Token    string    `gorm:"index;not null;type:varchar(66)"`
	Reserve  string    `gorm:"not null;type:numeric(78,0)"`
	Supply   string    `gorm:"not null;type:numeric(78,0)"`
	PricePPM string    `gorm:"not null;type:numeric(78,0)"`
	TakenAt  time.Time `gorm:"index;not null"`
}
