// internal/storage/models/base.go
package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by every driver for a missing record.
var ErrNotFound = errors.New("record not found")

// BaseModel заменяет gorm.Model для большего контроля. Records are append-only,
// so there is no UpdatedAt or soft delete.
type BaseModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}
