package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel common columns for persisted records
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM hook: set timestamps when the driver does not
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	return nil
}

// Migrate creates or updates all tables used by the voice engine
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&VoiceSessionRecord{},
		&EmergencyRecord{},
	)
}
