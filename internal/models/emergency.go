package models

import (
	"gorm.io/gorm"
)

// Emergency signal sources
const (
	EmergencySourceClassifier = "classifier"
	EmergencySourceEngine     = "engine"
)

// EmergencyRecord persisted emergency linked to a session. At most one
// per session; the session state machine enforces that before anything
// reaches this table.
type EmergencyRecord struct {
	BaseModel
	SessionID  string  `json:"sessionId" gorm:"size:64;index;not null"`
	UserID     uint    `json:"userId" gorm:"index;not null"`
	Type       string  `json:"type" gorm:"size:32"`
	Confidence float64 `json:"confidence"`
	Urgency    string  `json:"urgencyLevel" gorm:"size:16"`
	Source     string  `json:"source" gorm:"size:16"` // classifier or engine
	Location   string  `json:"location" gorm:"size:128"`
	Alerted    bool    `json:"alerted" gorm:"default:false"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName table name
func (EmergencyRecord) TableName() string {
	return "emergency_records"
}

// CreateEmergencyRecord creates an emergency record
func CreateEmergencyRecord(db *gorm.DB, record *EmergencyRecord) error {
	return db.Create(record).Error
}

// MarkEmergencyAlerted records that contact alerting succeeded
func MarkEmergencyAlerted(db *gorm.DB, id uint) error {
	return db.Model(&EmergencyRecord{}).Where("id = ?", id).Update("alerted", true).Error
}

// GetEmergenciesBySession returns emergencies for a session
func GetEmergenciesBySession(db *gorm.DB, sessionID string) ([]EmergencyRecord, error) {
	var records []EmergencyRecord
	err := db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&records).Error
	return records, err
}
