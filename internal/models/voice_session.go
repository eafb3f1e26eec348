package models

import (
	"time"

	"gorm.io/gorm"
)

// Session record status values
const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
	SessionStatusForced = "forced"
)

// VoiceSessionRecord persisted summary of a voice session. Created when
// the session starts and completed on teardown; the live session state
// itself never lives in the database.
type VoiceSessionRecord struct {
	BaseModel
	SessionID string `json:"sessionId" gorm:"size:64;uniqueIndex;not null"`
	UserID    uint   `json:"userId" gorm:"index;not null"`
	Language  string `json:"language" gorm:"size:16"`

	Status    string     `json:"status" gorm:"size:20;index"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  int        `json:"duration" gorm:"default:0"` // seconds

	TurnCount         int     `json:"turnCount" gorm:"default:0"`
	EmergencyDetected bool    `json:"emergencyDetected" gorm:"default:false"`
	AvgLatencyMs      float64 `json:"avgLatencyMs" gorm:"default:0"`
	AudioQuality      float64 `json:"audioQuality" gorm:"default:0"`
	TranscriptionAcc  float64 `json:"transcriptionAccuracy" gorm:"default:0"`
	ConnStability     float64 `json:"connectionStability" gorm:"default:0"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName table name
func (VoiceSessionRecord) TableName() string {
	return "voice_session_records"
}

// CreateVoiceSessionRecord creates a session record
func CreateVoiceSessionRecord(db *gorm.DB, record *VoiceSessionRecord) error {
	return db.Create(record).Error
}

// GetVoiceSessionRecord gets a record by session id
func GetVoiceSessionRecord(db *gorm.DB, sessionID string) (*VoiceSessionRecord, error) {
	var record VoiceSessionRecord
	if err := db.Where("session_id = ?", sessionID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// SessionSummary final telemetry written on teardown
type SessionSummary struct {
	Status            string
	EndTime           time.Time
	TurnCount         int
	EmergencyDetected bool
	AvgLatencyMs      float64
	AudioQuality      float64
	TranscriptionAcc  float64
	ConnStability     float64
}

// CompleteVoiceSessionRecord writes the final summary for a session
func CompleteVoiceSessionRecord(db *gorm.DB, sessionID string, summary SessionSummary) error {
	return db.Model(&VoiceSessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":             summary.Status,
			"end_time":           summary.EndTime,
			"duration":           int(summary.EndTime.Sub(startTimeOf(db, sessionID)).Seconds()),
			"turn_count":         summary.TurnCount,
			"emergency_detected": summary.EmergencyDetected,
			"avg_latency_ms":     summary.AvgLatencyMs,
			"audio_quality":      summary.AudioQuality,
			"transcription_acc":  summary.TranscriptionAcc,
			"conn_stability":     summary.ConnStability,
		}).Error
}

func startTimeOf(db *gorm.DB, sessionID string) time.Time {
	var record VoiceSessionRecord
	if err := db.Select("start_time").Where("session_id = ?", sessionID).First(&record).Error; err != nil {
		return time.Now()
	}
	return record.StartTime
}

// GetUserSessionHistory returns recent session summaries for a user
func GetUserSessionHistory(db *gorm.DB, userID uint, limit int) ([]VoiceSessionRecord, error) {
	var records []VoiceSessionRecord
	query := db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}
