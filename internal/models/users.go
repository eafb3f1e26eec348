package models

import (
	"errors"

	"gorm.io/gorm"
)

// User account able to open voice sessions. The REST signup/login surface
// lives in a separate service; this engine only resolves bearer tokens.
type User struct {
	BaseModel
	Email       string `json:"email" gorm:"size:128;uniqueIndex;not null"`
	DisplayName string `json:"displayName" gorm:"size:128"`
	ApiToken    string `json:"-" gorm:"size:128;index"`
	Language    string `json:"language" gorm:"size:16;default:en"`
	Enabled     bool   `json:"enabled" gorm:"default:true"`
}

// TableName table name
func (User) TableName() string {
	return "users"
}

// ErrInvalidToken returned when a bearer token resolves to no enabled user
var ErrInvalidToken = errors.New("invalid or expired token")

// GetUserByToken resolves a bearer token to an enabled user
func GetUserByToken(db *gorm.DB, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var user User
	err := db.Where("api_token = ? AND enabled = ?", token, true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a user
func CreateUser(db *gorm.DB, user *User) error {
	return db.Create(user).Error
}
