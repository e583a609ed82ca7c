package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"

	DefaultLanguage = "en"
)

// UserPreferences stores per-user UI and notification settings.
type UserPreferences struct {
	ID                 string    `gorm:"type:char(36);primaryKey" json:"-"`
	UserID             string    `gorm:"type:char(36);not null;uniqueIndex" json:"-"`
	Theme              string    `gorm:"type:varchar(16);not null" json:"theme"`
	Language           string    `gorm:"type:varchar(16);not null" json:"language"`
	EmailNotifications bool      `gorm:"not null" json:"emailNotifications"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (p *UserPreferences) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

// DefaultPreferences returns the preferences a user has before saving any.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{
		UserID:             userID,
		Theme:              ThemeSystem,
		Language:           DefaultLanguage,
		EmailNotifications: true,
	}
}
