package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ContactStatusNew      = "new"
	ContactStatusRead     = "read"
	ContactStatusReplied  = "replied"
	ContactStatusArchived = "archived"

	DefaultSource = "website"
)

// ContactSubmission is a message captured by the public contact form.
// UserID is nulled when the linked user is deleted.
type ContactSubmission struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      *string   `gorm:"type:char(36);index" json:"userId"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Email       string    `gorm:"type:varchar(191);not null;index" json:"email"`
	Company     string    `gorm:"type:varchar(100)" json:"company,omitempty"`
	Phone       string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	ServiceType string    `gorm:"type:varchar(50)" json:"serviceType,omitempty"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Status      string    `gorm:"type:varchar(16);not null;index" json:"status"`
	Source      string    `gorm:"type:varchar(50);not null" json:"source"`
	Metadata    StringMap `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
}

func (cs *ContactSubmission) BeforeCreate(tx *gorm.DB) error {
	if cs.ID == "" {
		cs.ID = newID()
	}
	if cs.Status == "" {
		cs.Status = ContactStatusNew
	}
	if cs.Source == "" {
		cs.Source = DefaultSource
	}
	if cs.Metadata == nil {
		cs.Metadata = StringMap{}
	}
	return nil
}

// IsValidContactStatus reports whether status is one of the triage states.
func IsValidContactStatus(status string) bool {
	switch status {
	case ContactStatusNew, ContactStatusRead, ContactStatusReplied, ContactStatusArchived:
		return true
	default:
		return false
	}
}
