package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NewsletterStatusActive       = "active"
	NewsletterStatusUnsubscribed = "unsubscribed"
)

type NewsletterSubscriber struct {
	ID             string     `gorm:"type:char(36);primaryKey" json:"id"`
	Email          string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"email"`
	Name           string     `gorm:"type:varchar(100)" json:"name,omitempty"`
	Source         string     `gorm:"type:varchar(50);not null" json:"source"`
	Metadata       StringMap  `gorm:"type:json" json:"metadata"`
	Status         string     `gorm:"type:varchar(16);not null;index" json:"status"`
	SubscribedAt   time.Time  `gorm:"autoCreateTime;index" json:"subscribedAt"`
	UnsubscribedAt *time.Time `gorm:"type:timestamp;default:null" json:"unsubscribedAt"`
}

func (n *NewsletterSubscriber) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.Status == "" {
		n.Status = NewsletterStatusActive
	}
	if n.Source == "" {
		n.Source = DefaultSource
	}
	if n.Metadata == nil {
		n.Metadata = StringMap{}
	}
	return nil
}
