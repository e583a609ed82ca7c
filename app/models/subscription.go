package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusPaused            = "paused"
)

// Subscription mirrors a provider subscription. Rows are written only by
// payment webhooks.
type Subscription struct {
	ID                     string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID                 string     `gorm:"type:char(36);not null;index" json:"userId"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"providerSubscriptionId"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);not null" json:"providerCustomerId"`
	PriceID                *string    `gorm:"type:char(36);index" json:"priceId"`
	Status                 string     `gorm:"type:varchar(32);not null;index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"currentPeriodStart"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"currentPeriodEnd"`
	CancelAtPeriodEnd      bool       `gorm:"not null" json:"cancelAtPeriodEnd"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceledAt"`
	CreatedAt              time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Price *Price `gorm:"foreignKey:PriceID" json:"-"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}

// ActiveSubscriptionStatuses are the statuses that still entitle access or
// are still being retried by the provider.
var ActiveSubscriptionStatuses = []string{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusPastDue,
}
