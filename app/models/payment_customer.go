package models

import (
	"time"

	"gorm.io/gorm"
)

const PaymentProviderStripe = "stripe"

// PaymentCustomer binds an internal user to exactly one customer at the
// payment provider. ProviderCustomerID is never reassigned once committed.
type PaymentCustomer struct {
	ID                 string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID             string    `gorm:"type:char(36);not null;uniqueIndex" json:"userId"`
	ProviderCustomerID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"providerCustomerId"`
	Email              string    `gorm:"type:varchar(191);not null" json:"email"`
	Name               string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (pc *PaymentCustomer) BeforeCreate(tx *gorm.DB) error {
	if pc.ID == "" {
		pc.ID = newID()
	}
	return nil
}
