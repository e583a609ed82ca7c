package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment records one-time and subscription charges.
type Payment struct {
	ID                      string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID                  *string   `gorm:"type:char(36);index" json:"userId"`
	ProviderPaymentIntentID *string   `gorm:"type:varchar(191);uniqueIndex" json:"providerPaymentIntentId"`
	ProviderInvoiceID       string    `gorm:"type:varchar(191)" json:"providerInvoiceId,omitempty"`
	ProviderCustomerID      string    `gorm:"type:varchar(191)" json:"providerCustomerId,omitempty"`
	SubscriptionID          *string   `gorm:"type:char(36);index" json:"subscriptionId"`
	Amount                  int64     `gorm:"not null" json:"amount"`
	Currency                string    `gorm:"type:varchar(3);not null" json:"currency"`
	Status                  string    `gorm:"type:varchar(32);not null;index" json:"status"`
	PaymentMethod           string    `gorm:"type:varchar(191)" json:"paymentMethod,omitempty"`
	Description             string    `gorm:"type:varchar(500)" json:"description,omitempty"`
	ReceiptEmail            string    `gorm:"type:varchar(191)" json:"receiptEmail,omitempty"`
	ReceiptURL              string    `gorm:"type:varchar(512)" json:"receiptUrl,omitempty"`
	Metadata                StringMap `gorm:"type:json" json:"metadata"`
	CreatedAt               time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Metadata == nil {
		p.Metadata = StringMap{}
	}
	return nil
}
