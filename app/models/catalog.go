package models

import (
	"time"

	"gorm.io/gorm"
)

// Product mirrors a provider product.
type Product struct {
	ID                string    `gorm:"type:char(36);primaryKey" json:"id"`
	ProviderProductID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"providerProductId"`
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`
	Description       string    `gorm:"type:text" json:"description"`
	Active            bool      `gorm:"not null" json:"active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

// Price mirrors a provider price. UnitAmount is in minor currency units and
// Interval is empty for one-time prices.
type Price struct {
	ID              string    `gorm:"type:char(36);primaryKey" json:"id"`
	ProductID       string    `gorm:"type:char(36);not null;index" json:"productId"`
	ProviderPriceID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"providerPriceId"`
	Currency        string    `gorm:"type:varchar(3);not null" json:"currency"`
	UnitAmount      int64     `gorm:"not null" json:"unitAmount"`
	Interval        string    `gorm:"type:varchar(16)" json:"interval"`
	IntervalCount   int       `gorm:"not null" json:"intervalCount"`
	Active          bool      `gorm:"not null" json:"active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
}

func (p *Price) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}
