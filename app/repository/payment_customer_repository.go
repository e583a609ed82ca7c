package repository

import (
	"context"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentCustomerRepository struct {
	db *gorm.DB
}

// NewPaymentCustomerRepository creates a new payment customer repository instance
func NewPaymentCustomerRepository(db *gorm.DB) PaymentCustomerRepository {
	return &paymentCustomerRepository{db: db}
}

func (r *paymentCustomerRepository) GetByUserID(ctx context.Context, userID string) (*models.PaymentCustomer, error) {
	var pc models.PaymentCustomer
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pc).Error
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *paymentCustomerRepository) GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*models.PaymentCustomer, error) {
	var pc models.PaymentCustomer
	err := r.db.WithContext(ctx).Where("provider_customer_id = ?", providerCustomerID).First(&pc).Error
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// CreateIfNotExists never overwrites a committed mapping: a conflicting insert
// is dropped and the stored row is returned instead.
func (r *paymentCustomerRepository) CreateIfNotExists(ctx context.Context, pc *models.PaymentCustomer) (bool, *models.PaymentCustomer, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{DoNothing: true}).Create(pc)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentCustomer
	if err := db.Where("user_id = ?", pc.UserID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}
