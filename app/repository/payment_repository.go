package repository

import (
	"context"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("provider_payment_intent_id = ?", intentID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateByIntentID(ctx context.Context, intentID string, updates map[string]interface{}) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("provider_payment_intent_id = ?", intentID).
		Updates(updates)
	return tx.RowsAffected > 0, tx.Error
}

// UpsertByIntentID inserts the payment or, when the intent is already
// recorded, sets its status and whichever provider fields are non-empty.
func (r *paymentRepository) UpsertByIntentID(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_payment_intent_id"}},
		DoUpdates: clause.AssignmentColumns(settledColumns(payment)),
	}).Create(payment).Error
}

func settledColumns(p *models.Payment) []string {
	cols := []string{"status"}
	if p.UserID != nil {
		cols = append(cols, "user_id")
	}
	if p.SubscriptionID != nil {
		cols = append(cols, "subscription_id")
	}
	optional := []struct {
		column string
		value  string
	}{
		{"provider_customer_id", p.ProviderCustomerID},
		{"provider_invoice_id", p.ProviderInvoiceID},
		{"payment_method", p.PaymentMethod},
		{"receipt_email", p.ReceiptEmail},
		{"receipt_url", p.ReceiptURL},
	}
	for _, o := range optional {
		if o.value != "" {
			cols = append(cols, o.column)
		}
	}
	return cols
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
