package repository

import (
	"context"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	var stored models.Subscription
	if err := db.Where("provider_subscription_id = ?", sub.ProviderSubscriptionID).First(&stored).Error; err != nil {
		return err
	}
	*sub = stored
	return nil
}

func (r *subscriptionRepository) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("provider_subscription_id = ?", providerSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) UpdateByProviderID(ctx context.Context, providerSubscriptionID string, updates map[string]interface{}) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("provider_subscription_id = ?", providerSubscriptionID).
		Updates(updates)
	return tx.RowsAffected > 0, tx.Error
}

func (r *subscriptionRepository) FindLatestActiveByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Price.Product").
		Where("user_id = ? AND status IN ?", userID, models.ActiveSubscriptionStatuses).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
