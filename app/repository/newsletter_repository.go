package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
)

type newsletterRepository struct {
	db *gorm.DB
}

// NewNewsletterRepository creates a new newsletter repository instance
func NewNewsletterRepository(db *gorm.DB) NewsletterRepository {
	return &newsletterRepository{db: db}
}

func (r *newsletterRepository) GetByEmail(ctx context.Context, email string) (*models.NewsletterSubscriber, error) {
	var subscriber models.NewsletterSubscriber
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&subscriber).Error
	if err != nil {
		return nil, err
	}
	return &subscriber, nil
}

func (r *newsletterRepository) Create(ctx context.Context, subscriber *models.NewsletterSubscriber) error {
	return r.db.WithContext(ctx).Create(subscriber).Error
}

func (r *newsletterRepository) Save(ctx context.Context, subscriber *models.NewsletterSubscriber) error {
	return r.db.WithContext(ctx).Save(subscriber).Error
}

func (r *newsletterRepository) Stats(ctx context.Context) (*NewsletterStats, error) {
	db := r.db.WithContext(ctx)
	stats := &NewsletterStats{}
	if err := db.Model(&models.NewsletterSubscriber{}).Where("status = ?", models.NewsletterStatusActive).Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.NewsletterSubscriber{}).Where("status = ?", models.NewsletterStatusUnsubscribed).Count(&stats.Unsubscribed).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.NewsletterSubscriber{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if stats.Total == 0 {
		return stats, nil
	}

	var first, latest models.NewsletterSubscriber
	if err := db.Order("subscribed_at ASC").First(&first).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := db.Order("subscribed_at DESC").First(&latest).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	stats.FirstSubscription = &first.SubscribedAt
	stats.LatestSubscription = &latest.SubscribedAt
	return stats, nil
}
