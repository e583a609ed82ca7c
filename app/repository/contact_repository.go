package repository

import (
	"context"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
)

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new contact submission repository instance
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, submission *models.ContactSubmission) error {
	return r.db.WithContext(ctx).Omit("User").Create(submission).Error
}

// GetByID retrieves a submission together with its linked user, if any
func (r *contactRepository) GetByID(ctx context.Context, id string) (*models.ContactSubmission, error) {
	var submission models.ContactSubmission
	err := r.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *contactRepository) List(ctx context.Context, filter ContactFilter) ([]models.ContactSubmission, error) {
	order := "created_at DESC"
	if filter.Ascending {
		order = "created_at ASC"
	}
	query := r.db.WithContext(ctx).Preload("User").Order(order).Offset(filter.Offset).Limit(filter.Limit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var submissions []models.ContactSubmission
	err := query.Find(&submissions).Error
	return submissions, err
}

func (r *contactRepository) Count(ctx context.Context, status string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.ContactSubmission{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *contactRepository) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.ContactSubmission{}).Where("id = ?", id).Update("status", status)
	return tx.RowsAffected > 0, tx.Error
}
