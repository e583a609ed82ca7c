package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// ErrEmailTaken is returned when updating a user would give it an email that
// another user row still holds.
var ErrEmailTaken = errors.New("email belongs to another user")

// UpsertByExternalID inserts the user or, when the external id already
// exists, updates the mutable profile fields. A new external id whose email
// is already stored adopts that row, keeping its id and billing history.
func (r *userRepository) UpsertByExternalID(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		err := tx.Where("email = ? AND external_id <> ?", user.Email, user.ExternalID).First(&owner).Error
		switch {
		case err == nil:
			var existing int64
			if err := tx.Model(&models.User{}).Where("external_id = ?", user.ExternalID).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return ErrEmailTaken
			}
			if err := tx.Model(&owner).Updates(map[string]interface{}{
				"external_id": user.ExternalID,
				"first_name":  user.FirstName,
				"last_name":   user.LastName,
				"image_url":   user.ImageURL,
				"metadata":    user.Metadata,
			}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"email",
					"first_name",
					"last_name",
					"image_url",
					"metadata",
					"updated_at",
				}),
			}).Create(user).Error; err != nil {
				return err
			}
		default:
			return err
		}

		var stored models.User
		if err := tx.Where("external_id = ?", user.ExternalID).First(&stored).Error; err != nil {
			return err
		}
		*user = stored
		return nil
	})
}

// GetByID retrieves a user by internal id
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByExternalID retrieves a user by identity provider id
func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteByExternalID removes the user and its dependent rows. Historical rows
// (contact submissions, payments) keep their data with user_id set to NULL.
func (r *userRepository) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("external_id = ?", externalID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		var subscriptionIDs []string
		if err := tx.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Pluck("id", &subscriptionIDs).Error; err != nil {
			return err
		}
		if len(subscriptionIDs) > 0 {
			if err := tx.Model(&models.Payment{}).
				Where("subscription_id IN ?", subscriptionIDs).
				Update("subscription_id", gorm.Expr("NULL")).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Payment{}).Where("user_id = ?", user.ID).Update("user_id", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ContactSubmission{}).Where("user_id = ?", user.ID).Update("user_id", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		for _, dependent := range []interface{}{&models.Subscription{}, &models.PaymentCustomer{}, &models.UserPreferences{}} {
			if err := tx.Where("user_id = ?", user.ID).Delete(dependent).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&user).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// List retrieves users with preferences, newest first
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Preload("Preferences").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// GetPreferences returns stored preferences or the defaults when none exist
func (r *userRepository) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			defaults := models.DefaultPreferences(userID)
			return &defaults, nil
		}
		return nil, err
	}
	return &prefs, nil
}

// UpsertPreferences writes all preference fields for a user
func (r *userRepository) UpsertPreferences(ctx context.Context, prefs *models.UserPreferences) error {
	db := r.db.WithContext(ctx)
	// The row is keyed by user_id; a caller-held primary key must not collide.
	prefs.ID = ""
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"theme",
			"language",
			"email_notifications",
			"updated_at",
		}),
	}).Create(prefs).Error; err != nil {
		return err
	}

	var stored models.UserPreferences
	if err := db.Where("user_id = ?", prefs.UserID).First(&stored).Error; err != nil {
		return err
	}
	*prefs = stored
	return nil
}
