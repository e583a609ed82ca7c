package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// User is the internal record mirrored from the identity provider.
type User struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	ExternalID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"externalId" validate:"required,max=191"`
	Email      string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"email" validate:"required,email,max=191"`
	FirstName  string    `gorm:"type:varchar(150)" json:"firstName" validate:"max=150"`
	LastName   string    `gorm:"type:varchar(150)" json:"lastName" validate:"max=150"`
	ImageURL   string    `gorm:"type:varchar(512)" json:"imageUrl" validate:"max=512"`
	Metadata   StringMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Preferences *UserPreferences `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"preferences,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Metadata == nil {
		u.Metadata = StringMap{}
	}
	return nil
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// DisplayName joins first and last name, falling back to the email address.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}
