package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNoEmail      = errors.New("external user has no email address")
)

// EmailAddress is one address on an identity-provider user.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// ExternalUser is the user object carried by identity lifecycle events.
type ExternalUser struct {
	ID                    string                 `json:"id"`
	EmailAddresses        []EmailAddress         `json:"email_addresses"`
	PrimaryEmailAddressID string                 `json:"primary_email_address_id"`
	FirstName             string                 `json:"first_name"`
	LastName              string                 `json:"last_name"`
	ImageURL              string                 `json:"image_url"`
	PublicMetadata        map[string]interface{} `json:"public_metadata"`
}

// PrimaryEmail returns the address marked primary, falling back to the first.
func (u ExternalUser) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if u.PrimaryEmailAddressID != "" && e.ID == u.PrimaryEmailAddressID {
			return strings.TrimSpace(e.EmailAddress)
		}
	}
	if len(u.EmailAddresses) > 0 {
		return strings.TrimSpace(u.EmailAddresses[0].EmailAddress)
	}
	return ""
}

// Directory mirrors identity-provider users into the local users table.
type Directory struct {
	users repository.UserRepository
	log   *zap.Logger
}

func NewDirectory(users repository.UserRepository, lg *zap.Logger) *Directory {
	return &Directory{users: users, log: lg}
}

// UpsertFromLifecycleEvent creates or updates the user for a created or
// updated event. Replaying the same event leaves a single row.
func (d *Directory) UpsertFromLifecycleEvent(ctx context.Context, ext ExternalUser) (*models.User, error) {
	if strings.TrimSpace(ext.ID) == "" {
		return nil, errors.New("external user has no id")
	}
	email := ext.PrimaryEmail()
	if email == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEmail, ext.ID)
	}

	user := &models.User{
		ExternalID: ext.ID,
		Email:      email,
		FirstName:  ext.FirstName,
		LastName:   ext.LastName,
		ImageURL:   ext.ImageURL,
		Metadata:   flattenMetadata(ext.PublicMetadata),
	}
	if err := d.users.UpsertByExternalID(ctx, user); err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", ext.ID, err)
	}
	d.log.Info("user synced", zap.String("user_id", user.ID), zap.String("external_id", ext.ID))
	return user, nil
}

// DeleteByExternalID removes the user. Deleting an unknown user is not an error.
func (d *Directory) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	deleted, err := d.users.DeleteByExternalID(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("delete user %s: %w", externalID, err)
	}
	if deleted {
		d.log.Info("user deleted", zap.String("external_id", externalID))
	} else {
		d.log.Info("user delete ignored, not found", zap.String("external_id", externalID))
	}
	return deleted, nil
}

// FindByExternalID returns nil, nil when no user matches.
func (d *Directory) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, err := d.users.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user %s: %w", externalID, err)
	}
	return user, nil
}

// EnsureFromPrincipal returns the user behind an authenticated request. If
// the lifecycle webhook has not arrived yet and the token carries an email
// claim, the user is created from the claims.
func (d *Directory) EnsureFromPrincipal(ctx context.Context, p *Principal) (*models.User, error) {
	if p == nil {
		return nil, ErrUserNotFound
	}
	user, err := d.FindByExternalID(ctx, p.PrincipalID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	email := p.StringClaim("email")
	if email == "" {
		return nil, ErrUserNotFound
	}
	return d.UpsertFromLifecycleEvent(ctx, ExternalUser{
		ID:             p.PrincipalID,
		EmailAddresses: []EmailAddress{{EmailAddress: email}},
		FirstName:      p.StringClaim("given_name"),
		LastName:       p.StringClaim("family_name"),
		ImageURL:       p.StringClaim("picture"),
	})
}

func flattenMetadata(in map[string]interface{}) models.StringMap {
	out := models.StringMap{}
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
