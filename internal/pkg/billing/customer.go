package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
)

// CustomerBinder maps internal users to exactly one provider customer.
type CustomerBinder struct {
	provider  Provider
	customers repository.PaymentCustomerRepository
	log       *zap.Logger
	group     singleflight.Group
}

func NewCustomerBinder(provider Provider, customers repository.PaymentCustomerRepository, lg *zap.Logger) *CustomerBinder {
	return &CustomerBinder{provider: provider, customers: customers, log: lg}
}

// CustomerIdempotencyKey is sent with customer creation so that retries from
// any instance return the same provider customer.
func CustomerIdempotencyKey(userID string) string {
	return "customer-create-" + userID
}

// ResolveCustomer returns the provider customer id for user, creating the
// customer on first use.
func (b *CustomerBinder) ResolveCustomer(ctx context.Context, user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("resolve customer: user is required")
	}

	existing, err := b.customers.GetByUserID(ctx, user.ID)
	if err == nil {
		return existing.ProviderCustomerID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("lookup payment customer: %w", err)
	}

	v, err, _ := b.group.Do(user.ID, func() (interface{}, error) {
		return b.create(ctx, user)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *CustomerBinder) create(ctx context.Context, user *models.User) (string, error) {
	// Another call may have committed while this one waited to enter the group.
	if existing, err := b.customers.GetByUserID(ctx, user.ID); err == nil {
		return existing.ProviderCustomerID, nil
	}

	providerID, err := b.provider.CreateCustomer(ctx, CustomerInput{
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.DisplayName(),
		IdempotencyKey: CustomerIdempotencyKey(user.ID),
	})
	if err != nil {
		return "", fmt.Errorf("create provider customer: %w", err)
	}

	created, stored, err := b.customers.CreateIfNotExists(ctx, &models.PaymentCustomer{
		UserID:             user.ID,
		ProviderCustomerID: providerID,
		Email:              user.Email,
		Name:               user.DisplayName(),
	})
	if err != nil {
		return "", fmt.Errorf("persist payment customer: %w", err)
	}

	if !created && stored.ProviderCustomerID != providerID {
		b.log.Warn("orphaned provider customer",
			zap.String("user_id", user.ID),
			zap.String("orphan_customer_id", providerID),
			zap.String("customer_id", stored.ProviderCustomerID),
		)
	}
	if created {
		b.log.Info("payment customer created", zap.String("user_id", user.ID), zap.String("customer_id", providerID))
	}
	return stored.ProviderCustomerID, nil
}
