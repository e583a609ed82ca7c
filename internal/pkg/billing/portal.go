package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
)

// ErrNoCustomer is returned when a user has never been bound to a provider customer.
var ErrNoCustomer = errors.New("no payment customer for user")

// Portal opens provider-hosted billing portal sessions.
type Portal struct {
	provider         Provider
	customers        repository.PaymentCustomerRepository
	defaultReturnURL string
}

func NewPortal(provider Provider, customers repository.PaymentCustomerRepository, appURL string) *Portal {
	return &Portal{
		provider:         provider,
		customers:        customers,
		defaultReturnURL: strings.TrimRight(appURL, "/") + "/account",
	}
}

// CreatePortalSession returns the portal URL for user's provider customer.
func (p *Portal) CreatePortalSession(ctx context.Context, user *models.User, returnURL string) (string, error) {
	returnURL = strings.TrimSpace(returnURL)
	if returnURL == "" {
		returnURL = p.defaultReturnURL
	} else if !isAbsoluteHTTPURL(returnURL) {
		return "", apierror.Validation("returnUrl", "must be an absolute http(s) URL")
	}

	if user == nil {
		return "", ErrNoCustomer
	}
	pc, err := p.customers.GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoCustomer
		}
		return "", fmt.Errorf("lookup payment customer: %w", err)
	}

	url, err := p.provider.CreatePortalSession(ctx, pc.ProviderCustomerID, returnURL)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return url, nil
}
