package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/repository"
)

// SubscriptionView is the subscription summary returned to the account page.
// Price and Product are nil when the subscription's price is not in the
// local catalog.
type SubscriptionView struct {
	ID                     string       `json:"id"`
	ProviderSubscriptionID string       `json:"providerSubscriptionId"`
	Status                 string       `json:"status"`
	CurrentPeriodStart     *time.Time   `json:"currentPeriodStart"`
	CurrentPeriodEnd       *time.Time   `json:"currentPeriodEnd"`
	CancelAtPeriodEnd      bool         `json:"cancelAtPeriodEnd"`
	CanceledAt             *time.Time   `json:"canceledAt"`
	Price                  *PriceView   `json:"price"`
	Product                *ProductView `json:"product"`
}

type PriceView struct {
	ProviderPriceID string `json:"providerPriceId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Interval        string `json:"interval"`
}

type ProductView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Projector reads subscription state for a user.
type Projector struct {
	subscriptions repository.SubscriptionRepository
}

func NewProjector(subscriptions repository.SubscriptionRepository) *Projector {
	return &Projector{subscriptions: subscriptions}
}

// GetActiveSubscription returns the newest subscription that is active,
// trialing or past due, or nil when there is none.
func (p *Projector) GetActiveSubscription(ctx context.Context, userID string) (*SubscriptionView, error) {
	sub, err := p.subscriptions.FindLatestActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load active subscription: %w", err)
	}

	view := &SubscriptionView{
		ID:                     sub.ID,
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		Status:                 sub.Status,
		CurrentPeriodStart:     sub.CurrentPeriodStart,
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		CanceledAt:             sub.CanceledAt,
	}
	if sub.Price != nil {
		view.Price = &PriceView{
			ProviderPriceID: sub.Price.ProviderPriceID,
			Amount:          sub.Price.UnitAmount,
			Currency:        sub.Price.Currency,
			Interval:        sub.Price.Interval,
		}
		if sub.Price.Product != nil {
			view.Product = &ProductView{
				Name:        sub.Price.Product.Name,
				Description: sub.Price.Product.Description,
			}
		}
	}
	return view, nil
}
