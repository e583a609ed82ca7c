package billing

import (
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/repository"
)

// Service groups the billing components that share one provider and one set
// of repositories.
type Service struct {
	Customers *CustomerBinder
	Checkout  *Checkout
	Portal    *Portal
	Projector *Projector
	Events    *Events
}

// NewService wires the billing components from an injected provider.
func NewService(provider Provider, repos *repository.Repositories, appURL string, lg *zap.Logger) *Service {
	binder := NewCustomerBinder(provider, repos.PaymentCustomer, lg)
	return &Service{
		Customers: binder,
		Checkout:  NewCheckout(provider, binder, repos.Payment, lg),
		Portal:    NewPortal(provider, repos.PaymentCustomer, appURL),
		Projector: NewProjector(repos.Subscription),
		Events:    NewEvents(provider, repos, lg),
	}
}
