package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
)

// StripeProvider implements Provider on top of stripe-go.
type StripeProvider struct {
	customers     *customer.Client
	checkout      *checkoutsession.Client
	portal        *portalsession.Client
	paymentIntent *paymentintent.Client
}

// NewStripeProvider builds per-resource clients sharing one backend. An
// APIURL in cfg points the clients at a mock server.
func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(2),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	b := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripeProvider{
		customers:     &customer.Client{B: b, Key: cfg.SecretKey},
		checkout:      &checkoutsession.Client{B: b, Key: cfg.SecretKey},
		portal:        &portalsession.Client{B: b, Key: cfg.SecretKey},
		paymentIntent: &paymentintent.Client{B: b, Key: cfg.SecretKey},
	}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(in.Email),
	}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	params.AddMetadata("userId", in.UserID)
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	c, err := p.customers.New(params)
	if err != nil {
		return "", toProviderError(err)
	}
	return c.ID, nil
}

func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) (*ProviderCustomer, error) {
	c, err := p.customers.Get(customerID, &stripe.CustomerParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, toProviderError(err)
	}
	return &ProviderCustomer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(in.Mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceRef),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	switch {
	case in.CustomerID != "":
		params.Customer = stripe.String(in.CustomerID)
	case in.CustomerEmail != "":
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	if in.AllowPromotionCodes {
		params.AllowPromotionCodes = stripe.Bool(true)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if len(in.SubscriptionMetadata) > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: in.SubscriptionMetadata,
		}
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	s, err := p.checkout.New(params)
	if err != nil {
		return nil, toProviderError(err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	s, err := p.portal.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", toProviderError(err)
	}
	return s.URL, nil
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := p.paymentIntent.New(params)
	if err != nil {
		return nil, toProviderError(err)
	}
	return &PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func toProviderError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &ProviderError{
			Code:       string(se.Code),
			Type:       string(se.Type),
			Message:    se.Msg,
			StatusCode: se.HTTPStatusCode,
			Err:        err,
		}
	}
	return &ProviderError{Message: err.Error(), StatusCode: http.StatusBadGateway, Err: err}
}
