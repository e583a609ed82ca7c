package billing

import (
	"context"
	"fmt"
)

const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// Provider is the subset of the payment provider API the service uses.
type Provider interface {
	CreateCustomer(ctx context.Context, in CustomerInput) (string, error)
	GetCustomer(ctx context.Context, customerID string) (*ProviderCustomer, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error)
}

type CustomerInput struct {
	UserID         string
	Email          string
	Name           string
	IdempotencyKey string
}

type ProviderCustomer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

type CheckoutInput struct {
	Mode                 string
	PriceRef             string
	SuccessURL           string
	CancelURL            string
	CustomerID           string
	CustomerEmail        string
	AllowPromotionCodes  bool
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
	IdempotencyKey       string
}

type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

type PaymentIntentInput struct {
	Amount         int64
	Currency       string
	CustomerID     string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

type PaymentIntent struct {
	ID           string `json:"paymentIntentId"`
	ClientSecret string `json:"clientSecret"`
}

// ProviderError is a failure reported by the payment provider.
type ProviderError struct {
	Code       string
	Type       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider error (%s): %s", e.Code, e.Message)
	}
	return "payment provider error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ClientFault reports whether the provider rejected the request itself
// rather than failing on its side.
func (e *ProviderError) ClientFault() bool {
	return e.Type == "invalid_request_error" || e.Type == "card_error"
}
