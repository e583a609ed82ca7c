package billing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fakeProvider records calls and returns the same customer for a repeated
// idempotency key, like the real provider does.
type fakeProvider struct {
	mu              sync.Mutex
	customers       map[string]*ProviderCustomer
	byIdempotency   map[string]string
	customerCalls   atomic.Int32
	checkoutCalls   atomic.Int32
	intentCalls     atomic.Int32
	lastCheckout    CheckoutInput
	lastIntent      PaymentIntentInput
	lastPortal      string
	createDelay     time.Duration
	err             error
	customerCounter int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers:     map[string]*ProviderCustomer{},
		byIdempotency: map[string]string{},
	}
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	f.customerCalls.Add(1)
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byIdempotency[in.IdempotencyKey]; ok && in.IdempotencyKey != "" {
		return id, nil
	}
	f.customerCounter++
	id := fmt.Sprintf("cus_%d", f.customerCounter)
	f.customers[id] = &ProviderCustomer{ID: id, Email: in.Email, Metadata: map[string]string{"userId": in.UserID}}
	if in.IdempotencyKey != "" {
		f.byIdempotency[in.IdempotencyKey] = id
	}
	return id, nil
}

func (f *fakeProvider) GetCustomer(ctx context.Context, customerID string) (*ProviderCustomer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.customers[customerID]; ok {
		return c, nil
	}
	return nil, &ProviderError{Code: "resource_missing", Type: "invalid_request_error", Message: "No such customer", StatusCode: 404}
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	f.checkoutCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.lastCheckout = in
	f.mu.Unlock()
	return &CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example.com/c/cs_test_1"}, nil
}

func (f *fakeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	f.lastPortal = returnURL
	f.mu.Unlock()
	return "https://billing.example.com/p/" + customerID, nil
}

func (f *fakeProvider) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error) {
	n := f.intentCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.lastIntent = in
	f.mu.Unlock()
	id := fmt.Sprintf("pi_test_%d", n)
	return &PaymentIntent{ID: id, ClientSecret: id + "_secret_x"}, nil
}
