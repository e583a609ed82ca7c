package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
)

type recordedRequest struct {
	Path           string
	IdempotencyKey string
	Form           map[string][]string
}

func newStripeBackend(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*StripeProvider, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		seen = append(seen, recordedRequest{Path: r.URL.Path, IdempotencyKey: r.Header.Get("Idempotency-Key"), Form: r.PostForm})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewStripeProvider(config.StripeConfig{SecretKey: "sk_test_123", APIURL: srv.URL}), &seen
}

func TestStripeProviderCreateCustomerSendsIdempotencyKey(t *testing.T) {
	p, seen := newStripeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cus_123","object":"customer","email":"a@example.com"}`))
	})

	id, err := p.CreateCustomer(context.Background(), CustomerInput{
		UserID:         "u-1",
		Email:          "a@example.com",
		Name:           "Ada",
		IdempotencyKey: CustomerIdempotencyKey("u-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "/v1/customers", req.Path)
	assert.Equal(t, "customer-create-u-1", req.IdempotencyKey)
	assert.Equal(t, []string{"u-1"}, req.Form["metadata[userId]"])
}

func TestStripeProviderCheckoutSession(t *testing.T) {
	p, seen := newStripeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_1"}`))
	})

	s, err := p.CreateCheckoutSession(context.Background(), CheckoutInput{
		Mode:                 ModeSubscription,
		PriceRef:             "price_1",
		SuccessURL:           "https://app.example.com/ok",
		CancelURL:            "https://app.example.com/cancel",
		CustomerEmail:        "anon@example.com",
		AllowPromotionCodes:  true,
		Metadata:             map[string]string{"userId": ""},
		SubscriptionMetadata: map[string]string{"userId": "u-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", s.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", s.URL)

	form := (*seen)[0].Form
	assert.Equal(t, "/v1/checkout/sessions", (*seen)[0].Path)
	assert.Equal(t, []string{"subscription"}, form["mode"])
	assert.Equal(t, []string{"price_1"}, form["line_items[0][price]"])
	assert.Equal(t, []string{"anon@example.com"}, form["customer_email"])
	assert.Equal(t, []string{"true"}, form["allow_promotion_codes"])
	assert.Equal(t, []string{"u-9"}, form["subscription_data[metadata][userId]"])
}

func TestStripeProviderPaymentIntentSetsReceiptEmail(t *testing.T) {
	p, seen := newStripeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","client_secret":"pi_1_secret"}`))
	})

	pi, err := p.CreatePaymentIntent(context.Background(), PaymentIntentInput{
		Amount:       2500,
		Currency:     "eur",
		CustomerID:   "cus_1",
		ReceiptEmail: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", pi.ClientSecret)

	form := (*seen)[0].Form
	assert.Equal(t, "/v1/payment_intents", (*seen)[0].Path)
	assert.Equal(t, []string{"ada@example.com"}, form["receipt_email"])
	assert.Equal(t, []string{"2500"}, form["amount"])
}

func TestStripeProviderMapsErrors(t *testing.T) {
	p, _ := newStripeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such price: 'price_x'"}}`))
	})

	_, err := p.CreateCheckoutSession(context.Background(), CheckoutInput{
		Mode:       ModePayment,
		PriceRef:   "price_x",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
	})
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "resource_missing", pErr.Code)
	assert.Equal(t, http.StatusBadRequest, pErr.StatusCode)
	assert.True(t, pErr.ClientFault())
}
