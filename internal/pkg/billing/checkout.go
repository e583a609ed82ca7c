package billing

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
)

const (
	MinAmountMinorUnits = 50
	MaxAmountMinorUnits = 99_999_999
	DefaultCurrency     = "usd"

	maxMetadataKeys     = 20
	maxMetadataKeyLen   = 40
	maxMetadataValueLen = 500
	maxDescriptionLen   = 500
)

// checkoutSessionPlaceholder is replaced by the provider with the session id
// when it redirects to the success URL.
const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

var currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)

// CheckoutRequest is the body of a checkout session request.
type CheckoutRequest struct {
	PriceRef       string            `json:"priceRef"`
	Mode           string            `json:"mode"`
	SuccessURL     string            `json:"successUrl"`
	CancelURL      string            `json:"cancelUrl"`
	CustomerEmail  string            `json:"customerEmail"`
	Metadata       map[string]string `json:"metadata"`
	IdempotencyKey string            `json:"-"`
}

// PaymentIntentRequest is the body of a payment intent request.
type PaymentIntentRequest struct {
	AmountMinorUnits int64             `json:"amountMinorUnits"`
	Currency         string            `json:"currency"`
	Description      string            `json:"description"`
	Metadata         map[string]string `json:"metadata"`
	IdempotencyKey   string            `json:"-"`
}

// Checkout creates hosted checkout sessions and payment intents.
type Checkout struct {
	provider Provider
	binder   *CustomerBinder
	payments repository.PaymentRepository
	log      *zap.Logger
}

func NewCheckout(provider Provider, binder *CustomerBinder, payments repository.PaymentRepository, lg *zap.Logger) *Checkout {
	return &Checkout{provider: provider, binder: binder, payments: payments, log: lg}
}

// CreateCheckoutSession validates req and opens a provider checkout session.
// user may be nil for anonymous checkout.
func (c *Checkout) CreateCheckoutSession(ctx context.Context, req CheckoutRequest, user *models.User) (*CheckoutSession, error) {
	mode := strings.TrimSpace(req.Mode)
	if mode == "" {
		mode = ModeSubscription
	}

	vErr := &apierror.ValidationError{}
	if mode != ModePayment && mode != ModeSubscription {
		vErr.Add("mode", "must be one of payment, subscription")
	}
	if strings.TrimSpace(req.PriceRef) == "" {
		vErr.Add("priceRef", "is required")
	}
	validateRedirectURL(vErr, "successUrl", req.SuccessURL)
	validateRedirectURL(vErr, "cancelUrl", req.CancelURL)
	validateMetadata(vErr, req.Metadata)
	if vErr.HasErrors() {
		return nil, vErr
	}

	in := CheckoutInput{
		Mode:                mode,
		PriceRef:            strings.TrimSpace(req.PriceRef),
		SuccessURL:          withSessionID(req.SuccessURL),
		CancelURL:           req.CancelURL,
		AllowPromotionCodes: mode == ModeSubscription,
		IdempotencyKey:      req.IdempotencyKey,
	}

	userID := ""
	if user != nil {
		customerID, err := c.binder.ResolveCustomer(ctx, user)
		if err != nil {
			return nil, err
		}
		userID = user.ID
		in.CustomerID = customerID
	} else if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		in.CustomerEmail = email
	}

	in.Metadata = withUserID(req.Metadata, userID)
	if mode == ModeSubscription {
		in.SubscriptionMetadata = withUserID(req.Metadata, userID)
	}

	session, err := c.provider.CreateCheckoutSession(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	c.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("mode", mode),
		zap.String("user_id", userID),
	)
	return session, nil
}

// CreatePaymentIntent validates req, creates a provider payment intent and
// records a pending payment.
func (c *Checkout) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest, user *models.User) (*PaymentIntent, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	vErr := &apierror.ValidationError{}
	if req.AmountMinorUnits < MinAmountMinorUnits || req.AmountMinorUnits > MaxAmountMinorUnits {
		vErr.Add("amountMinorUnits", fmt.Sprintf("must be between %d and %d", MinAmountMinorUnits, MaxAmountMinorUnits))
	}
	if !currencyPattern.MatchString(currency) {
		vErr.Add("currency", "must be a 3-letter ISO currency code")
	}
	if len(req.Description) > maxDescriptionLen {
		vErr.Add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLen))
	}
	validateMetadata(vErr, req.Metadata)
	if vErr.HasErrors() {
		return nil, vErr
	}

	in := PaymentIntentInput{
		Amount:         req.AmountMinorUnits,
		Currency:       currency,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	}

	userID := ""
	if user != nil {
		customerID, err := c.binder.ResolveCustomer(ctx, user)
		if err != nil {
			return nil, err
		}
		in.CustomerID = customerID
		in.ReceiptEmail = user.Email
		userID = user.ID
	}
	in.Metadata = withUserID(req.Metadata, userID)

	intent, err := c.provider.CreatePaymentIntent(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	intentID := intent.ID
	payment := &models.Payment{
		ProviderPaymentIntentID: &intentID,
		ProviderCustomerID:      in.CustomerID,
		Amount:                  in.Amount,
		Currency:                currency,
		Status:                  models.PaymentStatusPending,
		Description:             in.Description,
		ReceiptEmail:            in.ReceiptEmail,
		Metadata:                models.StringMap(in.Metadata),
	}
	if userID != "" {
		payment.UserID = &userID
	}
	if err := c.payments.Create(ctx, payment); err != nil {
		// The intent exists at the provider; webhooks will still settle it.
		c.log.Error("record pending payment", zap.String("payment_intent_id", intent.ID), zap.Error(err))
	}
	return intent, nil
}

func validateRedirectURL(vErr *apierror.ValidationError, field, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		vErr.Add(field, "is required")
		return
	}
	if !isAbsoluteHTTPURL(raw) {
		vErr.Add(field, "must be an absolute http(s) URL")
	}
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateMetadata(vErr *apierror.ValidationError, md map[string]string) {
	if len(md) > maxMetadataKeys {
		vErr.Add("metadata", fmt.Sprintf("must have at most %d keys", maxMetadataKeys))
		return
	}
	for k, v := range md {
		if k == "" || len(k) > maxMetadataKeyLen {
			vErr.Add("metadata."+k, fmt.Sprintf("key must be 1-%d characters", maxMetadataKeyLen))
			continue
		}
		if len(v) > maxMetadataValueLen {
			vErr.Add("metadata."+k, fmt.Sprintf("value must be at most %d characters", maxMetadataValueLen))
		}
	}
}

func withUserID(md map[string]string, userID string) map[string]string {
	out := make(map[string]string, len(md)+1)
	for k, v := range md {
		out[k] = v
	}
	out["userId"] = userID
	return out
}

// withSessionID appends session_id={CHECKOUT_SESSION_ID} to the success URL
// ahead of any fragment. The braces stay unescaped so the provider can
// substitute them.
func withSessionID(successURL string) string {
	if strings.Contains(successURL, checkoutSessionPlaceholder) {
		return successURL
	}
	base, fragment, hasFragment := strings.Cut(successURL, "#")
	sep := "?"
	switch {
	case strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&"):
		sep = ""
	case strings.Contains(base, "?"):
		sep = "&"
	}
	out := base + sep + "session_id=" + checkoutSessionPlaceholder
	if hasFragment {
		out += "#" + fragment
	}
	return out
}
