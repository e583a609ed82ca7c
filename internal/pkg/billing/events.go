package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
)

// Events applies verified payment provider webhook events to local state.
type Events struct {
	provider      Provider
	customers     repository.PaymentCustomerRepository
	catalog       repository.CatalogRepository
	subscriptions repository.SubscriptionRepository
	payments      repository.PaymentRepository
	log           *zap.Logger
	now           func() time.Time
}

func NewEvents(provider Provider, repos *repository.Repositories, lg *zap.Logger) *Events {
	return &Events{
		provider:      provider,
		customers:     repos.PaymentCustomer,
		catalog:       repos.Catalog,
		subscriptions: repos.Subscription,
		payments:      repos.Payment,
		log:           lg,
		now:           time.Now,
	}
}

type stripeCheckoutSession struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	Customer        string            `json:"customer"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentIntent   string            `json:"payment_intent"`
	Subscription    string            `json:"subscription"`
	CustomerDetails stripeCustDetails `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
}

type stripeCustDetails struct {
	Email string `json:"email"`
}

type stripePaymentIntent struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	Currency         string            `json:"currency"`
	Customer         string            `json:"customer"`
	Description      string            `json:"description"`
	PaymentMethod    string            `json:"payment_method"`
	ReceiptEmail     string            `json:"receipt_email"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []stripeSubscriptionItem `json:"data"`
	} `json:"items"`
}

type stripeSubscriptionItem struct {
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
	Price              struct {
		ID string `json:"id"`
	} `json:"price"`
}

type stripeInvoice struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Subscription     string `json:"subscription"`
	PaymentIntent    string `json:"payment_intent"`
	AmountPaid       int64  `json:"amount_paid"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	AttemptCount     int64  `json:"attempt_count"`
	Payments         struct {
		Data []struct {
			Payment struct {
				PaymentIntent string `json:"payment_intent"`
			} `json:"payment"`
		} `json:"data"`
	} `json:"payments"`
	Parent struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

type stripeProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

type stripePrice struct {
	ID         string `json:"id"`
	Product    string `json:"product"`
	Active     bool   `json:"active"`
	Currency   string `json:"currency"`
	UnitAmount int64  `json:"unit_amount"`
	Recurring  *struct {
		Interval      string `json:"interval"`
		IntervalCount int64  `json:"interval_count"`
	} `json:"recurring"`
}

// Handle dispatches event by type. Unknown types are acknowledged.
func (e *Events) Handle(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return errors.New("stripe event is empty")
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		return e.checkoutCompleted(ctx, session)
	case "payment_intent.succeeded":
		var pi stripePaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment_intent: %w", err)
		}
		return e.paymentIntentSucceeded(ctx, pi)
	case "payment_intent.payment_failed":
		var pi stripePaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment_intent: %w", err)
		}
		return e.paymentIntentFailed(ctx, pi)
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return e.subscriptionChanged(ctx, sub)
	case "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return e.subscriptionDeleted(ctx, sub)
	case "invoice.paid":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return e.invoicePaid(ctx, inv)
	case "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return e.invoiceFailed(ctx, inv)
	case "product.created", "product.updated":
		var p stripeProduct
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return fmt.Errorf("decode product: %w", err)
		}
		return e.catalog.UpsertProduct(ctx, &models.Product{
			ProviderProductID: p.ID,
			Name:              p.Name,
			Description:       p.Description,
			Active:            p.Active,
		})
	case "price.created", "price.updated":
		var p stripePrice
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return fmt.Errorf("decode price: %w", err)
		}
		return e.priceChanged(ctx, p)
	default:
		e.log.Info("stripe webhook ignored", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))
		return nil
	}
}

func (e *Events) checkoutCompleted(ctx context.Context, s stripeCheckoutSession) error {
	e.log.Info("checkout session completed", zap.String("session_id", s.ID), zap.String("mode", s.Mode))

	switch {
	case s.Mode == ModePayment && s.PaymentIntent != "":
		intentID := s.PaymentIntent
		payment := &models.Payment{
			UserID:                  optionalID(s.Metadata["userId"]),
			ProviderPaymentIntentID: &intentID,
			ProviderCustomerID:      s.Customer,
			Amount:                  s.AmountTotal,
			Currency:                strings.ToLower(s.Currency),
			Status:                  models.PaymentStatusSucceeded,
			ReceiptEmail:            s.CustomerDetails.Email,
			Metadata:                copyMetadata(s.Metadata),
		}
		if err := e.payments.UpsertByIntentID(ctx, payment); err != nil {
			return fmt.Errorf("record checkout payment %s: %w", intentID, err)
		}
	case s.Mode == ModeSubscription && s.Subscription != "":
		// customer.subscription.created carries the state.
		e.log.Info("subscription checkout completed", zap.String("subscription_id", s.Subscription))
	}
	return nil
}

func (e *Events) paymentIntentSucceeded(ctx context.Context, pi stripePaymentIntent) error {
	intentID := pi.ID
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	payment := &models.Payment{
		UserID:                  optionalID(pi.Metadata["userId"]),
		ProviderPaymentIntentID: &intentID,
		ProviderCustomerID:      pi.Customer,
		Amount:                  amount,
		Currency:                strings.ToLower(pi.Currency),
		Status:                  models.PaymentStatusSucceeded,
		PaymentMethod:           pi.PaymentMethod,
		Description:             pi.Description,
		ReceiptEmail:            pi.ReceiptEmail,
		Metadata:                copyMetadata(pi.Metadata),
	}
	if err := e.payments.UpsertByIntentID(ctx, payment); err != nil {
		return fmt.Errorf("record payment %s: %w", pi.ID, err)
	}
	e.log.Info("payment intent succeeded", zap.String("payment_intent_id", pi.ID))
	return nil
}

func (e *Events) paymentIntentFailed(ctx context.Context, pi stripePaymentIntent) error {
	reason := "Payment failed"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Message != "" {
		reason = pi.LastPaymentError.Message
	}
	e.log.Warn("payment intent failed", zap.String("payment_intent_id", pi.ID), zap.String("reason", reason))

	payment, err := e.payments.GetByIntentID(ctx, pi.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load payment %s: %w", pi.ID, err)
	}
	md := copyMetadata(payment.Metadata)
	md["error"] = reason
	if _, err := e.payments.UpdateByIntentID(ctx, pi.ID, map[string]interface{}{
		"status":   models.PaymentStatusFailed,
		"metadata": md,
	}); err != nil {
		return fmt.Errorf("update payment %s: %w", pi.ID, err)
	}
	return nil
}

func (e *Events) subscriptionChanged(ctx context.Context, s stripeSubscription) error {
	userID, err := e.resolveUserID(ctx, s.Metadata, s.Customer)
	if err != nil {
		return err
	}
	if userID == "" {
		e.log.Warn("subscription without known user", zap.String("subscription_id", s.ID), zap.String("customer_id", s.Customer))
		return nil
	}

	start, end := s.CurrentPeriodStart, s.CurrentPeriodEnd
	var priceRef string
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		priceRef = item.Price.ID
		if start == 0 {
			start = item.CurrentPeriodStart
		}
		if end == 0 {
			end = item.CurrentPeriodEnd
		}
	}

	sub := &models.Subscription{
		UserID:                 userID,
		ProviderSubscriptionID: s.ID,
		ProviderCustomerID:     s.Customer,
		Status:                 normalizeStatus(s.Status),
		CurrentPeriodStart:     unixTime(start),
		CurrentPeriodEnd:       unixTime(end),
		CancelAtPeriodEnd:      s.CancelAtPeriodEnd,
		CanceledAt:             unixTime(s.CanceledAt),
	}
	if priceRef != "" {
		price, err := e.catalog.GetPriceByProviderID(ctx, priceRef)
		switch {
		case err == nil:
			sub.PriceID = &price.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			e.log.Warn("subscription price not in catalog", zap.String("price_id", priceRef))
		default:
			return fmt.Errorf("load price %s: %w", priceRef, err)
		}
	}

	if err := e.subscriptions.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription %s: %w", s.ID, err)
	}
	e.log.Info("subscription synced",
		zap.String("subscription_id", s.ID),
		zap.String("user_id", userID),
		zap.String("status", sub.Status),
		zap.Bool("entitled", IsEntitlingStatus(sub.Status)),
	)
	return nil
}

func (e *Events) subscriptionDeleted(ctx context.Context, s stripeSubscription) error {
	canceledAt := unixTime(s.CanceledAt)
	if canceledAt == nil {
		now := e.now().UTC()
		canceledAt = &now
	}
	found, err := e.subscriptions.UpdateByProviderID(ctx, s.ID, map[string]interface{}{
		"status":      models.SubscriptionStatusCanceled,
		"canceled_at": *canceledAt,
	})
	if err != nil {
		return fmt.Errorf("cancel subscription %s: %w", s.ID, err)
	}
	e.log.Info("subscription canceled", zap.String("subscription_id", s.ID), zap.Bool("known", found))
	return nil
}

func (e *Events) invoicePaid(ctx context.Context, inv stripeInvoice) error {
	intentID := inv.paymentIntentID()
	if inv.Customer == "" || intentID == "" {
		e.log.Info("invoice paid without payment intent", zap.String("invoice_id", inv.ID))
		return nil
	}
	userID, err := e.resolveUserID(ctx, nil, inv.Customer)
	if err != nil {
		return err
	}
	if userID == "" {
		e.log.Warn("invoice for unknown customer", zap.String("invoice_id", inv.ID), zap.String("customer_id", inv.Customer))
		return nil
	}

	payment := &models.Payment{
		UserID:                  &userID,
		ProviderPaymentIntentID: &intentID,
		ProviderInvoiceID:       inv.ID,
		ProviderCustomerID:      inv.Customer,
		Amount:                  inv.AmountPaid,
		Currency:                inv.Currency,
		Status:                  models.PaymentStatusSucceeded,
		Description:             inv.Description,
		ReceiptURL:              inv.HostedInvoiceURL,
	}
	if payment.Description == "" {
		payment.Description = "Subscription payment"
	}
	if subRef := inv.subscriptionID(); subRef != "" {
		sub, err := e.subscriptions.GetByProviderID(ctx, subRef)
		switch {
		case err == nil:
			payment.SubscriptionID = &sub.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load subscription %s: %w", subRef, err)
		}
	}

	if err := e.payments.UpsertByIntentID(ctx, payment); err != nil {
		return fmt.Errorf("record invoice payment %s: %w", inv.ID, err)
	}
	e.log.Info("invoice paid", zap.String("invoice_id", inv.ID), zap.String("user_id", userID))
	return nil
}

func (e *Events) invoiceFailed(ctx context.Context, inv stripeInvoice) error {
	e.log.Warn("invoice payment failed", zap.String("invoice_id", inv.ID), zap.Int64("attempt_count", inv.AttemptCount))
	intentID := inv.paymentIntentID()
	if intentID == "" {
		return nil
	}
	if _, err := e.payments.UpdateByIntentID(ctx, intentID, map[string]interface{}{"status": models.PaymentStatusFailed}); err != nil {
		return fmt.Errorf("update payment %s: %w", intentID, err)
	}
	return nil
}

func (e *Events) priceChanged(ctx context.Context, p stripePrice) error {
	product, err := e.catalog.GetProductByProviderID(ctx, p.Product)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Returning an error makes the provider redeliver once the product event has landed.
			return fmt.Errorf("price %s references unknown product %s", p.ID, p.Product)
		}
		return fmt.Errorf("load product %s: %w", p.Product, err)
	}
	price := &models.Price{
		ProductID:       product.ID,
		ProviderPriceID: p.ID,
		Currency:        p.Currency,
		UnitAmount:      p.UnitAmount,
		Active:          p.Active,
	}
	if p.Recurring != nil {
		price.Interval = normalizeInterval(p.Recurring.Interval)
		price.IntervalCount = int(p.Recurring.IntervalCount)
	}
	return e.catalog.UpsertPrice(ctx, price)
}

// resolveUserID finds the internal user for a provider customer: explicit
// metadata first, then the local mapping, then the customer's own metadata.
func (e *Events) resolveUserID(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if id := metadata["userId"]; id != "" {
		return id, nil
	}
	if customerID == "" {
		return "", nil
	}
	pc, err := e.customers.GetByProviderCustomerID(ctx, customerID)
	if err == nil {
		return pc.UserID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("lookup payment customer %s: %w", customerID, err)
	}

	cust, err := e.provider.GetCustomer(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("fetch customer %s: %w", customerID, err)
	}
	return cust.Metadata["userId"], nil
}

func (inv stripeInvoice) paymentIntentID() string {
	if inv.PaymentIntent != "" {
		return inv.PaymentIntent
	}
	for _, p := range inv.Payments.Data {
		if p.Payment.PaymentIntent != "" {
			return p.Payment.PaymentIntent
		}
	}
	return ""
}

func (inv stripeInvoice) subscriptionID() string {
	if inv.Subscription != "" {
		return inv.Subscription
	}
	return inv.Parent.SubscriptionDetails.Subscription
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func copyMetadata(md map[string]string) models.StringMap {
	out := models.StringMap{}
	for k, v := range md {
		out[k] = v
	}
	return out
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
