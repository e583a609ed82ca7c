package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/ManuelReschke/Payline/app/models"
)

func stripeEvent(t *testing.T, eventType string, object interface{}) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_" + eventType, Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func seedCatalog(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "product.created", map[string]interface{}{
		"id": "prod_1", "name": "Growth", "description": "Monthly plan", "active": true,
	})))
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "price.created", map[string]interface{}{
		"id": "price_1", "product": "prod_1", "active": true, "currency": "usd", "unit_amount": 4900,
		"recurring": map[string]interface{}{"interval": "month", "interval_count": 1},
	})))
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "user_sub")
	seedCatalog(t, f)

	customerID, err := f.svc.Customers.ResolveCustomer(ctx, u)
	require.NoError(t, err)

	start := time.Now().Add(-time.Hour).Unix()
	end := time.Now().Add(30 * 24 * time.Hour).Unix()
	sub := map[string]interface{}{
		"id":       "sub_1",
		"customer": customerID,
		"status":   "active",
		"items": map[string]interface{}{"data": []interface{}{
			map[string]interface{}{
				"current_period_start": start,
				"current_period_end":   end,
				"price":                map[string]interface{}{"id": "price_1"},
			},
		}},
	}
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "customer.subscription.created", sub)))

	view, err := f.svc.Projector.GetActiveSubscription(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "active", view.Status)
	require.NotNil(t, view.Price)
	assert.Equal(t, "price_1", view.Price.ProviderPriceID)
	assert.Equal(t, int64(4900), view.Price.Amount)
	assert.Equal(t, "month", view.Price.Interval)
	require.NotNil(t, view.Product)
	assert.Equal(t, "Growth", view.Product.Name)
	require.NotNil(t, view.CurrentPeriodEnd)
	assert.Equal(t, end, view.CurrentPeriodEnd.Unix())

	sub["cancel_at_period_end"] = true
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "customer.subscription.updated", sub)))
	view, err = f.svc.Projector.GetActiveSubscription(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, view.CancelAtPeriodEnd)

	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "customer.subscription.deleted", sub)))
	view, err = f.svc.Projector.GetActiveSubscription(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, view)

	stored, err := f.repos.Subscription.GetByProviderID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, stored.Status)
	assert.NotNil(t, stored.CanceledAt)
}

func TestSubscriptionUserFromProviderCustomerMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "user_meta")

	// Customer exists at the provider but was never mapped locally.
	customerID, err := f.provider.CreateCustomer(ctx, CustomerInput{UserID: u.ID, Email: u.Email})
	require.NoError(t, err)

	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "customer.subscription.created", map[string]interface{}{
		"id": "sub_meta", "customer": customerID, "status": "trialing",
	})))

	stored, err := f.repos.Subscription.GetByProviderID(ctx, "sub_meta")
	require.NoError(t, err)
	assert.Equal(t, u.ID, stored.UserID)
	assert.Equal(t, models.SubscriptionStatusTrialing, stored.Status)
	assert.Nil(t, stored.PriceID)

	view, err := f.svc.Projector.GetActiveSubscription(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Nil(t, view.Price)
	assert.Nil(t, view.Product)
	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":null`)
	assert.Contains(t, string(raw), `"product":null`)
}

func TestPaymentIntentEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.Checkout.CreatePaymentIntent(ctx, PaymentIntentRequest{AmountMinorUnits: 1000}, nil)
	require.NoError(t, err)
	failed, err := f.svc.Checkout.CreatePaymentIntent(ctx, PaymentIntentRequest{AmountMinorUnits: 2000}, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "payment_intent.succeeded", map[string]interface{}{
		"id": ok.ID, "payment_method": "pm_card", "receipt_email": "buyer@example.com",
	})))
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "payment_intent.payment_failed", map[string]interface{}{
		"id": failed.ID, "last_payment_error": map[string]interface{}{"message": "Your card was declined."},
	})))

	p1, err := f.repos.Payment.GetByIntentID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, p1.Status)
	assert.Equal(t, "pm_card", p1.PaymentMethod)
	assert.Equal(t, "buyer@example.com", p1.ReceiptEmail)

	p2, err := f.repos.Payment.GetByIntentID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, p2.Status)
	assert.Equal(t, "Your card was declined.", p2.Metadata["error"])
	assert.Equal(t, "", p2.Metadata["userId"])
}

func TestCheckoutPaymentRecordedFromWebhooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "user_buyer")

	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "checkout.session.completed", map[string]interface{}{
		"id":               "cs_pay_1",
		"mode":             "payment",
		"customer":         "cus_buyer",
		"payment_intent":   "pi_checkout_1",
		"amount_total":     3900,
		"currency":         "EUR",
		"customer_details": map[string]interface{}{"email": "buyer@example.com"},
		"metadata":         map[string]interface{}{"userId": u.ID},
	})))
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "payment_intent.succeeded", map[string]interface{}{
		"id":              "pi_checkout_1",
		"amount":          3900,
		"amount_received": 3900,
		"currency":        "eur",
		"customer":        "cus_buyer",
		"payment_method":  "pm_card",
		"metadata":        map[string]interface{}{"userId": u.ID},
	})))

	count, err := f.repos.Payment.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	p, err := f.repos.Payment.GetByIntentID(ctx, "pi_checkout_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, p.Status)
	assert.Equal(t, int64(3900), p.Amount)
	assert.Equal(t, "eur", p.Currency)
	assert.Equal(t, "cus_buyer", p.ProviderCustomerID)
	assert.Equal(t, "buyer@example.com", p.ReceiptEmail)
	assert.Equal(t, "pm_card", p.PaymentMethod)
}

func TestPaymentIntentSucceededWithoutPendingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "user_direct")

	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "payment_intent.succeeded", map[string]interface{}{
		"id":            "pi_direct_1",
		"amount":        1200,
		"currency":      "usd",
		"description":   "Top-up",
		"receipt_email": "direct@example.com",
		"metadata":      map[string]interface{}{"userId": u.ID},
	})))

	list, err := f.repos.Payment.ListByUser(ctx, u.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1200), list[0].Amount)
	assert.Equal(t, "Top-up", list[0].Description)
	assert.Equal(t, "direct@example.com", list[0].ReceiptEmail)
}

func TestInvoicePaidRecordsPaymentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "user_inv")
	customerID, err := f.svc.Customers.ResolveCustomer(ctx, u)
	require.NoError(t, err)

	invoice := map[string]interface{}{
		"id":                 "in_1",
		"customer":           customerID,
		"payment_intent":     "pi_inv_1",
		"amount_paid":        4900,
		"currency":           "usd",
		"hosted_invoice_url": "https://invoice.example.com/in_1",
	}
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "invoice.paid", invoice)))
	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "invoice.paid", invoice)))

	count, err := f.repos.Payment.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	p, err := f.repos.Payment.GetByIntentID(ctx, "pi_inv_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, p.Status)
	assert.Equal(t, "Subscription payment", p.Description)

	require.NoError(t, f.svc.Events.Handle(ctx, stripeEvent(t, "invoice.payment_failed", invoice)))
	p, err = f.repos.Payment.GetByIntentID(ctx, "pi_inv_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)
}

func TestPriceForUnknownProductFails(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Events.Handle(context.Background(), stripeEvent(t, "price.created", map[string]interface{}{
		"id": "price_orphan", "product": "prod_missing", "currency": "usd", "unit_amount": 100,
	}))
	assert.Error(t, err)
}

func TestUnhandledEventIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Events.Handle(context.Background(), stripeEvent(t, "charge.refunded", map[string]interface{}{"id": "ch_1"})))
}
