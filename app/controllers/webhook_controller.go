package controllers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
	"github.com/ManuelReschke/Payline/internal/pkg/webhooks"
)

// HeaderStripeSignature carries the payment provider signature.
const HeaderStripeSignature = "Stripe-Signature"

// IdentityEventHandler is satisfied by *identity.Directory.
type IdentityEventHandler interface {
	HandleEvent(ctx context.Context, evt identity.Event) error
}

// PaymentEventHandler is satisfied by *billing.Events.
type PaymentEventHandler interface {
	Handle(ctx context.Context, event *stripe.Event) error
}

// WebhookController verifies, records and dispatches provider webhooks.
type WebhookController struct {
	recorder            *webhooks.Recorder
	identityVerifier    *identity.WebhookVerifier
	identityEvents      IdentityEventHandler
	stripeWebhookSecret string
	paymentEvents       PaymentEventHandler
	log                 *zap.Logger
}

// NewWebhookController builds the controller. A nil identity verifier or an
// empty Stripe secret leaves the matching endpoint unconfigured.
func NewWebhookController(
	recorder *webhooks.Recorder,
	identityVerifier *identity.WebhookVerifier,
	identityEvents IdentityEventHandler,
	stripeWebhookSecret string,
	paymentEvents PaymentEventHandler,
	lg *zap.Logger,
) *WebhookController {
	return &WebhookController{
		recorder:            recorder,
		identityVerifier:    identityVerifier,
		identityEvents:      identityEvents,
		stripeWebhookSecret: stripeWebhookSecret,
		paymentEvents:       paymentEvents,
		log:                 lg,
	}
}

type webhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// HandleIdentityWebhook processes user lifecycle events.
func (wc *WebhookController) HandleIdentityWebhook(c *fiber.Ctx) error {
	if wc.identityVerifier == nil {
		return apierror.Internal(errors.New("identity webhook secret is not configured"))
	}

	payload := append([]byte(nil), c.Body()...)
	headers := identity.ReadWebhookHeaders(func(key string) string { return c.Get(key) })
	if err := wc.identityVerifier.Verify(payload, headers); err != nil {
		wc.log.Warn("identity webhook signature rejected",
			zap.String("svix_id", headers.ID),
			zap.Error(err),
		)
		return apierror.InvalidSignature("Invalid webhook signature")
	}

	var evt identity.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return apierror.Validation("body", "Webhook payload must be valid JSON")
	}
	wc.log.Info("identity webhook received", zap.String("type", evt.Type), zap.String("svix_id", headers.ID))

	res, err := wc.recorder.Process(c.UserContext(), webhooks.Delivery{
		Provider:  models.WebhookProviderIdentity,
		EventID:   headers.ID,
		EventType: evt.Type,
		Payload:   payload,
	}, func(ctx context.Context) error {
		return wc.identityEvents.HandleEvent(ctx, evt)
	})
	if err != nil {
		return apierror.Internal(err)
	}
	return apierror.OK(c, fiber.StatusOK, webhookAck{Received: true, Duplicate: res.Duplicate})
}

// HandleStripeWebhook processes payment provider events.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	if wc.stripeWebhookSecret == "" {
		return apierror.Internal(errors.New("stripe webhook secret is not configured"))
	}

	payload := append([]byte(nil), c.Body()...)
	event, err := webhook.ConstructEventWithOptions(payload, c.Get(HeaderStripeSignature), wc.stripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		wc.log.Warn("stripe webhook signature rejected", zap.Error(err))
		return apierror.InvalidSignature("Invalid webhook signature")
	}
	wc.log.Info("stripe webhook received", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))

	res, err := wc.recorder.Process(c.UserContext(), webhooks.Delivery{
		Provider:  models.WebhookProviderStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   payload,
	}, func(ctx context.Context) error {
		return wc.paymentEvents.Handle(ctx, &event)
	})
	if err != nil {
		return apierror.Internal(err)
	}
	return apierror.OK(c, fiber.StatusOK, webhookAck{Received: true, Duplicate: res.Duplicate})
}
