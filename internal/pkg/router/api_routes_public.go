package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Payline/internal/pkg/middleware"
	"github.com/ManuelReschke/Payline/internal/pkg/ratelimit"
)

func (h ApiRouter) registerPublicRoutes(api fiber.Router) {
	d := h.deps
	requireAuth := middleware.WithAuth(d.Verifier, d.Users, d.Log)
	optionalAuth := middleware.WithOptionalAuth(d.Verifier, d.Users, d.Log)
	contactLimit := ratelimit.Middleware(d.ContactLimiter, "Too many submissions. Please try again later.", d.Log)
	newsletterLimit := ratelimit.Middleware(d.NewsletterLimiter, "Too many requests. Please try again later.", d.Log)

	api.Get("/health", d.Health.HandleHealth)

	// Provider webhooks (no auth, signature-verified in controller)
	api.Post("/identity-webhook", d.Webhooks.HandleIdentityWebhook)
	api.Post("/stripe-webhook", d.Webhooks.HandleStripeWebhook)

	// Payments
	api.Post("/checkout-sessions", optionalAuth, d.Payments.HandleCreateCheckoutSession)
	api.Post("/payment-intents", optionalAuth, d.Payments.HandleCreatePaymentIntent)
	api.Post("/billing-portal", requireAuth, d.Payments.HandleBillingPortal)
	api.Get("/subscription", requireAuth, d.Payments.HandleGetSubscription)
	api.Get("/payments", requireAuth, d.Payments.HandleListPayments)

	// Capture
	api.Post("/contact", contactLimit, optionalAuth, d.Contacts.HandleSubmitContact)
	api.Post("/newsletter/subscribe", newsletterLimit, d.Newsletter.HandleSubscribe)
	api.Post("/newsletter/unsubscribe", newsletterLimit, d.Newsletter.HandleUnsubscribe)

	// Account
	api.Get("/users/me", requireAuth, d.UsersCtl.HandleGetMe)
	api.Patch("/users/me/preferences", requireAuth, d.UsersCtl.HandleUpdatePreferences)
}
