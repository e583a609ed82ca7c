package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/billing"
	"github.com/ManuelReschke/Payline/internal/pkg/usercontext"
)

// HeaderIdempotencyKey is forwarded to the payment provider when present.
const HeaderIdempotencyKey = "Idempotency-Key"

// PaymentController serves checkout, payment intent, portal and
// subscription endpoints.
type PaymentController struct {
	billing  *billing.Service
	payments repository.PaymentRepository
}

func NewPaymentController(svc *billing.Service, payments repository.PaymentRepository) *PaymentController {
	return &PaymentController{billing: svc, payments: payments}
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

type subscriptionResponse struct {
	HasSubscription bool                      `json:"hasSubscription"`
	Subscription    *billing.SubscriptionView `json:"subscription"`
}

type paymentListResponse struct {
	Payments   []models.Payment `json:"payments"`
	Pagination Pagination       `json:"pagination"`
}

// HandleCreateCheckoutSession creates a hosted checkout session.
func (pc *PaymentController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req billing.CheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.IdempotencyKey = strings.TrimSpace(c.Get(HeaderIdempotencyKey))

	session, err := pc.billing.Checkout.CreateCheckoutSession(c.UserContext(), req, usercontext.GetUser(c))
	if err != nil {
		return err
	}
	return apierror.OK(c, fiber.StatusOK, session)
}

// HandleCreatePaymentIntent creates a payment intent for an embedded form.
func (pc *PaymentController) HandleCreatePaymentIntent(c *fiber.Ctx) error {
	var req billing.PaymentIntentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.IdempotencyKey = strings.TrimSpace(c.Get(HeaderIdempotencyKey))

	intent, err := pc.billing.Checkout.CreatePaymentIntent(c.UserContext(), req, usercontext.GetUser(c))
	if err != nil {
		return err
	}
	return apierror.OK(c, fiber.StatusOK, intent)
}

// HandleBillingPortal opens a billing portal session for the caller.
func (pc *PaymentController) HandleBillingPortal(c *fiber.Ctx) error {
	var req portalRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	url, err := pc.billing.Portal.CreatePortalSession(c.UserContext(), usercontext.GetUser(c), req.ReturnURL)
	if err != nil {
		return err
	}
	return apierror.OK(c, fiber.StatusOK, fiber.Map{"url": url})
}

// HandleGetSubscription returns the caller's active subscription, if any.
func (pc *PaymentController) HandleGetSubscription(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return apierror.OK(c, fiber.StatusOK, subscriptionResponse{})
	}
	view, err := pc.billing.Projector.GetActiveSubscription(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return apierror.OK(c, fiber.StatusOK, subscriptionResponse{HasSubscription: view != nil, Subscription: view})
}

// HandleListPayments returns the caller's payment history, newest first.
func (pc *PaymentController) HandleListPayments(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	page, limit, offset := pageParams(c)
	if userID == "" {
		return apierror.OK(c, fiber.StatusOK, paymentListResponse{
			Payments:   []models.Payment{},
			Pagination: newPagination(page, limit, 0),
		})
	}

	payments, err := pc.payments.ListByUser(c.UserContext(), userID, offset, limit)
	if err != nil {
		return err
	}
	total, err := pc.payments.CountByUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return apierror.OK(c, fiber.StatusOK, paymentListResponse{
		Payments:   payments,
		Pagination: newPagination(page, limit, total),
	})
}
