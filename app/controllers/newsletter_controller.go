package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
)

const (
	NewsletterSubscribed         = "subscribed"
	NewsletterExisting           = "existing"
	NewsletterReactivated        = "reactivated"
	NewsletterUnsubscribed       = "unsubscribed"
	NewsletterAlreadyUnsubscribe = "already_unsubscribed"
)

// NewsletterController handles newsletter subscriptions.
type NewsletterController struct {
	subscribers repository.NewsletterRepository
	log         *zap.Logger
}

func NewNewsletterController(subscribers repository.NewsletterRepository, lg *zap.Logger) *NewsletterController {
	return &NewsletterController{subscribers: subscribers, log: lg}
}

type subscribeRequest struct {
	Email    string            `json:"email" validate:"required,email,max=255"`
	Name     string            `json:"name" validate:"max=100"`
	Source   string            `json:"source" validate:"max=50"`
	Metadata map[string]string `json:"metadata"`
}

type unsubscribeRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type newsletterResult struct {
	ID           string     `json:"id,omitempty"`
	Message      string     `json:"message"`
	Status       string     `json:"status"`
	SubscribedAt *time.Time `json:"subscribedAt,omitempty"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HandleSubscribe creates, reactivates or acknowledges a subscription.
func (nc *NewsletterController) HandleSubscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := validateMetadataMap(req.Metadata); err != nil {
		return err
	}

	ctx := c.UserContext()
	existing, err := nc.subscribers.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup subscriber: %w", err)
	}

	if existing != nil {
		if existing.Status == models.NewsletterStatusActive {
			return apierror.OK(c, fiber.StatusOK, newsletterResult{
				Message: "You're already subscribed to our newsletter!",
				Status:  NewsletterExisting,
			})
		}

		existing.Status = models.NewsletterStatusActive
		existing.UnsubscribedAt = nil
		if req.Name != "" {
			existing.Name = req.Name
		}
		if req.Source != "" {
			existing.Source = req.Source
		}
		if req.Metadata != nil {
			existing.Metadata = models.StringMap(req.Metadata)
		}
		if err := nc.subscribers.Save(ctx, existing); err != nil {
			return fmt.Errorf("reactivate subscriber: %w", err)
		}
		nc.log.Info("newsletter subscription reactivated", zap.String("id", existing.ID))
		return apierror.OK(c, fiber.StatusOK, newsletterResult{
			Message: "Welcome back! Your subscription has been reactivated.",
			Status:  NewsletterReactivated,
		})
	}

	subscriber := &models.NewsletterSubscriber{
		Email:    req.Email,
		Name:     req.Name,
		Source:   req.Source,
		Metadata: models.StringMap(req.Metadata),
	}
	if err := nc.subscribers.Create(ctx, subscriber); err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	nc.log.Info("newsletter subscription created", zap.String("id", subscriber.ID))

	return apierror.OK(c, fiber.StatusCreated, newsletterResult{
		ID:           subscriber.ID,
		Message:      "Thank you for subscribing to our newsletter!",
		Status:       NewsletterSubscribed,
		SubscribedAt: &subscriber.SubscribedAt,
	})
}

// HandleUnsubscribe marks a subscriber as unsubscribed.
func (nc *NewsletterController) HandleUnsubscribe(c *fiber.Ctx) error {
	var req unsubscribeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return err
	}

	ctx := c.UserContext()
	existing, err := nc.subscribers.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.NotFound("Email not found in our subscription list")
		}
		return fmt.Errorf("lookup subscriber: %w", err)
	}

	if existing.Status == models.NewsletterStatusUnsubscribed {
		return apierror.OK(c, fiber.StatusOK, newsletterResult{
			Message: "You've already unsubscribed from our newsletter.",
			Status:  NewsletterAlreadyUnsubscribe,
		})
	}

	now := time.Now().UTC()
	existing.Status = models.NewsletterStatusUnsubscribed
	existing.UnsubscribedAt = &now
	if err := nc.subscribers.Save(ctx, existing); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	nc.log.Info("newsletter unsubscribed", zap.String("id", existing.ID))

	return apierror.OK(c, fiber.StatusOK, newsletterResult{
		Message: "You've been unsubscribed from our newsletter.",
		Status:  NewsletterUnsubscribed,
	})
}

// HandleStats returns subscriber counts for admins.
func (nc *NewsletterController) HandleStats(c *fiber.Ctx) error {
	stats, err := nc.subscribers.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return apierror.OK(c, fiber.StatusOK, stats)
}
