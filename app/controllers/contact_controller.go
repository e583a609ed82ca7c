package controllers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/usercontext"
	"github.com/ManuelReschke/Payline/internal/pkg/utils"
)

const contactThankYou = "Thank you for your message. We'll get back to you soon!"

// CaptchaVerifier is satisfied by *hcaptcha.Verifier.
type CaptchaVerifier interface {
	Enabled() bool
	Verify(ctx context.Context, token string) error
}

// Notifier is satisfied by *mail.SMTPMailer.
type Notifier interface {
	Enabled() bool
	Send(to, subject, body string) error
}

// ContactController handles contact form capture and admin triage.
type ContactController struct {
	contacts    repository.ContactRepository
	captcha     CaptchaVerifier
	notifier    Notifier
	notifyEmail string
	log         *zap.Logger
}

func NewContactController(contacts repository.ContactRepository, captcha CaptchaVerifier, notifier Notifier, notifyEmail string, lg *zap.Logger) *ContactController {
	return &ContactController{
		contacts:    contacts,
		captcha:     captcha,
		notifier:    notifier,
		notifyEmail: notifyEmail,
		log:         lg,
	}
}

type contactRequest struct {
	Name         string            `json:"name" validate:"required,min=2,max=100,singleline"`
	Email        string            `json:"email" validate:"required,email,max=255"`
	Company      string            `json:"company" validate:"max=100,singleline"`
	Phone        string            `json:"phone" validate:"max=20,singleline"`
	ServiceType  string            `json:"serviceType" validate:"max=50"`
	Message      string            `json:"message" validate:"required,min=10,max=1000"`
	Source       string            `json:"source" validate:"max=50"`
	Metadata     map[string]string `json:"metadata"`
	CaptchaToken string            `json:"captchaToken"`
}

type contactStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new read replied archived"`
}

type contactUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	ImageURL  string `json:"imageUrl"`
}

type contactView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Company     string           `json:"company,omitempty"`
	Phone       string           `json:"phone,omitempty"`
	ServiceType string           `json:"serviceType,omitempty"`
	Message     string           `json:"message"`
	Status      string           `json:"status"`
	Source      string           `json:"source"`
	Metadata    models.StringMap `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	User        *contactUser     `json:"user"`
}

func newContactView(s models.ContactSubmission, withUserEmail bool) contactView {
	v := contactView{
		ID:          s.ID,
		Name:        s.Name,
		Email:       s.Email,
		Company:     s.Company,
		Phone:       s.Phone,
		ServiceType: s.ServiceType,
		Message:     s.Message,
		Status:      s.Status,
		Source:      s.Source,
		Metadata:    s.Metadata,
		CreatedAt:   s.CreatedAt,
	}
	if s.User != nil {
		v.User = &contactUser{
			ID:        s.User.ID,
			FirstName: s.User.FirstName,
			LastName:  s.User.LastName,
			ImageURL:  utils.AvatarURL(s.User.ImageURL, s.User.Email),
		}
		if withUserEmail {
			v.User.Email = s.User.Email
		}
	}
	return v
}

// HandleSubmitContact stores a contact form submission.
func (cc *ContactController) HandleSubmitContact(c *fiber.Ctx) error {
	var req contactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := validateMetadataMap(req.Metadata); err != nil {
		return err
	}

	if cc.captcha != nil && cc.captcha.Enabled() {
		if err := cc.captcha.Verify(c.UserContext(), req.CaptchaToken); err != nil {
			cc.log.Info("contact captcha rejected", zap.Error(err))
			return apierror.Validation("captchaToken", "Captcha verification failed")
		}
	}

	submission := &models.ContactSubmission{
		Name:        req.Name,
		Email:       req.Email,
		Company:     req.Company,
		Phone:       req.Phone,
		ServiceType: req.ServiceType,
		Message:     req.Message,
		Source:      req.Source,
		Metadata:    models.StringMap(req.Metadata),
	}
	if userID := usercontext.GetUserID(c); userID != "" {
		submission.UserID = &userID
	}
	if err := cc.contacts.Create(c.UserContext(), submission); err != nil {
		return fmt.Errorf("create contact submission: %w", err)
	}

	cc.log.Info("contact form submitted",
		zap.String("id", submission.ID),
		zap.Bool("has_user", submission.UserID != nil),
		zap.String("service_type", submission.ServiceType),
	)
	cc.notify(*submission)

	return apierror.OK(c, fiber.StatusCreated, fiber.Map{
		"id":        submission.ID,
		"createdAt": submission.CreatedAt,
		"message":   contactThankYou,
	})
}

// notify mails the submission to the configured inbox in the background.
func (cc *ContactController) notify(s models.ContactSubmission) {
	if cc.notifier == nil || !cc.notifier.Enabled() || cc.notifyEmail == "" {
		return
	}
	subject := "New contact submission from " + s.Name
	body := fmt.Sprintf("<p><strong>%s</strong> &lt;%s&gt;</p><p>Company: %s<br>Phone: %s<br>Service: %s</p><p>%s</p>",
		html.EscapeString(s.Name), html.EscapeString(s.Email), html.EscapeString(s.Company),
		html.EscapeString(s.Phone), html.EscapeString(s.ServiceType),
		strings.ReplaceAll(html.EscapeString(s.Message), "\n", "<br>"))
	go func() {
		if err := cc.notifier.Send(cc.notifyEmail, subject, body); err != nil {
			cc.log.Warn("contact notification failed", zap.String("id", s.ID), zap.Error(err))
		}
	}()
}

// HandleListContacts lists submissions for admins.
func (cc *ContactController) HandleListContacts(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	if status != "" && !models.IsValidContactStatus(status) {
		return apierror.Validation("status", "must be one of: new, read, replied, archived")
	}
	sortOrder := strings.ToLower(c.Query("sortOrder", "desc"))
	if sortOrder != "asc" && sortOrder != "desc" {
		return apierror.Validation("sortOrder", "must be one of: asc, desc")
	}
	page, limit, offset := pageParams(c)

	submissions, err := cc.contacts.List(c.UserContext(), repository.ContactFilter{
		Status:    status,
		Ascending: sortOrder == "asc",
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	total, err := cc.contacts.Count(c.UserContext(), status)
	if err != nil {
		return err
	}

	views := make([]contactView, 0, len(submissions))
	for _, s := range submissions {
		views = append(views, newContactView(s, false))
	}
	return apierror.OK(c, fiber.StatusOK, fiber.Map{
		"submissions": views,
		"pagination":  newPagination(page, limit, total),
	})
}

// HandleGetContact returns one submission.
func (cc *ContactController) HandleGetContact(c *fiber.Ctx) error {
	submission, err := cc.contacts.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.NotFound("Contact submission not found")
		}
		return err
	}
	return apierror.OK(c, fiber.StatusOK, newContactView(*submission, true))
}

// HandleUpdateContactStatus moves a submission through triage.
func (cc *ContactController) HandleUpdateContactStatus(c *fiber.Ctx) error {
	var req contactStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}

	id := c.Params("id")
	updated, err := cc.contacts.UpdateStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return err
	}
	if !updated {
		// MySQL reports zero affected rows when the status is unchanged.
		if _, err := cc.contacts.GetByID(c.UserContext(), id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.NotFound("Contact submission not found")
			}
			return err
		}
	}

	cc.log.Info("contact status updated", zap.String("id", id), zap.String("status", req.Status))
	return apierror.OK(c, fiber.StatusOK, fiber.Map{"id": id, "status": req.Status})
}

// validateMetadataMap bounds free-form metadata on public forms.
func validateMetadataMap(md map[string]string) error {
	if len(md) > 20 {
		return apierror.Validation("metadata", "must have at most 20 keys")
	}
	for k, v := range md {
		if len(k) > 40 {
			return apierror.Validation("metadata."+k, "key must be at most 40 characters")
		}
		if len(v) > 500 {
			return apierror.Validation("metadata."+k, "value must be at most 500 characters")
		}
	}
	return nil
}
