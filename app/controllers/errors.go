package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/billing"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
)

// ErrorMappers translates domain errors into API errors for the fiber
// error handler.
func ErrorMappers() []apierror.Mapper {
	return []apierror.Mapper{mapBillingError, mapIdentityError, mapStoreError}
}

func mapBillingError(err error) *apierror.Error {
	if errors.Is(err, billing.ErrNoCustomer) {
		return apierror.New(fiber.StatusNotFound, apierror.CodeNoCustomer, "No billing account found")
	}
	var pErr *billing.ProviderError
	if errors.As(err, &pErr) {
		status := fiber.StatusBadGateway
		if pErr.ClientFault() {
			status = fiber.StatusBadRequest
		}
		msg := pErr.Message
		if msg == "" {
			msg = "Payment provider request failed"
		}
		apiErr := &apierror.Error{Status: status, Code: apierror.CodePaymentProviderError, Message: msg, Err: err}
		if pErr.Code != "" {
			apiErr.Details = []apierror.FieldDetail{{Field: "provider", Message: pErr.Code}}
		}
		return apiErr
	}
	return nil
}

func mapIdentityError(err error) *apierror.Error {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		return apierror.NotFound("User not found")
	case errors.Is(err, identity.ErrNoToken):
		return apierror.Unauthorized("Authentication required")
	case errors.Is(err, identity.ErrInvalidToken):
		return apierror.InvalidToken("Invalid or expired token")
	}
	return nil
}

func mapStoreError(err error) *apierror.Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound("Resource not found")
	}
	return nil
}
