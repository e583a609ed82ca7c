package controllers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/billing"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
)

func TestProviderErrorKeepsProviderCode(t *testing.T) {
	err := fmt.Errorf("create checkout session: %w", &billing.ProviderError{
		Code:       "resource_missing",
		Type:       "invalid_request_error",
		Message:    "No such price: 'price_x'",
		StatusCode: 404,
	})

	apiErr := apierror.From(err, ErrorMappers()...)
	assert.Equal(t, fiber.StatusBadRequest, apiErr.Status)
	assert.Equal(t, apierror.CodePaymentProviderError, apiErr.Code)
	assert.Equal(t, "No such price: 'price_x'", apiErr.Message)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, apierror.FieldDetail{Field: "provider", Message: "resource_missing"}, apiErr.Details[0])
}

func TestProviderOutageMapsToBadGateway(t *testing.T) {
	apiErr := apierror.From(&billing.ProviderError{Type: "api_error", StatusCode: 500}, ErrorMappers()...)
	assert.Equal(t, fiber.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Payment provider request failed", apiErr.Message)
	assert.Empty(t, apiErr.Details)
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{billing.ErrNoCustomer, fiber.StatusNotFound, apierror.CodeNoCustomer},
		{identity.ErrUserNotFound, fiber.StatusNotFound, apierror.CodeNotFound},
		{identity.ErrInvalidToken, fiber.StatusUnauthorized, apierror.CodeInvalidToken},
		{errors.New("boom"), fiber.StatusInternalServerError, apierror.CodeInternal},
	}
	for _, tt := range tests {
		apiErr := apierror.From(tt.err, ErrorMappers()...)
		assert.Equal(t, tt.status, apiErr.Status, tt.err.Error())
		assert.Equal(t, tt.code, apiErr.Code, tt.err.Error())
	}
}
