package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
	"github.com/ManuelReschke/Payline/internal/pkg/usercontext"
)

// TokenVerifier is satisfied by *identity.Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Principal, error)
}

// UserResolver is satisfied by *identity.Directory.
type UserResolver interface {
	EnsureFromPrincipal(ctx context.Context, p *identity.Principal) (*models.User, error)
}

// WithAuth requires a valid bearer token. A principal without a local user
// row yet is attached with a nil User; handlers decide what that means.
func WithAuth(verifier TokenVerifier, users UserResolver, lg *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := identity.TokenFromHeader(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return apierror.Unauthorized("Authentication required")
		}

		principal, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			lg.Info("rejected token", zap.String("path", c.Path()), zap.Error(err))
			return apierror.InvalidToken("Invalid or expired token")
		}

		user, err := users.EnsureFromPrincipal(c.UserContext(), principal)
		if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
			return err
		}

		usercontext.Set(c, usercontext.UserContext{Principal: principal, User: user})
		return c.Next()
	}
}

// WithOptionalAuth attaches the caller when a valid token is present and
// otherwise continues anonymously.
func WithOptionalAuth(verifier TokenVerifier, users UserResolver, lg *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := identity.TokenFromHeader(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Next()
		}

		principal, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			lg.Debug("ignoring invalid optional token", zap.String("path", c.Path()), zap.Error(err))
			return c.Next()
		}

		uc := usercontext.UserContext{Principal: principal}
		user, err := users.EnsureFromPrincipal(c.UserContext(), principal)
		switch {
		case err == nil:
			uc.User = user
		case errors.Is(err, identity.ErrUserNotFound):
		default:
			lg.Warn("could not resolve user for optional auth", zap.String("principal", principal.PrincipalID), zap.Error(err))
		}

		usercontext.Set(c, uc)
		return c.Next()
	}
}
