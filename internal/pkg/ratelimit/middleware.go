package ratelimit

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
)

// ClientKey identifies the caller by the first X-Forwarded-For entry.
func ClientKey(c *fiber.Ctx) string {
	xff := c.Get(fiber.HeaderXForwardedFor)
	if xff == "" {
		return "unknown"
	}
	first := strings.TrimSpace(strings.Split(xff, ",")[0])
	if first == "" {
		return "unknown"
	}
	return first
}

// Middleware rejects limited clients with 429 RATE_LIMITED. An attempt is
// recorded only when the request was allowed and the handler succeeded.
// Backend errors are logged and the request proceeds.
func Middleware(l Limiter, message string, lg *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := ClientKey(c)
		ctx := c.UserContext()

		limited, err := l.IsLimited(ctx, key)
		if err != nil {
			lg.Warn("rate limiter unavailable, allowing request", zap.String("path", c.Path()), zap.Error(err))
			return c.Next()
		}
		if limited {
			return apierror.RateLimited(message)
		}

		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() < fiber.StatusBadRequest {
			if err := l.RecordAttempt(ctx, key); err != nil {
				lg.Warn("failed to record rate limit attempt", zap.String("path", c.Path()), zap.Error(err))
			}
		}
		return nil
	}
}
