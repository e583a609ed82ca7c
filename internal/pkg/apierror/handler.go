package apierror

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler returns the fiber.Config ErrorHandler for the API. Server-side
// failures are logged with the request id; clients only see the envelope.
func ErrorHandler(lg *zap.Logger, mappers ...Mapper) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		apiErr := From(err, mappers...)
		if apiErr.Status >= fiber.StatusInternalServerError {
			lg.Error("request failed",
				zap.Any("request_id", c.Locals("requestid")),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", apiErr.Status),
				zap.String("code", apiErr.Code),
				zap.Error(err),
			)
		}
		return Write(c, apiErr)
	}
}
