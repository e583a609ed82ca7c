package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
)

// HeaderAdminKey carries the admin API key.
const HeaderAdminKey = "X-Admin-Key"

// AdminKey guards admin routes with a bcrypt-hashed shared key. All requests
// are rejected when no hash is configured.
func AdminKey(hash string) fiber.Handler {
	hashed := []byte(strings.TrimSpace(hash))
	return func(c *fiber.Ctx) error {
		if len(hashed) == 0 {
			return apierror.Forbidden("Admin access is not configured")
		}
		key := strings.TrimSpace(c.Get(HeaderAdminKey))
		if key == "" {
			return apierror.Forbidden("Admin access required")
		}
		if err := bcrypt.CompareHashAndPassword(hashed, []byte(key)); err != nil {
			return apierror.Forbidden("Admin access required")
		}
		return c.Next()
	}
}
