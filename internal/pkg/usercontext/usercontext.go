package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
)

// UserContext represents the caller of a request. Both fields are nil for
// anonymous requests; User may be nil for a verified principal whose user
// row does not exist yet.
type UserContext struct {
	Principal *identity.Principal
	User      *models.User
}

// Set stores the user context on the request.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
}

// GetUserContext retrieves the user context from fiber context
// Returns an anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return uc
	}
	return UserContext{}
}

// IsAuthenticated checks if the request carried a verified token
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetUserContext(c).Principal != nil
}

// GetUser returns the internal user, or nil
func GetUser(c *fiber.Ctx) *models.User {
	return GetUserContext(c).User
}

// GetUserID returns the internal user id, or "" for anonymous callers
func GetUserID(c *fiber.Ctx) string {
	if u := GetUser(c); u != nil {
		return u.ID
	}
	return ""
}
