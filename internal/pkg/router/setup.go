package router

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/controllers"
	"github.com/ManuelReschke/Payline/internal/pkg/config"
	"github.com/ManuelReschke/Payline/internal/pkg/middleware"
	"github.com/ManuelReschke/Payline/internal/pkg/ratelimit"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries everything the routes need. LimiterStorage may be nil, in
// which case the global limiter keeps its counters in memory. An empty
// OpenAPIFile disables the docs route.
type Deps struct {
	Config      *config.Config
	Log         *zap.Logger
	OpenAPIFile string

	Verifier middleware.TokenVerifier
	Users    middleware.UserResolver

	ContactLimiter    ratelimit.Limiter
	NewsletterLimiter ratelimit.Limiter
	LimiterStorage    fiber.Storage

	Payments   *controllers.PaymentController
	Webhooks   *controllers.WebhookController
	Contacts   *controllers.ContactController
	Newsletter *controllers.NewsletterController
	UsersCtl   *controllers.UserController
	Health     *controllers.HealthController
}

// adminKeyHash is empty without a config, which locks the admin routes.
func (d Deps) adminKeyHash() string {
	if d.Config == nil {
		return ""
	}
	return d.Config.Admin.APIKeyHash
}

func InstallRouter(app *fiber.App, deps Deps) {
	// Global middleware and docs must be registered before the API group.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
