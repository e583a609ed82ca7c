package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/constants"
	"github.com/ManuelReschke/Payline/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIPrefix, h.globalLimiter())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return apierror.OK(ctx, fiber.StatusOK, fiber.Map{
			"message": "Hello from api",
		})
	})

	h.registerPublicRoutes(api)
	h.registerAdminRoutes(api)
}

// globalLimiter applies the per-client API budget. Webhooks are exempt so
// provider retries are never throttled.
func (h ApiRouter) globalLimiter() fiber.Handler {
	cfg := limiter.Config{
		Max:          100,
		Expiration:   ratelimit.GlobalWindow,
		KeyGenerator: ratelimit.ClientKey,
		Storage:      h.deps.LimiterStorage,
		Next: func(c *fiber.Ctx) bool {
			return constants.IsWebhookRoute(c.Path())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apierror.RateLimited("Too many requests, please try again later.")
		},
	}
	if h.deps.Config != nil {
		cfg.Max = h.deps.Config.Limits.APIMax
		cfg.Expiration = h.deps.Config.Limits.APIWindow
	}
	return limiter.New(cfg)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
