package router

import (
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ManuelReschke/Payline/internal/pkg/constants"
	"github.com/ManuelReschke/Payline/internal/pkg/middleware"
	"github.com/ManuelReschke/Payline/internal/pkg/usercontext"
)

// HttpRouter installs the app-wide middleware and the API docs.
type HttpRouter struct {
	deps Deps
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: h.deps.Config != nil && h.deps.Config.IsDev()}))
	app.Use(requestid.New(requestid.Config{ContextKey: usercontext.KeyRequestID}))
	app.Use(middleware.RequestLogger(h.deps.Log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Idempotency-Key,X-Admin-Key",
		Next: func(c *fiber.Ctx) bool {
			return constants.IsWebhookRoute(c.Path())
		},
	}))

	// fiber metrics
	app.Get("/metrics", middleware.AdminKey(h.deps.adminKeyHash()), monitor.New())

	// SWAGGER / OPENAPI
	if h.deps.OpenAPIFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: constants.DocsBasePath,
			FilePath: h.deps.OpenAPIFile,
			Path:     constants.DocsVersion,
			Title:    "Payline API",
		}))
	}
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}
