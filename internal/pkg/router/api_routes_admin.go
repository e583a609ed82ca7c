package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Payline/internal/pkg/middleware"
)

func (h ApiRouter) registerAdminRoutes(api fiber.Router) {
	d := h.deps
	requireAdmin := middleware.AdminKey(d.adminKeyHash())

	// Contact triage
	api.Get("/contact", requireAdmin, d.Contacts.HandleListContacts)
	api.Get("/contact/:id", requireAdmin, d.Contacts.HandleGetContact)
	api.Patch("/contact/:id", requireAdmin, d.Contacts.HandleUpdateContactStatus)

	// Newsletter + users
	api.Get("/newsletter/stats", requireAdmin, d.Newsletter.HandleStats)
	api.Get("/users", requireAdmin, d.UsersCtl.HandleListUsers)
}
