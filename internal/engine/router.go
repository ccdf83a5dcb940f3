package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(middleware)+1)
	handlers = append(handlers, middleware...)
	api := app.Group("/api", handlers...)

	api.Get("/:type", h.List)
	api.Get("/:type/:id", h.GetByID)
	api.Post("/:type", h.Create)
	api.Patch("/:type/:id", h.Update)
	api.Delete("/:type/:id", h.Delete)
}
