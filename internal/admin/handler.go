// Package admin serves the loaded schema read-only, for tooling that needs
// the relationship descriptors the API was started with.
package admin

import (
	"github.com/gofiber/fiber/v2"

	"orgchart/internal/engine"
	"orgchart/internal/metadata"
)

type Handler struct {
	registry *metadata.Registry
}

func NewHandler(reg *metadata.Registry) *Handler {
	return &Handler{registry: reg}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(middleware))
	handlers = append(handlers, middleware...)
	admin := app.Group("/_admin", handlers...)

	admin.Get("/entities", h.ListEntities)
	admin.Get("/entities/:name", h.GetEntity)
	admin.Get("/rules", h.ListRules)
}

// entityView is an entity with its wire names spelled out.
type entityView struct {
	*metadata.Entity
	WireType string `json:"wire_type"`
}

func (h *Handler) view(e *metadata.Entity) entityView {
	return entityView{Entity: e, WireType: h.registry.Naming().WireType(e.Name)}
}

func (h *Handler) ListEntities(c *fiber.Ctx) error {
	entities := h.registry.AllEntities()
	out := make([]entityView, 0, len(entities))
	for _, e := range entities {
		out = append(out, h.view(e))
	}
	return c.JSON(fiber.Map{"data": out})
}

// GetEntity accepts either the model name (department) or the wire type
// (departments).
func (h *Handler) GetEntity(c *fiber.Ctx) error {
	name := c.Params("name")
	e := h.registry.GetEntity(name)
	if e == nil {
		e = h.registry.EntityForWireType(name)
	}
	if e == nil {
		return engine.UnknownEntityError(name)
	}
	return c.JSON(fiber.Map{"data": h.view(e)})
}

func (h *Handler) ListRules(c *fiber.Ctx) error {
	var rules []*metadata.Rule
	for _, e := range h.registry.AllEntities() {
		rules = append(rules, h.registry.GetRulesForEntity(e.Name)...)
	}
	if rules == nil {
		rules = []*metadata.Rule{}
	}
	return c.JSON(fiber.Map{"data": rules})
}
