package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/metrics"
	"orgchart/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	metrics  *metrics.Metrics
}

func NewHandler(s *store.Store, reg *metadata.Registry, m *metrics.Metrics) *Handler {
	return &Handler{store: s, registry: reg, metrics: m}
}

// List handles GET /api/:type
func (h *Handler) List(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	plan, err := ParseQueryParams(c, entity, h.registry)
	if err != nil {
		return err
	}

	qr := BuildSelectSQL(h.store.Dialect, h.registry, plan)
	rows, err := store.QueryRows(c.UserContext(), h.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return fmt.Errorf("list %s: %w", entity.Name, err)
	}

	cr := BuildCountSQL(h.store.Dialect, plan)
	countRow, err := store.QueryRow(c.UserContext(), h.store.DB, cr.SQL, cr.Params...)
	if err != nil {
		return fmt.Errorf("count %s: %w", entity.Name, err)
	}

	data := make([]jsonapi.Resource, len(rows))
	roots := make([]*jsonapi.Resource, len(rows))
	for i, row := range rows {
		data[i] = toResource(h.registry, entity, row)
		roots[i] = &data[i]
	}

	included, err := LoadIncludes(c.UserContext(), h.store.DB, h.store.Dialect, h.registry, entity, rows, roots, plan.Includes)
	if err != nil {
		return err
	}

	return c.JSON(jsonapi.ListDocument{
		Data:     data,
		Included: included,
		Meta: map[string]any{
			"page":     plan.Page,
			"per_page": plan.PerPage,
			"total":    countRow["count"],
		},
	})
}

// GetByID handles GET /api/:type/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	doc, err := h.render(c.UserContext(), entity, c.Params("id"), parseIncludes(c.Query("include")))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// Create handles POST /api/:type
func (h *Handler) Create(c *fiber.Ctx) error {
	return h.write(c, "")
}

// Update handles PATCH /api/:type/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	return h.write(c, c.Params("id"))
}

func (h *Handler) write(c *fiber.Ctx, pathID string) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	var body jsonapi.Document
	if err := c.BodyParser(&body); err != nil || body.Data == nil {
		return InvalidPayloadError("Invalid JSON:API document")
	}

	plan, details := PlanWrite(h.registry, entity, *body.Data, pathID)
	if len(details) > 0 {
		h.metrics.ValidationFailure(entity.Name)
		return ValidationError(details)
	}

	isCreate := pathID == ""
	id, err := ExecuteWritePlan(c.UserContext(), h.store, h.registry, h.metrics, plan, isCreate)
	if err != nil {
		return writeError(err)
	}

	doc, err := h.render(c.UserContext(), entity, id, plan.IncludePaths(h.registry.Naming()))
	if err != nil {
		return err
	}
	if isCreate {
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
	return c.JSON(doc)
}

// Delete handles DELETE /api/:type/:id. The response lists every record
// removed by on_delete cascades.
func (h *Handler) Delete(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	id := c.Params("id")

	var deleted []jsonapi.Identifier
	err = h.store.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = HandleCascadeDelete(ctx, tx, h.store.Dialect, h.registry, h.metrics, entity, id)
		if err != nil {
			var appErr *AppError
			if errors.As(err, &appErr) {
				return appErr
			}
			return fmt.Errorf("cascade delete: %w", err)
		}

		affected, err := deleteRow(ctx, tx, h.store.Dialect, h.registry, entity, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return NotFoundError(entity.Name, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if deleted == nil {
		deleted = []jsonapi.Identifier{}
	}
	log.Debug().Str("entity", entity.Name).Str("id", id).Int("cascaded", len(deleted)).Msg("record deleted")
	return c.JSON(jsonapi.DeleteDocument{Meta: jsonapi.DeleteMeta{Deleted: deleted}})
}

func (h *Handler) render(ctx context.Context, entity *metadata.Entity, id string, includes []string) (*jsonapi.Document, error) {
	row, err := fetchRecord(ctx, h.store.DB, h.store.Dialect, h.registry, entity, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError(entity.Name, id)
		}
		return nil, fmt.Errorf("get %s/%s: %w", entity.Name, id, err)
	}

	res := toResource(h.registry, entity, row)
	included, err := LoadIncludes(ctx, h.store.DB, h.store.Dialect, h.registry, entity,
		[]map[string]any{row}, []*jsonapi.Resource{&res}, includes)
	if err != nil {
		return nil, err
	}
	return &jsonapi.Document{Data: &res, Included: included}, nil
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("type")
	entity := h.registry.EntityForWireType(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

func writeError(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, store.ErrUniqueViolation) {
		return ConflictError("A record with this value already exists")
	}
	return err
}

// ErrorHandler renders handler errors: validation failures as a 422
// errors document, other AppErrors and fiber errors as an error envelope,
// anything else as a logged 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return respondError(c, NewAppError("HTTP_ERROR", fe.Code, fe.Message))
	}
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	return respondError(c, NewAppError("INTERNAL_ERROR", fiber.StatusInternalServerError, "Internal server error"))
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	if appErr.Status == fiber.StatusUnprocessableEntity {
		details := appErr.Details
		if details == nil {
			details = []ErrorDetail{}
		}
		return c.Status(appErr.Status).JSON(jsonapi.ErrorsDocument{Errors: &details})
	}
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}
