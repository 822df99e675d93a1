package access

import (
	"errors"

	"access-sync/core/logger"
	"access-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for sync passes and mirrored entities.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleSync)
	group.Get("/history", h.HandleHistory)
	group.Get("/history/:id", h.HandleGetPass)
	group.Get("/status", h.HandleStatus)
	group.Get("/schema", h.HandleSchema)
	group.Post("/:type", h.HandleSyncType)

	app.Get("/entities/:type", h.HandleListEntities)
}

type syncRequest struct {
	Types  []string `json:"types"`
	DryRun bool     `json:"dry_run"`
	Policy string   `json:"policy"`
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// HandleSync runs a pass over the requested types, or the configured ones
// when the body lists none. The pass report is returned even when it failed.
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	var req syncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}

	types, err := reconcile.ParseEntityTypes(req.Types)
	if err != nil {
		return badRequest(c, err)
	}
	return h.run(c, reconcile.RunOptions{Types: types, DryRun: req.DryRun}, req.Policy)
}

// HandleSyncType runs a pass over a single type.
func (h *Handler) HandleSyncType(c *fiber.Ctx) error {
	t, err := reconcile.ParseEntityType(c.Params("type"))
	if err != nil {
		return badRequest(c, err)
	}
	opts := reconcile.RunOptions{Types: []reconcile.EntityType{t}, DryRun: c.QueryBool("dry_run")}
	return h.run(c, opts, c.Query("policy"))
}

func (h *Handler) run(c *fiber.Ctx, opts reconcile.RunOptions, policy string) error {
	if policy != "" {
		p, err := reconcile.ParsePolicy(policy)
		if err != nil {
			return badRequest(c, err)
		}
		opts.Policy = p
	}

	report := h.service.RunSync(c.UserContext(), opts)
	if report.Status == reconcile.PassFailed {
		logger.WithRayID(h.service.logger, c).Warn("Sync pass failed",
			zap.String("pass_id", report.ID),
			zap.String("error", report.Error),
		)
	}
	return c.JSON(report)
}

// HandleHistory lists recent passes.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	runs, err := h.service.History(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Sync history lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"passes": runs, "count": len(runs)})
}

// HandleGetPass returns the full report of one pass.
func (h *Handler) HandleGetPass(c *fiber.Ctx) error {
	id := c.Params("id")
	report, err := h.service.Pass(c.UserContext(), id)
	if errors.Is(err, reconcile.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "pass " + id + " not found"})
	}
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Sync pass lookup failed", zap.String("pass_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleStatus reports device connectivity. An unreachable device answers 503.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	status := h.service.Status(c.UserContext())
	if !status.Online {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}

// HandleSchema reports missing tables or columns. A mismatch answers 409.
func (h *Handler) HandleSchema(c *fiber.Ctx) error {
	report, err := h.service.Schema()
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !report.Matched {
		return c.Status(fiber.StatusConflict).JSON(report)
	}
	return c.JSON(report)
}

// HandleListEntities lists mirrored rows of one type.
func (h *Handler) HandleListEntities(c *fiber.Ctx) error {
	t, err := reconcile.ParseEntityType(c.Params("type"))
	if err != nil {
		return badRequest(c, err)
	}

	rows, err := h.service.Entities(c.UserContext(), t, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Entity listing failed", zap.String("type", string(t)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"type": t, "count": len(rows), "items": rows})
}
