package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/internal/engine"
	"github.com/rosalind-labs/newswatch/internal/revalidation"
	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rs/zerolog/log"
)

// Handlers contains the HTTP handlers for the API
type Handlers struct {
	engine       *engine.Engine
	store        store.Store
	revalidation *revalidation.Scheduler
}

// NewHandlers creates a new handlers instance. revalidation may be nil when
// the sweep endpoint is not exposed.
func NewHandlers(eng *engine.Engine, st store.Store, reval *revalidation.Scheduler) *Handlers {
	return &Handlers{
		engine:       eng,
		store:        st,
		revalidation: reval,
	}
}

// RegisterRoutes mounts all API routes on the app.
func (h *Handlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	v1.Post("/sources", h.CreateSource)
	v1.Get("/sources", h.ListSources)
	v1.Get("/sources/:id", h.GetSource)
	v1.Get("/sources/:id/audit", h.GetAudit)
	v1.Post("/sources/:id/crawl", h.CrawlSource)
	v1.Post("/sources/:id/regenerate", h.RegenerateStrategy)
	v1.Post("/revalidation/sweep", h.RunSweep)
	v1.Get("/metrics", h.Metrics)
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	if err := h.store.Health(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "newswatch",
		"version":   "0.1.0",
		"timestamp": time.Now().UTC(),
	})
}

// CreateSourceRequest represents a source onboarding request
type CreateSourceRequest struct {
	Name                 string `json:"name"`
	BaseURL              string `json:"base_url"`
	Language             string `json:"language"`
	Country              string `json:"country"`
	CrawlDelaySeconds    int    `json:"crawl_delay_seconds"`
	TermsURL             string `json:"terms_url"`
	LegalContact         string `json:"legal_contact"`
	FairUseJustification string `json:"fair_use_justification"`
}

// CreateSource onboards a new source. Validation runs synchronously; the
// response carries the score, any violations with recommendations, and the
// generated strategy when the source passed.
func (h *Handlers) CreateSource(c *fiber.Ctx) error {
	var req CreateSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	src := &article.Source{
		Name:                 req.Name,
		BaseURL:              req.BaseURL,
		Language:             req.Language,
		Country:              req.Country,
		CrawlDelaySeconds:    req.CrawlDelaySeconds,
		TermsURL:             req.TermsURL,
		LegalContact:         req.LegalContact,
		FairUseJustification: req.FairUseJustification,
	}

	result, err := h.engine.OnboardSource(c.Context(), src)
	if err != nil {
		if errors.Is(err, store.ErrSourceExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Source base URL already registered",
			})
		}
		log.Error().Err(err).Str("base_url", req.BaseURL).Msg("Source onboarding failed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Onboarding failed",
			"details": err.Error(),
		})
	}

	status := fiber.StatusCreated
	if !result.Validation.Passed {
		// The source is stored for the audit trail but never activated.
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(result)
}

// ListSources returns all registered sources.
func (h *Handlers) ListSources(c *fiber.Ctx) error {
	sources, err := h.store.ListSources(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to list sources",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"sources": sources,
		"count":   len(sources),
	})
}

// GetSource returns one source by ID.
func (h *Handlers) GetSource(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid source ID",
		})
	}

	src, err := h.store.GetSource(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Source not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to load source",
			"details": err.Error(),
		})
	}
	return c.JSON(src)
}

// GetAudit returns the append-only compliance audit trail for a source.
func (h *Handlers) GetAudit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid source ID",
		})
	}

	entries, err := h.store.ListAudit(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to load audit trail",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"source_id": id,
		"entries":   entries,
		"count":     len(entries),
	})
}

// CrawlSource triggers one synchronous crawl cycle for a source.
func (h *Handlers) CrawlSource(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid source ID",
		})
	}

	outcomes, err := h.engine.CrawlSource(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Source not found",
			})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "Crawl refused",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"source_id": id,
		"outcomes":  outcomes,
		"count":     len(outcomes),
	})
}

// RegenerateStrategy forces a strategy rebuild for a source.
func (h *Handlers) RegenerateStrategy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid source ID",
		})
	}

	strategy, err := h.engine.RegenerateStrategy(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Source not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Regeneration failed",
			"details": err.Error(),
		})
	}
	return c.JSON(strategy)
}

// RunSweep triggers a revalidation sweep outside the cron cadence.
func (h *Handlers) RunSweep(c *fiber.Ctx) error {
	if h.revalidation == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Revalidation is not enabled",
		})
	}

	report, err := h.revalidation.RunSweep(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Sweep failed",
			"details": err.Error(),
		})
	}
	return c.JSON(report)
}

// Metrics returns the engine counters and corpus size.
func (h *Handlers) Metrics(c *fiber.Ctx) error {
	count, err := h.store.CountArticles(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to count articles",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"engine":   h.engine.GetMetrics(),
		"articles": count,
	})
}
