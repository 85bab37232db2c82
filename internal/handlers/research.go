package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"trendscope/internal/models"
	"trendscope/internal/services"
)

// ResearchHandler handles research session HTTP requests
type ResearchHandler struct {
	research *services.ResearchService
	store    *services.SessionStore
	catalog  *services.QuestionCatalog
}

// NewResearchHandler creates a new research handler
func NewResearchHandler(research *services.ResearchService, store *services.SessionStore, catalog *services.QuestionCatalog) *ResearchHandler {
	return &ResearchHandler{
		research: research,
		store:    store,
		catalog:  catalog,
	}
}

// Start admits a new research session
// POST /api/research/start
func (h *ResearchHandler) Start(c *fiber.Ctx) error {
	var req models.StartResearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.research.Start(req)
	if err != nil {
		if errors.Is(err, services.ErrCapacityExceeded) {
			log.Printf("🚫 [RESEARCH] start rejected: at capacity")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Maximum concurrent research sessions reached. Try again later.",
			})
		}
		if errors.Is(err, services.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("❌ [RESEARCH] start failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start research session",
		})
	}

	log.Printf("🔬 [RESEARCH] session %s started", resp.SessionID)
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Status returns the session's phase, progress and full progress log
// GET /api/research/:id/status
func (h *ResearchHandler) Status(c *fiber.Ctx) error {
	session, err := h.store.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Research session not found",
		})
	}

	return c.JSON(models.StatusResponse{
		SessionID:       session.ID,
		Phase:           session.Phase,
		ProgressPercent: session.ProgressPercent,
		CurrentAgent:    session.CurrentAgent,
		ProgressLog:     session.ProgressLog,
		StartedAt:       session.CreatedAt,
		CompletedAt:     session.CompletedAt,
		Error:           session.Error,
	})
}

// Result returns the final report once the session has completed
// GET /api/research/:id/result
func (h *ResearchHandler) Result(c *fiber.Ctx) error {
	session, err := h.store.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Research session not found",
		})
	}

	switch session.Phase {
	case models.PhaseCompleted:
		return c.JSON(fiber.Map{
			"session_id": session.ID,
			"result":     session.Result,
		})
	case models.PhaseFailed:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "Research session failed",
			"phase":  session.Phase,
			"reason": session.Error,
		})
	default:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":               "Research still in progress",
			"phase":               session.Phase,
			"progress_percentage": session.ProgressPercent,
		})
	}
}

// Delete removes a session, cancelling it if still running
// DELETE /api/research/:id
func (h *ResearchHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.store.Delete(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Research session not found",
		})
	}

	log.Printf("🗑️ [RESEARCH] session %s deleted by client", id)
	return c.JSON(fiber.Map{
		"session_id": id,
		"deleted":    true,
	})
}

// List returns summaries of held sessions, optionally filtered by
// conversation_id and phase
// GET /api/research/sessions?conversation_id=...&phase=...
func (h *ResearchHandler) List(c *fiber.Ctx) error {
	phase := models.Phase(c.Query("phase"))
	if phase != "" && !phase.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown phase filter",
		})
	}

	sessions := h.store.List(c.Query("conversation_id"), phase)
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Stats reports store occupancy
// GET /api/research/statistics
func (h *ResearchHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.store.Stats())
}

// Questions returns the preconfigured research question catalog
// GET /api/research/questions
func (h *ResearchHandler) Questions(c *fiber.Ctx) error {
	questions := h.catalog.All()
	return c.JSON(fiber.Map{
		"questions": questions,
		"count":     len(questions),
	})
}
