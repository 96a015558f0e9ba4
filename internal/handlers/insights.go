package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"wingmate/internal/services"
)

// InsightsHandler serves the read-only insight brief
type InsightsHandler struct {
	insightsService *services.InsightsService
}

// NewInsightsHandler creates a new insights handler
func NewInsightsHandler(insightsService *services.InsightsService) *InsightsHandler {
	return &InsightsHandler{insightsService: insightsService}
}

// GetInsightBrief renders the collective knowledge brief for a name+platform
// GET /api/v1/insights?name=Ana&platform=tinder
func (h *InsightsHandler) GetInsightBrief(c *fiber.Ctx) error {
	name := c.Query("name")
	platform := c.Query("platform")
	if name == "" || platform == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and platform query parameters are required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	brief, err := h.insightsService.BriefFor(ctx, name, platform)
	if err != nil {
		log.Printf("❌ [INSIGHTS-API] Failed to build brief: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build insight brief",
		})
	}

	// An empty brief means "not enough collective knowledge yet".
	return c.JSON(fiber.Map{
		"brief":     brief,
		"available": brief != "",
	})
}
