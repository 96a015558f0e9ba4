package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"wingmate/internal/models"
	"wingmate/internal/services"
)

// FeedbackHandler handles per-message feedback reports
type FeedbackHandler struct {
	feedbackService *services.FeedbackService
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedbackService *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// ReportFeedback records the outcome of one coached message
// POST /api/v1/feedback
func (h *FeedbackHandler) ReportFeedback(c *fiber.Ctx) error {
	var req services.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.PersonID == "" || req.MessageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "person_id and message_id are required",
		})
	}
	if req.Role != models.MessageRoleOpener && req.Role != models.MessageRoleReply {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "role must be \"opener\" or \"reply\"",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fb, err := h.feedbackService.SubmitFeedback(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Unknown person_id",
			})
		}
		log.Printf("❌ [FEEDBACK-API] Failed to process feedback: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process feedback",
		})
	}

	return c.JSON(fiber.Map{
		"feedback_id":  fb.ID.Hex(),
		"opener_type":  fb.OpenerType,
		"strategy_tag": fb.StrategyTag,
	})
}
