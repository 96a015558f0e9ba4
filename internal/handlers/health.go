package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"wingmate/internal/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	mongodb *database.MongoDB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(mongodb *database.MongoDB) *HealthHandler {
	return &HealthHandler{mongodb: mongodb}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := "healthy"
	if err := h.mongodb.Ping(ctx); err != nil {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
