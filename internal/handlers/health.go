package handlers

import (
	"chainboard/internal/services"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	api *services.APIClient
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(api *services.APIClient) *HealthHandler {
	return &HealthHandler{api: api}
}

// Handle responds with this server's health plus the upstream API status.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	upstream, source, _ := h.api.Health(c.UserContext())
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"upstream":        upstream,
		"upstream_source": source,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
