package handlers

import (
	"chainboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// NetworkHandler serves network-wide TPS and cross-chain message stats.
type NetworkHandler struct {
	api *services.APIClient
}

// NewNetworkHandler creates a new network handler
func NewNetworkHandler(api *services.APIClient) *NetworkHandler {
	return &NetworkHandler{api: api}
}

// TPS returns the network-wide TPS summary. Failures surface so the headline
// number is never silently wrong.
func (h *NetworkHandler) TPS(c *fiber.Ctx) error {
	tps, source, err := h.api.NetworkTPS(c.UserContext())
	c.Set("X-Data-Source", string(source))
	if source == services.SourceFallback && err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to load network TPS",
		})
	}
	return c.JSON(tps)
}

// MessageStats returns cross-chain message statistics. Degrades to the zero
// stats object on failure.
func (h *NetworkHandler) MessageStats(c *fiber.Ctx) error {
	stats, source, _ := h.api.MessageStats(c.UserContext())
	c.Set("X-Data-Source", string(source))
	return c.JSON(stats)
}
