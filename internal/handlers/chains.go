package handlers

import (
	"chainboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ChainsHandler serves the chain list and per-chain TPS history.
type ChainsHandler struct {
	api *services.APIClient
}

// NewChainsHandler creates a new chains handler
func NewChainsHandler(api *services.APIClient) *ChainsHandler {
	return &ChainsHandler{api: api}
}

// List returns all tracked chains. Fetch failures degrade to an empty list;
// the dashboard treats that as "no data".
func (h *ChainsHandler) List(c *fiber.Ctx) error {
	chains, source, _ := h.api.Chains(c.UserContext())
	c.Set("X-Data-Source", string(source))
	return c.JSON(chains)
}

// TPSHistory returns the TPS series for one chain. Unlike List, a fetch
// failure here surfaces as an error so the chart view can offer a retry.
func (h *ChainsHandler) TPSHistory(c *fiber.Ctx) error {
	chainID := c.Params("id")
	if chainID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "chain id is required",
		})
	}

	points, source, err := h.api.ChainTPSHistory(c.UserContext(), chainID)
	c.Set("X-Data-Source", string(source))
	if source == services.SourceFallback && err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to load TPS history",
		})
	}
	return c.JSON(points)
}
