package handlers

import (
	"chainboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProposalsHandler serves the proposal list, detail, stats and reader views.
type ProposalsHandler struct {
	proposals *services.ProposalService
}

// NewProposalsHandler creates a new proposals handler
func NewProposalsHandler(proposals *services.ProposalService) *ProposalsHandler {
	return &ProposalsHandler{proposals: proposals}
}

// List returns proposals, optionally filtered by status, track and tag query
// parameters. Failures surface so the proposals view can show its retry state.
func (h *ProposalsHandler) List(c *fiber.Ctx) error {
	filter := services.ProposalFilter{
		Status: c.Query("status"),
		Track:  c.Query("track"),
		Tag:    c.Query("tag"),
	}

	proposals, source, err := h.proposals.List(c.UserContext(), filter)
	c.Set("X-Data-Source", string(source))
	if source == services.SourceFallback && err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to load proposals",
		})
	}
	return c.JSON(proposals)
}

// Get returns one proposal by id.
func (h *ProposalsHandler) Get(c *fiber.Ctx) error {
	proposal, source, err := h.proposals.Get(c.UserContext(), c.Params("id"))
	c.Set("X-Data-Source", string(source))
	if source == services.SourceFallback && err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to load proposals",
		})
	}
	if proposal == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "proposal not found",
		})
	}
	return c.JSON(proposal)
}

// Stats returns aggregate counts by status, track and complexity.
func (h *ProposalsHandler) Stats(c *fiber.Ctx) error {
	stats, source, _ := h.proposals.Stats(c.UserContext())
	c.Set("X-Data-Source", string(source))
	return c.JSON(stats)
}

// HTML renders one proposal's markdown body for the reader view.
func (h *ProposalsHandler) HTML(c *fiber.Ctx) error {
	html, err := h.proposals.RenderHTML(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to render proposal",
		})
	}
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(html)
}
