package handlers

import (
	"chainboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CacheHandler exposes the fetch cache's stats and reset surface.
type CacheHandler struct {
	cache *services.FetchCache
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cache *services.FetchCache) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// Stats returns cache hit/miss/stale counters and the entry count.
func (h *CacheHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.cache.Stats())
}

// Reset clears all cached entries and counters.
func (h *CacheHandler) Reset(c *fiber.Ctx) error {
	h.cache.Reset()
	return c.JSON(fiber.Map{
		"status": "reset",
	})
}
