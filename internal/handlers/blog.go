package handlers

import (
	"chainboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BlogHandler serves the blog feed and tag taxonomy.
type BlogHandler struct {
	api *services.APIClient
}

// NewBlogHandler creates a new blog handler
func NewBlogHandler(api *services.APIClient) *BlogHandler {
	return &BlogHandler{api: api}
}

// Posts returns the blog feed, empty on failure.
func (h *BlogHandler) Posts(c *fiber.Ctx) error {
	posts, source, _ := h.api.BlogPosts(c.UserContext())
	c.Set("X-Data-Source", string(source))
	return c.JSON(posts)
}

// Tags returns the blog tag taxonomy, empty on failure.
func (h *BlogHandler) Tags(c *fiber.Ctx) error {
	tags, source, _ := h.api.BlogTags(c.UserContext())
	c.Set("X-Data-Source", string(source))
	return c.JSON(tags)
}
