// Catalog HTTP handlers.
//
// This file exposes the minimal catalog surface the circulation flows need:
//   - POST /items       (add a catalog title; copies are accessioned separately)
//   - GET  /items/{id}  (title with its availability counters)
//
// Full catalog management and search stay out of this service.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-library-backend/internal/repo"
)

// CreateItemRequest is the JSON payload for adding a catalog title.
type CreateItemRequest struct {
	Title    string `json:"title" binding:"required"`
	ItemType string `json:"item_type" binding:"required"`
	Category string `json:"category"`
}

// CreateItem handles POST /items. New titles start with zero copies; the
// counters move as copies are accessioned and circulate.
func (h *Handlers) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and item_type required")
		return
	}

	it, err := repo.CreateItem(c.Request.Context(), h.db, req.Title, req.ItemType, req.Category)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusCreated, it)
}

// GetItem handles GET /items/:id.
func (h *Handlers) GetItem(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id must be a UUID")
		return
	}

	it, err := repo.GetItem(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "library item not found")
			return
		}
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, it)
}
