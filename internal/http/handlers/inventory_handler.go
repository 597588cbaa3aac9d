// Inventory HTTP handlers.
//
// This file exposes the REST endpoints for the physical copy ledger:
//   - POST   /copies          (accession a copy)
//   - DELETE /copies/{id}     (weed an available copy)
//   - GET    /copies/lookup   (resolve a radio tag to a copy)
//   - GET    /copies          (list shelved copies, optionally per branch)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateCopyRequest is the JSON payload for accessioning a copy.
type CreateCopyRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	BranchID string `json:"branch_id" binding:"required"`
	// Tag is the radio tag glued to the physical copy.
	Tag string `json:"tag" binding:"required"`
}

// ListCopiesResponse wraps a set of copies.
type ListCopiesResponse struct {
	Copies []domain.Copy `json:"copies"`
}

// CreateCopy handles POST /copies.
func (h *Handlers) CreateCopy(c *gin.Context) {
	var req CreateCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id, branch_id and tag required")
		return
	}

	cp, err := h.invSvc.Create(c.Request.Context(), req.ItemID, req.BranchID, req.Tag)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusCreated, cp)
}

// DeleteCopy handles DELETE /copies/:id. Only shelved copies can be weeded;
// anything else answers with a rule violation.
func (h *Handlers) DeleteCopy(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "copy id must be a UUID")
		return
	}

	if err := h.invSvc.Delete(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}

	noContent(c)
}

// LookupCopy handles GET /copies/lookup?tag=…&branch_id=…. The branch filter
// is optional; tags are normalized before matching.
func (h *Handlers) LookupCopy(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tag query parameter required")
		return
	}

	cp, err := h.invSvc.FindByTag(c.Request.Context(), tag, c.Query("branch_id"))
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, cp)
}

// ListAvailableCopies handles GET /copies?branch_id=….
func (h *Handlers) ListAvailableCopies(c *gin.Context) {
	branchID := c.Query("branch_id")
	if branchID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "branch_id query parameter required")
		return
	}

	copies, err := h.invSvc.ListAvailable(c.Request.Context(), branchID)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, ListCopiesResponse{Copies: copies})
}
