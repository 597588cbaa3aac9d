// Reservation HTTP handlers.
//
// This file exposes the REST endpoints for the waiting list:
//   - POST   /reservations        (join the waiting list for an item)
//   - DELETE /reservations/{id}   (cancel a reservation)
//   - GET    /reservations        (list, filtered by member/item/branch)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateReservationRequest is the JSON payload for joining the waiting list.
type CreateReservationRequest struct {
	MemberID string `json:"member_id" binding:"required"`
	ItemID   string `json:"item_id" binding:"required"`
	BranchID string `json:"branch_id" binding:"required"`
}

// ListReservationsResponse wraps a set of reservations.
type ListReservationsResponse struct {
	Reservations []domain.Reservation `json:"reservations"`
}

// CreateReservation handles POST /reservations. Reservations are only
// accepted when no copy of the item is shelved at the branch and the member
// does not already hold the item.
func (h *Handlers) CreateReservation(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member_id, item_id and branch_id required")
		return
	}

	resv, err := h.resvSvc.Reserve(c.Request.Context(), req.MemberID, req.ItemID, req.BranchID)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusCreated, resv)
}

// CancelReservation handles DELETE /reservations/:id.
func (h *Handlers) CancelReservation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reservation id must be a UUID")
		return
	}

	if err := h.resvSvc.Cancel(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}

	noContent(c)
}

// ListReservations handles GET /reservations with optional member_id,
// item_id, and branch_id filters.
func (h *Handlers) ListReservations(c *gin.Context) {
	resvs, err := h.resvSvc.List(c.Request.Context(),
		c.Query("member_id"), c.Query("item_id"), c.Query("branch_id"))
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, ListReservationsResponse{Reservations: resvs})
}
