// Transfer HTTP handlers.
//
// This file exposes the REST endpoints for inter-branch rerouting:
//   - POST /transfers/{id}/dispatch  (courier picked the copy up)
//   - GET  /transfers                (list, filtered by branch/status)
//
// Listing sweeps overdue in-transit transfers first so callers always see a
// reconciled view; couriers rarely confirm arrival, the timeout does.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/http/middleware"
)

// DispatchTransferRequest is the JSON payload confirming courier pickup.
// CopyID must match the transfer's copy; the cross-check catches mixed-up
// crates at the loading desk.
type DispatchTransferRequest struct {
	CopyID string `json:"copy_id" binding:"required"`
}

// ListTransfersResponse wraps a set of transfers plus the number of overdue
// in-transit transfers the sweep just resolved.
type ListTransfersResponse struct {
	Transfers []domain.Transfer `json:"transfers"`
	Swept     int               `json:"swept"`
}

// DispatchTransfer handles POST /transfers/:id/dispatch.
func (h *Handlers) DispatchTransfer(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "transfer id must be a UUID")
		return
	}

	var req DispatchTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "copy_id required")
		return
	}

	if err := h.xferSvc.Dispatch(c.Request.Context(), id, req.CopyID); err != nil {
		failErr(c, err)
		return
	}

	noContent(c)
}

// ListTransfers handles GET /transfers?branch_id=…&status=…. Pending is the
// default status filter.
func (h *Handlers) ListTransfers(c *gin.Context) {
	ctx := c.Request.Context()

	swept, err := h.xferSvc.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		// A failed sweep should not hide the listing; log and continue.
		middleware.LoggerFrom(c).Warn().Err(err).Msg("transfer sweep failed")
	}

	status := domain.TransferStatus(c.Query("status"))
	transfers, err := h.xferSvc.List(ctx, c.Query("branch_id"), status)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, ListTransfersResponse{Transfers: transfers, Swept: swept})
}
