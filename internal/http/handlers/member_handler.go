// Membership HTTP handlers.
//
// This file exposes the REST endpoints for member lifecycle and per-member
// views:
//   - POST   /members                  (register; staff approval follows)
//   - POST   /members/{id}/approve     (approve a pending registration)
//   - POST   /members/{id}/block       (block a member)
//   - GET    /members/{id}             (profile with freshly computed dues)
//   - GET    /members/code/{code}      (desk lookup by card code, with loans)
//   - GET    /members/{id}/notifications
//   - DELETE /notifications/{id}
//   - GET    /transactions             (journal, paginated)
//
// The profile endpoint recomputes late fees before answering so the displayed
// due amount never trails the calendar.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/http/middleware"
	"github.com/tbourn/go-library-backend/internal/repo"
	"github.com/tbourn/go-library-backend/internal/services"
	"github.com/tbourn/go-library-backend/internal/utils"
)

// RegisterMemberRequest is the JSON payload for registering a member.
type RegisterMemberRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required,email"`
	ContactNo string `json:"contact_no"`
}

// MemberWithLoansResponse pairs a member profile with their loans.
type MemberWithLoansResponse struct {
	Member *domain.Member `json:"member"`
	Loans  []domain.Loan  `json:"loans"`
}

// ListNotificationsResponse wraps a member's notifications.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListTransactionsResponse wraps a page of journal entries.
type ListTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	Pagination   Pagination           `json:"pagination"`
}

// RegisterMember handles POST /members. New members start pending and card
// codes are issued sequentially.
func (h *Handlers) RegisterMember(c *gin.Context) {
	var req RegisterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "first_name and a valid email required")
		return
	}

	m, err := h.memSvc.Register(c.Request.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		ContactNo: req.ContactNo,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusCreated, m)
}

// ApproveMember handles POST /members/:id/approve.
func (h *Handlers) ApproveMember(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member id must be a UUID")
		return
	}

	if err := h.memSvc.Approve(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}

	noContent(c)
}

// BlockMember handles POST /members/:id/block.
func (h *Handlers) BlockMember(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member id must be a UUID")
		return
	}

	if err := h.memSvc.Block(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}

	noContent(c)
}

// GetMember handles GET /members/:id. Fees are recomputed first so the due
// amount reflects today, not the last sweep.
func (h *Handlers) GetMember(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member id must be a UUID")
		return
	}

	if err := h.feeSvc.RecomputeAll(ctx, time.Now().UTC()); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("fee recompute failed")
	}

	m, err := h.memSvc.Get(ctx, id)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, m)
}

// GetMemberByCode handles GET /members/code/:code, the desk lookup used when
// a card is scanned. The answer includes the member's open loans.
func (h *Handlers) GetMemberByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member code required")
		return
	}

	m, loans, err := h.memSvc.GetByCode(c.Request.Context(), code)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, MemberWithLoansResponse{Member: m, Loans: loans})
}

// ListNotifications handles GET /members/:id/notifications.
func (h *Handlers) ListNotifications(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member id must be a UUID")
		return
	}

	ns, err := repo.ListNotifications(c.Request.Context(), h.db, id)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, ListNotificationsResponse{Notifications: ns})
}

// DeleteNotification handles DELETE /notifications/:id.
func (h *Handlers) DeleteNotification(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a UUID")
		return
	}

	if err := repo.DeleteNotification(c.Request.Context(), h.db, id); err != nil {
		if err == repo.ErrNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		failErr(c, err)
		return
	}

	noContent(c)
}

// ListTransactions handles GET /transactions with optional branch_id and
// member_id filters plus page/page_size pagination.
func (h *Handlers) ListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	branchID := c.Query("branch_id")
	memID := c.Query("member_id")

	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 20)
	limit, offset := utils.PageWindow(page, pageSize, 20, 100)

	total, err := repo.CountTransactions(ctx, h.db, branchID, memID)
	if err != nil {
		failErr(c, err)
		return
	}
	txs, err := repo.ListTransactionsPage(ctx, h.db, branchID, memID, offset, limit)
	if err != nil {
		failErr(c, err)
		return
	}

	if page < 1 {
		page = 1
	}
	pages := utils.TotalPages(total, limit)
	ok(c, http.StatusOK, ListTransactionsResponse{
		Transactions: txs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   limit,
			Total:      total,
			TotalPages: pages,
			HasNext:    page < pages,
		},
	})
}
