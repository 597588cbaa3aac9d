// Circulation HTTP handlers.
//
// This file exposes the REST endpoints for the checkout and return flows:
//   - POST /checkouts            (batch checkout by member code + radio tags)
//   - POST /returns              (return a copy, optionally at a foreign branch)
//   - POST /loans/{id}/renew     (renew an open loan)
//   - GET  /members/{id}/loans   (list a member's loans)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Desk software retries checkout
// aggressively, so POST /checkouts honors the Idempotency-Key header: a replay
// returns the member's current open loans with Idempotency-Replayed: true.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/repo"
	"github.com/tbourn/go-library-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// CirculationService defines the coordinated checkout/return operations
// consumed by HTTP handlers. Implementations must be safe for concurrent use
// and honor the provided context.
type CirculationService interface {
	// Checkout borrows the copies carrying tags to the member with memberCode.
	Checkout(ctx context.Context, memberCode string, tags []string) (*services.CheckoutResult, error)
	// Return closes the open loan on copyID, shelving or rerouting the copy.
	Return(ctx context.Context, copyID, returnBranchID string) (*services.ReturnResult, error)
}

// LoanService defines loan ledger operations consumed by HTTP handlers.
type LoanService interface {
	// Renew extends a loan owned by memberID, spending one renewal.
	Renew(ctx context.Context, memberID, loanID string) (*domain.Loan, error)
	// ListByMember returns a member's loans, optionally only open ones.
	ListByMember(ctx context.Context, memberID string, openOnly bool) ([]domain.Loan, error)
}

// ReservationService defines waiting-list operations consumed by HTTP handlers.
type ReservationService interface {
	Reserve(ctx context.Context, memberID, itemID, branchID string) (*domain.Reservation, error)
	Cancel(ctx context.Context, reservationID string) error
	List(ctx context.Context, memberID, itemID, branchID string) ([]domain.Reservation, error)
}

// TransferService defines inter-branch rerouting operations consumed by HTTP
// handlers.
type TransferService interface {
	Dispatch(ctx context.Context, transferID, copyID string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	List(ctx context.Context, fromBranchID string, status domain.TransferStatus) ([]domain.Transfer, error)
}

// InventoryService defines copy ledger operations consumed by HTTP handlers.
type InventoryService interface {
	Create(ctx context.Context, itemID, branchID, tag string) (*domain.Copy, error)
	Delete(ctx context.Context, copyID string) error
	FindByTag(ctx context.Context, tag, branchID string) (*domain.Copy, error)
	ListAvailable(ctx context.Context, branchID string) ([]domain.Copy, error)
}

// MemberService defines membership lifecycle operations consumed by HTTP
// handlers.
type MemberService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.Member, error)
	Approve(ctx context.Context, memberID string) error
	Block(ctx context.Context, memberID string) error
	Get(ctx context.Context, memberID string) (*domain.Member, error)
	GetByCode(ctx context.Context, code string) (*domain.Member, []domain.Loan, error)
}

// FeeService defines late-fee recomputation consumed by HTTP handlers.
type FeeService interface {
	RecomputeAll(ctx context.Context, now time.Time) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for circulation, inventory, reservations,
// transfers, and membership. It depends on abstract service interfaces to keep
// transport concerns separate from business logic. The DB handle is used only
// for idempotency bookkeeping.
type Handlers struct {
	circSvc CirculationService
	loanSvc LoanService
	resvSvc ReservationService
	xferSvc TransferService
	invSvc  InventoryService
	memSvc  MemberService
	feeSvc  FeeService

	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services. idemTTL
// bounds how long an Idempotency-Key replays; values <= 0 default to 24h.
func New(circ CirculationService, loans LoanService, resv ReservationService,
	xfer TransferService, inv InventoryService, mem MemberService, fees FeeService,
	db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		circSvc: circ,
		loanSvc: loans,
		resvSvc: resv,
		xferSvc: xfer,
		invSvc:  inv,
		memSvc:  mem,
		feeSvc:  fees,
		db:      db,
		idemTTL: idemTTL,
	}
}

// memberID extracts the acting member id from the Gin context (set by
// upstream middleware), falling back to the "X-Member-ID" header (tests use
// it). It never touches c.Request when nil.
func memberID(c *gin.Context) string {
	if v, ok := c.Get("memberID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Member-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// CheckoutRequest is the JSON payload for a batch checkout.
type CheckoutRequest struct {
	// MemberCode is the human-facing card code, e.g. MEM1001.
	MemberCode string `json:"member_code" binding:"required"`
	// Tags lists the radio tags scanned at the desk.
	Tags []string `json:"tags" binding:"required"`
}

// TagOutcomeView is the per-tag result of a batch checkout.
type TagOutcomeView struct {
	Tag   string       `json:"tag"`
	Loan  *domain.Loan `json:"loan,omitempty"`
	Error string       `json:"error,omitempty"`
	Code  string       `json:"code,omitempty"`
}

// CheckoutResponse reports the member and the per-tag outcomes.
type CheckoutResponse struct {
	Member   *domain.Member   `json:"member"`
	Outcomes []TagOutcomeView `json:"outcomes"`
	AllOK    bool             `json:"all_ok"`
}

// ReturnRequest is the JSON payload for returning a copy. BranchID may name a
// foreign branch; empty means the copy came back to its home branch.
type ReturnRequest struct {
	CopyID   string `json:"copy_id" binding:"required"`
	BranchID string `json:"branch_id"`
}

// ReturnResponse reports how the return was resolved. Transfer is set only
// when the copy was returned away from home and now awaits rerouting.
type ReturnResponse struct {
	Loan     *domain.Loan     `json:"loan"`
	Copy     *domain.Copy     `json:"copy"`
	Transfer *domain.Transfer `json:"transfer,omitempty"`
	FeePaid  float64          `json:"fee_paid"`
}

// ListLoansResponse wraps a member's loans.
type ListLoansResponse struct {
	Loans []domain.Loan `json:"loans"`
}

//
// Endpoints
//

// Checkout handles POST /checkouts. Tags are processed independently; a
// failure on one neither stops nor rolls back the others, and the outcome of
// every tag is reported.
func (h *Handlers) Checkout(c *gin.Context) {
	ctx := c.Request.Context()

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member_code and tags required")
		return
	}

	// Replay path: a completed checkout under the same key answers with the
	// member's open loans instead of borrowing again.
	idemKey := idempotencyKey(c)
	if idemKey != "" && h.db != nil {
		scope := idemScope(c)
		if rec, err := repo.GetIdempotency(ctx, h.db, req.MemberCode, scope, idemKey, time.Now().UTC()); err == nil && rec != nil {
			member, loans, err2 := h.memSvc.GetByCode(ctx, req.MemberCode)
			if err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				outcomes := make([]TagOutcomeView, 0, len(loans))
				for i := range loans {
					outcomes = append(outcomes, TagOutcomeView{Tag: loans[i].RFID, Loan: &loans[i]})
				}
				ok(c, http.StatusOK, CheckoutResponse{Member: member, Outcomes: outcomes, AllOK: true})
				return
			}
		}
	}

	res, err := h.circSvc.Checkout(ctx, req.MemberCode, req.Tags)
	if err != nil {
		failErr(c, err)
		return
	}

	// Store path, best effort.
	if idemKey != "" && h.db != nil && res.AllOK() {
		_, _ = repo.CreateIdempotency(ctx, h.db, req.MemberCode, idemScope(c), idemKey, res.Member.ID, http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusOK, checkoutView(res))
}

// Return handles POST /returns.
func (h *Handlers) Return(c *gin.Context) {
	ctx := c.Request.Context()

	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "copy_id required")
		return
	}
	if _, err := uuid.Parse(req.CopyID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "copy_id must be a UUID")
		return
	}

	res, err := h.circSvc.Return(ctx, req.CopyID, req.BranchID)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, ReturnResponse{
		Loan:     res.Loan,
		Copy:     res.Copy,
		Transfer: res.Transfer,
		FeePaid:  res.FeePaid,
	})
}

// RenewLoan handles POST /loans/:id/renew. The acting member comes from the
// context or the X-Member-ID header; renewing someone else's loan reads as
// not found.
func (h *Handlers) RenewLoan(c *gin.Context) {
	ctx := c.Request.Context()
	loanID := c.Param("id")

	if _, err := uuid.Parse(loanID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "loan id must be a UUID")
		return
	}
	mid := memberID(c)
	if mid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member identity required")
		return
	}

	loan, err := h.loanSvc.Renew(ctx, mid, loanID)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, loan)
}

// ListMemberLoans handles GET /members/:id/loans. The open query flag limits
// the listing to loans not yet returned.
func (h *Handlers) ListMemberLoans(c *gin.Context) {
	ctx := c.Request.Context()
	mid := c.Param("id")

	if _, err := uuid.Parse(mid); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member id must be a UUID")
		return
	}
	openOnly := c.Query("open") == "true"

	loans, err := h.loanSvc.ListByMember(ctx, mid, openOnly)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, ListLoansResponse{Loans: loans})
}

//
// Helpers
//

// checkoutView flattens the service checkout result into the response DTO.
// Per-tag errors surface as message + code so desk software can branch.
func checkoutView(res *services.CheckoutResult) CheckoutResponse {
	out := CheckoutResponse{Member: res.Member, AllOK: res.AllOK()}
	out.Outcomes = make([]TagOutcomeView, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		v := TagOutcomeView{Tag: o.Tag, Loan: o.Loan}
		if o.Err != nil {
			v.Error = o.Err.Error()
			_, v.Code = statusFor(services.KindOf(o.Err))
		}
		out.Outcomes = append(out.Outcomes, v)
	}
	return out
}

// idempotencyKey reads the Idempotency-Key header directly so handlers work
// with or without the dedicated validator middleware.
func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("Idempotency-Key"))
}

// idemScope derives the idempotency scope from the matched route.
func idemScope(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
