// Package services – LoanService
//
// This file implements the loan ledger's member-facing operations: renewing
// an open loan and listing a member's borrowing. Opening and closing loans
// is the coordinator's job (see CirculationService); renewal lives here
// because it touches only the loan itself.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/repo"
)

// DefaultRenewalPeriod is how far a successful renewal pushes the due date.
const DefaultRenewalPeriod = 3 * 7 * 24 * time.Hour

// LoanService provides renewal and listing over the loan ledger.
type LoanService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// RenewalPeriod is the due-date extension per renewal.
	RenewalPeriod time.Duration
}

// NewLoanService constructs a LoanService with the default renewal period.
func NewLoanService(db *gorm.DB) *LoanService {
	return &LoanService{DB: db, RenewalPeriod: DefaultRenewalPeriod}
}

// Renew extends the due date of the member's open loan by one renewal
// period and consumes one renewal slot.
//
// Denied when:
//   - the loan does not exist or belongs to someone else (ErrLoanNotFound),
//   - the loan is already returned (ErrLoanNotOpen),
//   - no renewals remain (ErrRenewalExhausted),
//   - any reservation exists for the item at the loan's branch
//     (ErrReservedByOther — waiting members outrank the current holder).
//
// The update itself is guarded on the renewals-remaining value read here,
// so concurrent renewals of the same loan consume distinct slots or fail.
func (s *LoanService) Renew(ctx context.Context, memberID, loanID string) (*domain.Loan, error) {
	l, err := repo.GetLoan(ctx, s.DB, loanID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, unavailable(err)
	}
	if l.MemberID != memberID {
		return nil, ErrLoanNotFound
	}
	if l.Returned {
		return nil, ErrLoanNotOpen
	}
	if l.RenewalsLeft <= 0 {
		return nil, ErrRenewalExhausted
	}

	reserved, err := repo.AnyReservation(ctx, s.DB, l.ItemID, l.BranchID)
	if err != nil {
		return nil, unavailable(err)
	}
	if reserved {
		return nil, ErrReservedByOther
	}

	period := s.RenewalPeriod
	if period <= 0 {
		period = DefaultRenewalPeriod
	}
	if err := repo.RenewLoan(ctx, s.DB, l, period); err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			return nil, ErrCopyStatusChanged
		}
		return nil, unavailable(err)
	}
	l.DueDate = l.DueDate.Add(period)
	l.RenewalsLeft--
	return l, nil
}

// ListByMember returns the member's loans, optionally restricted to open
// ones. Open loans sort before closed, newest first within each group.
func (s *LoanService) ListByMember(ctx context.Context, memberID string, openOnly bool) ([]domain.Loan, error) {
	out, err := repo.ListLoansByMember(ctx, s.DB, memberID, openOnly)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}
