// Package services – CirculationService
//
// This file implements the circulation coordinator, the only component that
// touches more than one record store in a single business operation.
// Checkout and return each orchestrate the copy ledger, the loan ledger,
// the catalog counters, and (on return) the transfer and reservation
// managers. Every multi-record mutation runs inside a storage transaction,
// and the copy-status compare-and-set decides the winner when two terminals
// act on the same tag concurrently.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/repo"
)

// Default circulation parameters, matching the lending policy.
const (
	DefaultLoanPeriod = 21 * 24 * time.Hour
	DefaultRenewalCap = 2
)

// TagOutcome is the per-tag result of a batch checkout. Err is nil when the
// tag was borrowed and Loan is set.
type TagOutcome struct {
	Tag  string
	Loan *domain.Loan
	Err  error
}

// CheckoutResult aggregates the outcomes of a batch checkout. Tags are
// processed independently: a failure on one tag neither stops nor rolls
// back the others, and each outcome is reported per item.
type CheckoutResult struct {
	Member   *domain.Member
	Outcomes []TagOutcome
}

// AllOK reports whether every tag in the batch was borrowed.
func (r *CheckoutResult) AllOK() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// ReturnResult describes how a return was resolved: back to the shelf
// (Transfer nil) or handed to the transfer manager (Transfer set).
type ReturnResult struct {
	Loan     *domain.Loan
	Copy     *domain.Copy
	Transfer *domain.Transfer
	FeePaid  float64
}

// CirculationService coordinates checkout and return across the ledgers.
type CirculationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Reservations consumes waiting-list entries when copies come home.
	Reservations *ReservationService

	// LoanPeriod is the initial borrowing window.
	LoanPeriod time.Duration
	// RenewalCap is the number of renewals a fresh loan starts with.
	RenewalCap int
}

// NewCirculationService constructs a coordinator with the default lending
// policy.
func NewCirculationService(db *gorm.DB, resv *ReservationService) *CirculationService {
	return &CirculationService{
		DB:           db,
		Reservations: resv,
		LoanPeriod:   DefaultLoanPeriod,
		RenewalCap:   DefaultRenewalCap,
	}
}

// Checkout borrows the copies carrying the given radio tags to the member
// identified by the human-facing code (e.g. MEM1001). The member must be
// approved. Tags are processed one by one; each tag's mutations — loan row,
// copy transition, counter decrement, reservation cleanup, journal entry —
// commit atomically, and per-tag failures are reported in the result rather
// than aborting the batch.
func (s *CirculationService) Checkout(ctx context.Context, memberCode string, tags []string) (*CheckoutResult, error) {
	if len(tags) == 0 {
		return nil, ErrEmptyTagList
	}
	member, err := repo.GetMemberByCode(ctx, s.DB, memberCode)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, unavailable(err)
	}
	if member.Status != domain.MemberApproved {
		return nil, ErrMemberNotApproved
	}

	res := &CheckoutResult{Member: member, Outcomes: make([]TagOutcome, 0, len(tags))}
	for _, tag := range tags {
		loan, err := s.checkoutOne(ctx, member, tag)
		res.Outcomes = append(res.Outcomes, TagOutcome{Tag: repo.NormalizeTag(tag), Loan: loan, Err: err})
	}
	return res, nil
}

// checkoutOne borrows a single tag inside one storage transaction. The copy
// transition available → borrowed runs before any dependent write, so the
// loser of a double-scan race fails fast with a conflict and leaves no
// partial state behind.
func (s *CirculationService) checkoutOne(ctx context.Context, member *domain.Member, tag string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cp, err := repo.FindCopyByTag(ctx, tx, tag, "")
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrCopyNotFound
			}
			return err
		}

		borrowed, err := repo.HasOpenLoan(ctx, tx, member.ID, cp.ItemID)
		if err != nil {
			return err
		}
		if borrowed {
			return ErrAlreadyBorrowed
		}

		if err := repo.TransitionCopy(ctx, tx, cp.ID, domain.CopyAvailable, domain.CopyBorrowed,
			map[string]any{"borrower_id": member.ID}); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return ErrCopyNotAvailable
			}
			return err
		}

		loan, err = repo.CreateLoan(ctx, tx, member, cp, s.loanPeriod(), s.renewalCap())
		if err != nil {
			return err
		}
		if err := repo.AddItemCounters(ctx, tx, cp.ItemID, 0, -1); err != nil {
			return err
		}
		// A reservation the member held on this item is satisfied by the
		// checkout itself.
		if err := repo.DeleteReservationByMemberItem(ctx, tx, member.ID, cp.ItemID); err != nil {
			return err
		}
		_, err = repo.CreateTransaction(ctx, tx, &domain.Transaction{
			MemberID: member.ID,
			ItemID:   cp.ItemID,
			CopyID:   cp.ID,
			Type:     domain.TransactionBorrow,
			BranchID: cp.OriginalBranchID,
			DueDate:  &loan.DueDate,
		})
		return err
	})
	if err != nil {
		loan = nil
		var se *Error
		if !errors.As(err, &se) {
			return nil, unavailable(err)
		}
		return nil, err
	}
	return loan, nil
}

// Return closes the open loan on a copy. When the return branch is the
// copy's home branch the copy goes straight back to available and the
// oldest waiting reservation is notified; otherwise the copy is handed to
// the transfer manager as a pending transfer. A return journal entry is
// always appended, recording the outstanding late fee as the amount paid.
//
// An empty returnBranchID means the copy came back to its home branch.
func (s *CirculationService) Return(ctx context.Context, copyID, returnBranchID string) (*ReturnResult, error) {
	cp, err := repo.GetCopy(ctx, s.DB, copyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCopyNotFound
		}
		return nil, unavailable(err)
	}
	loan, err := repo.GetOpenLoanByCopy(ctx, s.DB, copyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotBorrowed
		}
		return nil, unavailable(err)
	}

	if returnBranchID == "" {
		returnBranchID = cp.OriginalBranchID
	}
	cameHome := returnBranchID == cp.OriginalBranchID
	now := time.Now().UTC()

	var transfer *domain.Transfer
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := repo.CloseLoan(ctx, tx, loan.ID, now); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return ErrLoanNotOpen
			}
			return err
		}

		if cameHome {
			if err := repo.TransitionCopy(ctx, tx, cp.ID, domain.CopyBorrowed, domain.CopyAvailable,
				map[string]any{"borrower_id": nil, "current_branch_id": cp.OriginalBranchID}); err != nil {
				if errors.Is(err, repo.ErrStaleStatus) {
					return ErrCopyStatusChanged
				}
				return err
			}
			if err := repo.AddItemCounters(ctx, tx, cp.ItemID, 0, 1); err != nil {
				return err
			}
		} else {
			if err := repo.TransitionCopy(ctx, tx, cp.ID, domain.CopyBorrowed, domain.CopyAtOtherBranch,
				map[string]any{"borrower_id": nil, "current_branch_id": returnBranchID}); err != nil {
				if errors.Is(err, repo.ErrStaleStatus) {
					return ErrCopyStatusChanged
				}
				return err
			}
			var err error
			transfer, err = repo.CreateTransfer(ctx, tx, cp, returnBranchID)
			if err != nil {
				return err
			}
		}

		_, err := repo.CreateTransaction(ctx, tx, &domain.Transaction{
			MemberID:   loan.MemberID,
			ItemID:     loan.ItemID,
			CopyID:     cp.ID,
			Type:       domain.TransactionReturn,
			BranchID:   returnBranchID,
			PaidAmount: loan.LateFee,
		})
		return err
	})
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			return nil, unavailable(err)
		}
		return nil, err
	}

	// Reservation promotion happens after commit: the copy is genuinely on
	// the shelf by the time the waiting member is told so.
	if cameHome && s.Reservations != nil {
		if err := s.Reservations.ConsumeOnReturn(ctx, cp.ItemID, cp.OriginalBranchID); err != nil {
			log.Warn().Err(err).Str("copy_id", cp.ID).Msg("reservation promotion failed")
		}
	}

	out, err := repo.GetCopy(ctx, s.DB, cp.ID)
	if err != nil {
		out = cp
	}
	closed := *loan
	closed.Returned = true
	closed.ReturnedAt = &now
	return &ReturnResult{Loan: &closed, Copy: out, Transfer: transfer, FeePaid: loan.LateFee}, nil
}

func (s *CirculationService) loanPeriod() time.Duration {
	if s.LoanPeriod <= 0 {
		return DefaultLoanPeriod
	}
	return s.LoanPeriod
}

func (s *CirculationService) renewalCap() int {
	if s.RenewalCap <= 0 {
		return DefaultRenewalCap
	}
	return s.RenewalCap
}
