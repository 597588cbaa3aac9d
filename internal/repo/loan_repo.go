// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the loan ledger: opening, closing, and
// renewing borrowing episodes.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateLoan opens a loan for member on copy, due after loanPeriod, with
// renewalCap renewals remaining.
func CreateLoan(ctx context.Context, db *gorm.DB, member *domain.Member, cp *domain.Copy, loanPeriod time.Duration, renewalCap int) (*domain.Loan, error) {
	now := time.Now().UTC()
	l := &domain.Loan{
		ID:           uuid.NewString(),
		MemberID:     member.ID,
		ItemID:       cp.ItemID,
		CopyID:       cp.ID,
		BranchID:     cp.OriginalBranchID,
		RFID:         cp.RFID,
		BorrowedAt:   now,
		DueDate:      now.Add(loanPeriod),
		RenewalsLeft: renewalCap,
		CreatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// GetLoan fetches a loan by primary key, or ErrNotFound.
func GetLoan(ctx context.Context, db *gorm.DB, id string) (*domain.Loan, error) {
	var l domain.Loan
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetOpenLoanByCopy fetches the single open loan for a copy, or ErrNotFound.
func GetOpenLoanByCopy(ctx context.Context, db *gorm.DB, copyID string) (*domain.Loan, error) {
	var l domain.Loan
	err := db.WithContext(ctx).
		Where("copy_id = ? AND returned = ?", copyID, false).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// HasOpenLoan reports whether member already holds an open loan on item.
func HasOpenLoan(ctx context.Context, db *gorm.DB, memberID, itemID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Loan{}).
		Where("member_id = ? AND item_id = ? AND returned = ?", memberID, itemID, false).
		Count(&n).Error
	return n > 0, err
}

// CloseLoan marks an open loan returned at the given time. The update is
// guarded on returned=false: a loan already closed by a concurrent return
// yields ErrStaleStatus, never a double close.
func CloseLoan(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Loan{}).
		Where("id = ? AND returned = ?", id, false).
		Updates(map[string]any{"returned": true, "returned_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(&domain.Loan{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

// RenewLoan advances the due date and decrements renewals-remaining in one
// guarded UPDATE. The guard compares renewals_left against the value the
// caller read, so two concurrent renewals cannot both consume the same slot.
func RenewLoan(ctx context.Context, db *gorm.DB, l *domain.Loan, period time.Duration) error {
	res := db.WithContext(ctx).
		Model(&domain.Loan{}).
		Where("id = ? AND returned = ? AND renewals_left = ?", l.ID, false, l.RenewalsLeft).
		Updates(map[string]any{
			"due_date":      l.DueDate.Add(period),
			"renewals_left": l.RenewalsLeft - 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ListOpenLoans returns every loan with returned=false. The fee engine scans
// this set on each recomputation pass; cost stays linear in open loans.
func ListOpenLoans(ctx context.Context, db *gorm.DB) ([]domain.Loan, error) {
	var out []domain.Loan
	err := db.WithContext(ctx).
		Where("returned = ?", false).
		Find(&out).Error
	return out, err
}

// ListLoansByMember returns a member's loans, open first, newest first
// within each group.
func ListLoansByMember(ctx context.Context, db *gorm.DB, memberID string, openOnly bool) ([]domain.Loan, error) {
	q := db.WithContext(ctx).Where("member_id = ?", memberID)
	if openOnly {
		q = q.Where("returned = ?", false)
	}
	var out []domain.Loan
	err := q.Order("returned asc, borrowed_at desc").Find(&out).Error
	return out, err
}

// UpdateLoanFee writes the fee engine's recomputed delay/fee fields.
func UpdateLoanFee(ctx context.Context, db *gorm.DB, id string, delayedDays int, lateFee float64) error {
	return db.WithContext(ctx).
		Model(&domain.Loan{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"delayed_days": delayedDays, "late_fee": lateFee}).Error
}
