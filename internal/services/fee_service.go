// Package services – FeeService
//
// This file implements the fee engine. It has no write dependency on any
// other component: it scans open loans, recomputes delay days and late fees
// as a pure function of "now", and overwrites each affected member's dues
// aggregate. The pass is total, order-independent, and idempotent — a loan
// closed mid-scan is simply skipped on the next pass — so it is triggered
// opportunistically before any dues-sensitive view rather than scheduled.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/repo"
)

// DefaultDailyLateFee is the fee accrued per day past the due date.
const DefaultDailyLateFee = 0.50

// FeeService recomputes late fees and member dues.
type FeeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// DailyRate is the late fee per delayed day.
	DailyRate float64
}

// NewFeeService constructs a FeeService with the default daily rate.
func NewFeeService(db *gorm.DB) *FeeService {
	return &FeeService{DB: db, DailyRate: DefaultDailyLateFee}
}

// RecomputeAll recalculates delay days and late fee for every open loan as
// of now, then overwrites the dues aggregate of every member holding open
// loans. Loans not yet due carry zero delay and zero fee.
func (s *FeeService) RecomputeAll(ctx context.Context, now time.Time) error {
	rate := s.DailyRate
	if rate <= 0 {
		rate = DefaultDailyLateFee
	}

	open, err := repo.ListOpenLoans(ctx, s.DB)
	if err != nil {
		return unavailable(err)
	}

	dues := make(map[string]float64, len(open))
	for _, l := range open {
		delayed := 0
		if now.After(l.DueDate) {
			delayed = int(now.Sub(l.DueDate).Hours() / 24)
		}
		fee := float64(delayed) * rate
		if err := repo.UpdateLoanFee(ctx, s.DB, l.ID, delayed, fee); err != nil {
			return unavailable(err)
		}
		dues[l.MemberID] += fee
	}

	for memberID, total := range dues {
		if err := repo.SetMemberDueAmount(ctx, s.DB, memberID, total); err != nil {
			return unavailable(err)
		}
	}
	return nil
}
