// Package services – CopyService
//
// This file implements the copy ledger: adding physical copies to the
// catalog, soft-removing them, and the tag lookups the checkout desk uses.
// Status transitions themselves live in the repo layer as compare-and-set
// updates; this service supplies the business rules around them and keeps
// the denormalized item counters in step with every copy it creates or
// removes.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/repo"
)

// CopyService owns physical copy records and their lifecycle.
type CopyService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewCopyService constructs a CopyService bound to the given store handle.
func NewCopyService(db *gorm.DB) *CopyService {
	return &CopyService{DB: db}
}

// Create registers a new copy of itemID homed at branchID, carrying the
// given radio tag, and increments both catalog counters. Insert and
// increment share one transaction so the aggregates cannot drift from the
// copy rows.
func (s *CopyService) Create(ctx context.Context, itemID, branchID, tag string) (*domain.Copy, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, ErrBadTag
	}
	if _, err := repo.GetItem(ctx, s.DB, itemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, unavailable(err)
	}
	if _, err := repo.GetBranch(ctx, s.DB, branchID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, unavailable(err)
	}

	var cp *domain.Copy
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		cp, err = repo.CreateCopy(ctx, tx, itemID, branchID, tag)
		if err != nil {
			return err
		}
		return repo.AddItemCounters(ctx, tx, itemID, 1, 1)
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return cp, nil
}

// Delete soft-removes a copy. Only an available copy can be removed: a
// borrowed or in-transit copy is physically elsewhere. On success both
// catalog counters shrink by one and the copy leaves every future count.
func (s *CopyService) Delete(ctx context.Context, copyID string) error {
	cp, err := repo.GetCopy(ctx, s.DB, copyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCopyNotFound
		}
		return unavailable(err)
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := repo.TransitionCopy(ctx, tx, cp.ID, domain.CopyAvailable, domain.CopyDeleted, nil); err != nil {
			return err
		}
		return repo.AddItemCounters(ctx, tx, cp.ItemID, -1, -1)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrStaleStatus):
		return ErrNotDeletable
	case errors.Is(err, repo.ErrNotFound):
		return ErrCopyNotFound
	default:
		return unavailable(err)
	}
}

// FindByTag resolves a copy by its radio tag, optionally scoped to a home
// branch. Deleted copies are invisible.
func (s *CopyService) FindByTag(ctx context.Context, tag, branchID string) (*domain.Copy, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, ErrBadTag
	}
	cp, err := repo.FindCopyByTag(ctx, s.DB, tag, branchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCopyNotFound
		}
		return nil, unavailable(err)
	}
	return cp, nil
}

// ListAvailable returns the available copies homed at a branch, for the
// checkout-desk picker.
func (s *CopyService) ListAvailable(ctx context.Context, branchID string) ([]domain.Copy, error) {
	out, err := repo.ListAvailableCopies(ctx, s.DB, branchID)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}
