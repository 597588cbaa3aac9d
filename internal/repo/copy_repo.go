// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the copy ledger: creation, guarded
// status transitions, soft deletion, and tag lookups.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - Missing records surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - A guarded transition whose expected status no longer matches surfaces
//     as ErrStaleStatus, so callers can distinguish a concurrency conflict
//     from a missing row.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleStatus is returned when a compare-and-set update matched zero rows
// because the record's status changed under the caller.
var ErrStaleStatus = errors.New("status changed concurrently")

// NormalizeTag canonicalizes a radio tag for storage and lookup.
// Tags are compared case-insensitively; the upper-cased form is stored.
func NormalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// CreateCopy inserts a new copy of itemID homed at branchID, status
// available, current branch equal to the home branch. The tag is normalized
// before storage. Counter maintenance is the caller's responsibility
// (see AddItemCounters), so that insert and increment share one transaction.
func CreateCopy(ctx context.Context, db *gorm.DB, itemID, branchID, tag string) (*domain.Copy, error) {
	c := &domain.Copy{
		ID:               uuid.NewString(),
		ItemID:           itemID,
		RFID:             NormalizeTag(tag),
		OriginalBranchID: branchID,
		CurrentBranchID:  branchID,
		Status:           domain.CopyAvailable,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCopy fetches a copy by primary key, excluding soft-deleted copies.
func GetCopy(ctx context.Context, db *gorm.DB, id string) (*domain.Copy, error) {
	var c domain.Copy
	err := db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, domain.CopyDeleted).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCopyByTag fetches the copy carrying the given radio tag, excluding
// soft-deleted copies. When branchID is non-empty the lookup is restricted
// to copies homed at that branch.
func FindCopyByTag(ctx context.Context, db *gorm.DB, tag, branchID string) (*domain.Copy, error) {
	q := db.WithContext(ctx).
		Where("rfid = ? AND status <> ?", NormalizeTag(tag), domain.CopyDeleted)
	if branchID != "" {
		q = q.Where("original_branch_id = ?", branchID)
	}
	var c domain.Copy
	if err := q.First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListAvailableCopies returns the available copies homed at branchID,
// ordered by item for stable checkout-desk listings.
func ListAvailableCopies(ctx context.Context, db *gorm.DB, branchID string) ([]domain.Copy, error) {
	var out []domain.Copy
	err := db.WithContext(ctx).
		Where("original_branch_id = ? AND status = ?", branchID, domain.CopyAvailable).
		Order("item_id, rfid").
		Find(&out).Error
	return out, err
}

// CountAvailableCopies returns how many copies of itemID are currently
// available at branchID. Used by the reservation manager's waiting-list rule.
func CountAvailableCopies(ctx context.Context, db *gorm.DB, itemID, branchID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Copy{}).
		Where("item_id = ? AND original_branch_id = ? AND status = ?", itemID, branchID, domain.CopyAvailable).
		Count(&n).Error
	return n, err
}

// TransitionCopy performs the compare-and-set status transition that guards
// every physical-inventory race: the update applies only if the copy's
// current status equals expected. On a zero-row match it distinguishes a
// missing copy (ErrNotFound) from a concurrent transition (ErrStaleStatus).
//
// Extra column assignments (borrower, current branch) ride along in the same
// guarded UPDATE so the transition stays a single atomic statement.
func TransitionCopy(ctx context.Context, db *gorm.DB, id string, expected, next domain.CopyStatus, extra map[string]any) error {
	assign := map[string]any{"status": next}
	for k, v := range extra {
		assign[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Copy{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(assign)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(&domain.Copy{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}
