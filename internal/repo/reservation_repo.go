// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// reservation waiting list.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateReservation inserts an active reservation for (member, item, branch).
// The unique index on that triple rejects duplicates at the storage level;
// callers should pre-check to return the friendlier rule error.
func CreateReservation(ctx context.Context, db *gorm.DB, memberID, itemID, branchID string) (*domain.Reservation, error) {
	r := &domain.Reservation{
		ID:         uuid.NewString(),
		MemberID:   memberID,
		ItemID:     itemID,
		BranchID:   branchID,
		Status:     domain.ReservationActive,
		ReservedAt: time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetReservation fetches a reservation by primary key, or ErrNotFound.
func GetReservation(ctx context.Context, db *gorm.DB, id string) (*domain.Reservation, error) {
	var r domain.Reservation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// HasReservation reports whether member already reserved item at branch.
func HasReservation(ctx context.Context, db *gorm.DB, memberID, itemID, branchID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("member_id = ? AND item_id = ? AND branch_id = ?", memberID, itemID, branchID).
		Count(&n).Error
	return n > 0, err
}

// AnyReservation reports whether any member holds a reservation for item at
// branch. An outstanding reservation blocks renewals on that item.
func AnyReservation(ctx context.Context, db *gorm.DB, itemID, branchID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("item_id = ? AND branch_id = ?", itemID, branchID).
		Count(&n).Error
	return n > 0, err
}

// OldestActiveReservation returns the first-reserved active reservation for
// (item, branch), or ErrNotFound when the waiting list is empty.
func OldestActiveReservation(ctx context.Context, db *gorm.DB, itemID, branchID string) (*domain.Reservation, error) {
	var r domain.Reservation
	err := db.WithContext(ctx).
		Where("item_id = ? AND branch_id = ? AND status = ?", itemID, branchID, domain.ReservationActive).
		Order("reserved_at asc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkReservationNotified transitions a reservation active → notified.
// Guarded so concurrent returns satisfy a given reservation at most once.
func MarkReservationNotified(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, domain.ReservationActive).
		Update("status", domain.ReservationNotified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// DeleteReservation removes a reservation by primary key.
func DeleteReservation(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Reservation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReservationByMemberItem consumes whatever reservation the member
// held on the item, across branches. Called on checkout; deleting nothing
// is not an error.
func DeleteReservationByMemberItem(ctx context.Context, db *gorm.DB, memberID, itemID string) error {
	return db.WithContext(ctx).
		Where("member_id = ? AND item_id = ?", memberID, itemID).
		Delete(&domain.Reservation{}).Error
}

// ListReservations returns reservations filtered by any combination of
// member, item, and branch, oldest first.
func ListReservations(ctx context.Context, db *gorm.DB, memberID, itemID, branchID string) ([]domain.Reservation, error) {
	q := db.WithContext(ctx).Model(&domain.Reservation{})
	if memberID != "" {
		q = q.Where("member_id = ?", memberID)
	}
	if itemID != "" {
		q = q.Where("item_id = ?", itemID)
	}
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}
	var out []domain.Reservation
	err := q.Order("reserved_at asc").Find(&out).Error
	return out, err
}
