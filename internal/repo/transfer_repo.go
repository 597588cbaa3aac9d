// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for inter-branch
// transfers. Transfer status moves strictly forward (pending → in_transit →
// completed); every forward step is a guarded UPDATE so concurrent staff
// actions and the timeout sweep each transition a record at most once.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateTransfer opens a pending transfer moving cp from fromBranch back to
// its home branch.
func CreateTransfer(ctx context.Context, db *gorm.DB, cp *domain.Copy, fromBranchID string) (*domain.Transfer, error) {
	t := &domain.Transfer{
		ID:           uuid.NewString(),
		CopyID:       cp.ID,
		ItemID:       cp.ItemID,
		FromBranchID: fromBranchID,
		ToBranchID:   cp.OriginalBranchID,
		Status:       domain.TransferPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetTransfer fetches a transfer by primary key, or ErrNotFound.
func GetTransfer(ctx context.Context, db *gorm.DB, id string) (*domain.Transfer, error) {
	var t domain.Transfer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkTransferInTransit transitions pending → in_transit and stamps the
// dispatch time. ErrStaleStatus when the transfer is no longer pending,
// ErrNotFound when it does not exist.
func MarkTransferInTransit(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Transfer{}).
		Where("id = ? AND status = ?", id, domain.TransferPending).
		Updates(map[string]any{"status": domain.TransferInTransit, "initiated_on": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(&domain.Transfer{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

// CompleteTransfer transitions in_transit → completed and stamps the
// completion time. Guarded, so the sweep and an explicit staff confirmation
// racing on the same record complete it exactly once.
func CompleteTransfer(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Transfer{}).
		Where("id = ? AND status = ?", id, domain.TransferInTransit).
		Updates(map[string]any{"status": domain.TransferCompleted, "completed_on": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ListExpiredInTransit returns transfers dispatched before the cutoff and
// still in transit. The sweep resolves each of them.
func ListExpiredInTransit(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Transfer, error) {
	var out []domain.Transfer
	err := db.WithContext(ctx).
		Where("status = ? AND initiated_on < ?", domain.TransferInTransit, cutoff).
		Find(&out).Error
	return out, err
}

// ListTransfers returns transfers filtered by holding branch and status,
// oldest first. An empty status lists pending transfers, matching the staff
// work-queue view.
func ListTransfers(ctx context.Context, db *gorm.DB, fromBranchID string, status domain.TransferStatus) ([]domain.Transfer, error) {
	if status == "" {
		status = domain.TransferPending
	}
	q := db.WithContext(ctx).Where("status = ?", status)
	if fromBranchID != "" {
		q = q.Where("from_branch_id = ?", fromBranchID)
	}
	var out []domain.Transfer
	err := q.Order("created_at asc").Find(&out).Error
	return out, err
}
