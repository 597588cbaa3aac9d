// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only transaction journal.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// newTransactionCode derives the human-facing journal code. The UUID suffix
// keeps codes unique when two entries land within the same second.
func newTransactionCode(at time.Time, id string) string {
	return fmt.Sprintf("TXN%s-%s", at.Format("20060102150405"), id[:8])
}

// CreateTransaction appends a journal entry.
func CreateTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) (*domain.Transaction, error) {
	now := time.Now().UTC()
	tx.ID = uuid.NewString()
	tx.Code = newTransactionCode(now, tx.ID)
	tx.CreatedAt = now
	if err := db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, err
	}
	return tx, nil
}

// CountTransactions returns the journal size under the given filters, for
// pagination metadata.
func CountTransactions(ctx context.Context, db *gorm.DB, branchID, memberID string) (int64, error) {
	var total int64
	err := transactionFilter(db.WithContext(ctx).Model(&domain.Transaction{}), branchID, memberID).
		Count(&total).Error
	return total, err
}

// ListTransactionsPage returns a page of journal entries, newest first.
func ListTransactionsPage(ctx context.Context, db *gorm.DB, branchID, memberID string, offset, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := transactionFilter(db.WithContext(ctx), branchID, memberID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func transactionFilter(q *gorm.DB, branchID, memberID string) *gorm.DB {
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}
	if memberID != "" {
		q = q.Where("member_id = ?", memberID)
	}
	return q
}
