// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for catalog items
// and their denormalized availability counters.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateItem inserts a catalog item with zero copies.
func CreateItem(ctx context.Context, db *gorm.DB, title, itemType, category string) (*domain.Item, error) {
	it := &domain.Item{
		ID:        uuid.NewString(),
		Title:     title,
		ItemType:  itemType,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(it).Error; err != nil {
		return nil, err
	}
	return it, nil
}

// GetItem fetches a catalog item by primary key, or ErrNotFound.
func GetItem(ctx context.Context, db *gorm.DB, id string) (*domain.Item, error) {
	var it domain.Item
	if err := db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// AddItemCounters adjusts the denormalized total_copies/available_copies
// aggregates by the given deltas as a single relative UPDATE. The arithmetic
// is issued to the store, never computed client-side, so concurrent
// circulation actions cannot lose increments.
func AddItemCounters(ctx context.Context, db *gorm.DB, itemID string, dTotal, dAvailable int) error {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ?", itemID).
		UpdateColumns(map[string]any{
			"total_copies":     gorm.Expr("total_copies + ?", dTotal),
			"available_copies": gorm.Expr("available_copies + ?", dAvailable),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
