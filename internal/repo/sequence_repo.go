// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the named sequence counters used to
// issue human-facing identifiers.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// EnsureSequence creates the named counter at the given starting value if it
// does not exist yet. Safe to call on every startup.
func EnsureSequence(db *gorm.DB, name string, start int64) error {
	err := db.Where("name = ?", name).First(&domain.Sequence{}).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&domain.Sequence{Name: name, Value: start}).Error
}

// NextSequence atomically increments the named counter and returns the new
// value. The increment is a relative UPDATE followed by a read inside one
// transaction, which is linearizable per name: SQLite serializes writers,
// and server databases hold the row lock from the UPDATE until commit.
// Concurrent registrations therefore never observe the same value.
func NextSequence(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Sequence{}).
			Where("name = ?", name).
			UpdateColumn("value", gorm.Expr("value + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&domain.Sequence{}).
			Where("name = ?", name).
			Select("value").
			Scan(&value).Error
	})
	return value, err
}
