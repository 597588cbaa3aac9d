// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for member
// notifications.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateNotification appends an unread notification for the member.
func CreateNotification(ctx context.Context, db *gorm.DB, memberID, message string) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		Message:   message,
		Status:    "unread",
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotifications returns the member's notifications, newest first.
func ListNotifications(ctx context.Context, db *gorm.DB, memberID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// DeleteNotification removes a notification by primary key.
func DeleteNotification(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
