// Package notify defines the notification sink consumed by the circulation
// core, plus the store-backed implementation used in production. The core
// treats notification delivery as fire-and-forget: a sink failure is logged
// by the caller and never fails the circulation action that triggered it.
package notify

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/repo"
)

// Sink accepts fire-and-forget messages addressed to a member.
type Sink interface {
	Notify(ctx context.Context, memberID, message string) error
}

// StoreSink persists notifications so the member portal can list them.
type StoreSink struct {
	DB *gorm.DB
}

// Notify appends an unread notification row for the member.
func (s *StoreSink) Notify(ctx context.Context, memberID, message string) error {
	_, err := repo.CreateNotification(ctx, s.DB, memberID, message)
	return err
}

// Discard is a Sink that drops every message. Useful in tests and in
// deployments where a real delivery channel replaces the portal inbox.
type Discard struct{}

// Notify implements Sink.
func (Discard) Notify(context.Context, string, string) error { return nil }
