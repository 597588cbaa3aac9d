// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for member
// accounts and for branches.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// CreateMember inserts a member in pending status with the supplied
// human-facing code (issued by the sequence counter).
func CreateMember(ctx context.Context, db *gorm.DB, code string, m *domain.Member) (*domain.Member, error) {
	m.ID = uuid.NewString()
	m.MemberCode = strings.ToUpper(code)
	m.Status = domain.MemberPending
	m.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMember fetches a member by primary key, excluding deleted accounts.
func GetMember(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error) {
	var m domain.Member
	err := db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, domain.MemberDeleted).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemberByCode fetches a member by human-facing code (case-insensitive),
// excluding deleted accounts.
func GetMemberByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Member, error) {
	var m domain.Member
	err := db.WithContext(ctx).
		Where("member_code = ? AND status <> ?", strings.ToUpper(strings.TrimSpace(code)), domain.MemberDeleted).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMemberStatus moves a member between registration states.
// Returns ErrNotFound when the member does not exist.
func UpdateMemberStatus(ctx context.Context, db *gorm.DB, id string, status domain.MemberStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMemberDueAmount overwrites the member's aggregate dues. Written only by
// the fee engine.
func SetMemberDueAmount(ctx context.Context, db *gorm.DB, id string, amount float64) error {
	return db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("id = ?", id).
		UpdateColumn("due_amount", amount).Error
}

// CreateBranch inserts a branch.
func CreateBranch(ctx context.Context, db *gorm.DB, code, name string) (*domain.Branch, error) {
	b := &domain.Branch{
		ID:        uuid.NewString(),
		Code:      strings.ToUpper(code),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBranch fetches a branch by primary key, or ErrNotFound.
func GetBranch(ctx context.Context, db *gorm.DB, id string) (*domain.Branch, error) {
	var b domain.Branch
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}
