// Package services – MemberService
//
// This file implements member registration and approval. Registration
// issues the human-facing member code from the linearizable sequence
// counter, so concurrent registrations never collide on a code. Identity
// and session handling live outside the core; this service only manages
// the member records circulation depends on.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/repo"
)

// MemberService manages member accounts.
type MemberService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewMemberService constructs a MemberService.
func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{DB: db}
}

// RegisterInput carries the self-service registration fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	ContactNo string
}

// Register creates a pending member and returns it with its issued code
// (MEM1001, MEM1002, …). The account cannot borrow until approved.
func (s *MemberService) Register(ctx context.Context, in RegisterInput) (*domain.Member, error) {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, ErrMissingMemberInfo
	}
	seq, err := repo.NextSequence(ctx, s.DB, repo.SeqMemberID)
	if err != nil {
		return nil, unavailable(err)
	}
	m, err := repo.CreateMember(ctx, s.DB, fmt.Sprintf("MEM%04d", seq), &domain.Member{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		ContactNo: strings.TrimSpace(in.ContactNo),
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return m, nil
}

// Approve moves a pending member to approved.
func (s *MemberService) Approve(ctx context.Context, memberID string) error {
	return s.setStatus(ctx, memberID, domain.MemberApproved)
}

// Block suspends a member account.
func (s *MemberService) Block(ctx context.Context, memberID string) error {
	return s.setStatus(ctx, memberID, domain.MemberBlocked)
}

func (s *MemberService) setStatus(ctx context.Context, memberID string, status domain.MemberStatus) error {
	if err := repo.UpdateMemberStatus(ctx, s.DB, memberID, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMemberNotFound
		}
		return unavailable(err)
	}
	return nil
}

// Get fetches a member by row identifier.
func (s *MemberService) Get(ctx context.Context, memberID string) (*domain.Member, error) {
	m, err := repo.GetMember(ctx, s.DB, memberID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, unavailable(err)
	}
	return m, nil
}

// GetByCode resolves a member by human-facing code together with their open
// loans — the checkout-desk view.
func (s *MemberService) GetByCode(ctx context.Context, code string) (*domain.Member, []domain.Loan, error) {
	m, err := repo.GetMemberByCode(ctx, s.DB, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, unavailable(err)
	}
	loans, err := repo.ListLoansByMember(ctx, s.DB, m.ID, true)
	if err != nil {
		return nil, nil, unavailable(err)
	}
	return m, loans, nil
}
