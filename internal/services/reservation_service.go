// Package services – ReservationService
//
// This file implements the reservation manager. A reservation is a
// waiting-list entry, never a hold on available stock: it can only exist
// while no copy of the item is available at the branch, and a returning
// copy notifies the oldest waiter without removing the copy from
// availability — first checkout still wins the copy.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/notify"
	"github.com/tbourn/go-library-backend/internal/repo"
)

// ReservationService manages the waiting list for items with no available
// copies at a branch.
type ReservationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Sink receives member notifications; failures are logged, not returned.
	Sink notify.Sink
}

// NewReservationService constructs a ReservationService.
func NewReservationService(db *gorm.DB, sink notify.Sink) *ReservationService {
	if sink == nil {
		sink = notify.Discard{}
	}
	return &ReservationService{DB: db, Sink: sink}
}

// Reserve places a reservation for member on item at branch.
//
// Denied when:
//   - the item does not exist (ErrItemNotFound),
//   - any copy of the item is available at the branch (ErrCopiesAvailable),
//   - the member already has the item on open loan (ErrAlreadyBorrowed),
//   - the member already reserved this (item, branch) (ErrDuplicateReservation).
//
// On success the member receives a confirmation notification.
func (s *ReservationService) Reserve(ctx context.Context, memberID, itemID, branchID string) (*domain.Reservation, error) {
	item, err := repo.GetItem(ctx, s.DB, itemID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, unavailable(err)
	}

	available, err := repo.CountAvailableCopies(ctx, s.DB, itemID, branchID)
	if err != nil {
		return nil, unavailable(err)
	}
	if available > 0 {
		return nil, ErrCopiesAvailable
	}

	borrowed, err := repo.HasOpenLoan(ctx, s.DB, memberID, itemID)
	if err != nil {
		return nil, unavailable(err)
	}
	if borrowed {
		return nil, ErrAlreadyBorrowed
	}

	dup, err := repo.HasReservation(ctx, s.DB, memberID, itemID, branchID)
	if err != nil {
		return nil, unavailable(err)
	}
	if dup {
		return nil, ErrDuplicateReservation
	}

	r, err := repo.CreateReservation(ctx, s.DB, memberID, itemID, branchID)
	if err != nil {
		// The unique index closes the check-then-create window.
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateReservation
		}
		return nil, unavailable(err)
	}

	s.notify(ctx, memberID, fmt.Sprintf("You have reserved the %s '%s'.", item.ItemType, item.Title))
	return r, nil
}

// Cancel removes a member's reservation.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string) error {
	if err := repo.DeleteReservation(ctx, s.DB, reservationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrReservationNotFound
		}
		return unavailable(err)
	}
	return nil
}

// ConsumeOnReturn is invoked by the coordinator whenever a copy becomes
// available again at its home branch. It promotes the oldest active
// reservation for (item, branch) to notified and messages the waiting
// member. The copy itself stays available; the notified member still has to
// check it out before anyone else does.
//
// The promotion is a compare-and-set, so concurrent returns satisfy a given
// reservation at most once; the loser simply finds no active reservation.
func (s *ReservationService) ConsumeOnReturn(ctx context.Context, itemID, branchID string) error {
	r, err := repo.OldestActiveReservation(ctx, s.DB, itemID, branchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil // nobody waiting
		}
		return unavailable(err)
	}
	if err := repo.MarkReservationNotified(ctx, s.DB, r.ID); err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			return nil // another return got here first
		}
		return unavailable(err)
	}

	item, err := repo.GetItem(ctx, s.DB, itemID)
	title := "the item"
	if err == nil {
		title = fmt.Sprintf("'%s'", item.Title)
	}
	s.notify(ctx, r.MemberID, fmt.Sprintf("The item %s you reserved is now available at your branch.", title))
	return nil
}

// List returns reservations under the given filters, oldest first.
func (s *ReservationService) List(ctx context.Context, memberID, itemID, branchID string) ([]domain.Reservation, error) {
	out, err := repo.ListReservations(ctx, s.DB, memberID, itemID, branchID)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *ReservationService) notify(ctx context.Context, memberID, msg string) {
	if err := s.Sink.Notify(ctx, memberID, msg); err != nil {
		log.Warn().Err(err).Str("member_id", memberID).Msg("notification delivery failed")
	}
}
