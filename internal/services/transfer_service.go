// Package services – TransferService
//
// This file implements the transfer manager. A transfer is opened
// automatically when a copy is returned away from home (see
// CirculationService.Return); staff at the holding branch confirm dispatch,
// and the timeout sweep guarantees a dispatched copy is never stranded if
// nobody confirms arrival.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/repo"
)

// DefaultTransferTimeout is how long a dispatched transfer may stay
// in_transit before the sweep resolves it.
const DefaultTransferTimeout = 24 * time.Hour

// TransferService moves copies back to their home branch.
type TransferService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Timeout is the in-transit age after which the sweep completes a
	// transfer on staff's behalf.
	Timeout time.Duration
}

// NewTransferService constructs a TransferService with the default timeout.
func NewTransferService(db *gorm.DB) *TransferService {
	return &TransferService{DB: db, Timeout: DefaultTransferTimeout}
}

// Dispatch confirms that staff at the holding branch handed the copy to the
// courier. The transfer must be pending and the copy must be sitting at the
// other branch; both moves are compare-and-sets, so a double scan of the
// same transfer fails cleanly on the second attempt.
func (s *TransferService) Dispatch(ctx context.Context, transferID, copyID string) error {
	t, err := repo.GetTransfer(ctx, s.DB, transferID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTransferNotFound
		}
		return unavailable(err)
	}
	if t.CopyID != copyID {
		return ErrTransferNotFound
	}

	now := time.Now().UTC()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkTransferInTransit(ctx, tx, t.ID, now); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return ErrTransferNotPending
			}
			return err
		}
		if err := repo.TransitionCopy(ctx, tx, t.CopyID, domain.CopyAtOtherBranch, domain.CopyInTransit, nil); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return ErrCopyNotAwayFromHome
			}
			return err
		}
		return nil
	})
	var se *Error
	if err != nil && !errors.As(err, &se) {
		return unavailable(err)
	}
	return err
}

// SweepExpired resolves every transfer that has been in transit longer than
// the timeout as of now: the transfer completes and its copy returns to
// available at the home branch. The sweep is a pure function of now, safe
// to invoke repeatedly and concurrently — each record transitions at most
// once because both updates are compare-and-sets. It returns the number of
// transfers resolved.
func (s *TransferService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTransferTimeout
	}
	expired, err := repo.ListExpiredInTransit(ctx, s.DB, now.Add(-timeout))
	if err != nil {
		return 0, unavailable(err)
	}

	resolved := 0
	for _, t := range expired {
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := repo.CompleteTransfer(ctx, tx, t.ID, now); err != nil {
				return err
			}
			if err := repo.TransitionCopy(ctx, tx, t.CopyID, domain.CopyInTransit, domain.CopyAvailable,
				map[string]any{"current_branch_id": t.ToBranchID}); err != nil {
				return err
			}
			// The copy is checkoutable again; the availability aggregate
			// moves in the same transaction as the status.
			return repo.AddItemCounters(ctx, tx, t.ItemID, 0, 1)
		})
		switch {
		case err == nil:
			resolved++
		case errors.Is(err, repo.ErrStaleStatus):
			// A concurrent sweep or staff confirmation already resolved it.
		default:
			log.Error().Err(err).Str("transfer_id", t.ID).Msg("transfer sweep failed")
		}
	}
	return resolved, nil
}

// List returns transfers filtered by holding branch and status. Callers
// rendering the staff work queue run SweepExpired first so the view never
// shows transfers the timeout has already resolved.
func (s *TransferService) List(ctx context.Context, fromBranchID string, status domain.TransferStatus) ([]domain.Transfer, error) {
	out, err := repo.ListTransfers(ctx, s.DB, fromBranchID, status)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}
