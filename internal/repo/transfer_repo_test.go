package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-library-backend/internal/domain"
)

func newTransferRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("transfer_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func transferCopy() *domain.Copy {
	return &domain.Copy{
		ID:               "copy-1",
		ItemID:           "item-1",
		RFID:             "RF-001",
		OriginalBranchID: "branch-home",
		CurrentBranchID:  "branch-away",
		Status:           domain.CopyAtOtherBranch,
	}
}

func TestCreateTransfer_RoutesHome(t *testing.T) {
	db := newTransferRepoDB(t, &domain.Transfer{})

	tr, err := CreateTransfer(context.Background(), db, transferCopy(), "branch-away")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if tr.Status != domain.TransferPending {
		t.Fatalf("new transfer status = %q, want pending", tr.Status)
	}
	if tr.FromBranchID != "branch-away" || tr.ToBranchID != "branch-home" {
		t.Fatalf("transfer must route to the home branch: %+v", tr)
	}
	if tr.InitiatedOn != nil || tr.CompletedOn != nil {
		t.Fatalf("timestamps must be unset until dispatch/completion: %+v", tr)
	}
}

func TestTransferStatusMovesForwardOnly(t *testing.T) {
	db := newTransferRepoDB(t, &domain.Transfer{})
	ctx := context.Background()

	tr, err := CreateTransfer(ctx, db, transferCopy(), "branch-away")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	now := time.Now().UTC()

	// Completing before dispatch is a stale transition.
	if err := CompleteTransfer(ctx, db, tr.ID, now); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("complete before dispatch: got %v, want ErrStaleStatus", err)
	}

	if err := MarkTransferInTransit(ctx, db, tr.ID, now); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := MarkTransferInTransit(ctx, db, tr.ID, now); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("double dispatch: got %v, want ErrStaleStatus", err)
	}
	if err := MarkTransferInTransit(ctx, db, "no-such-id", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing transfer: got %v, want ErrNotFound", err)
	}

	if err := CompleteTransfer(ctx, db, tr.ID, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := CompleteTransfer(ctx, db, tr.ID, now); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("double complete: got %v, want ErrStaleStatus", err)
	}

	var got domain.Transfer
	if err := db.First(&got, "id = ?", tr.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.TransferCompleted || got.InitiatedOn == nil || got.CompletedOn == nil {
		t.Fatalf("final state wrong: %+v", got)
	}
}

func TestListExpiredInTransit_CutoffBoundary(t *testing.T) {
	db := newTransferRepoDB(t, &domain.Transfer{})
	ctx := context.Background()

	now := time.Now().UTC()

	oldTr, err := CreateTransfer(ctx, db, transferCopy(), "branch-away")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if err := MarkTransferInTransit(ctx, db, oldTr.ID, now.Add(-25*time.Hour)); err != nil {
		t.Fatalf("dispatch old: %v", err)
	}

	freshCopy := transferCopy()
	freshCopy.ID = "copy-2"
	freshTr, err := CreateTransfer(ctx, db, freshCopy, "branch-away")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if err := MarkTransferInTransit(ctx, db, freshTr.ID, now.Add(-23*time.Hour)); err != nil {
		t.Fatalf("dispatch fresh: %v", err)
	}

	expired, err := ListExpiredInTransit(ctx, db, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListExpiredInTransit: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != oldTr.ID {
		t.Fatalf("expected only the 25h-old transfer, got %+v", expired)
	}
}

func TestListTransfers_DefaultsToPending(t *testing.T) {
	db := newTransferRepoDB(t, &domain.Transfer{})
	ctx := context.Background()

	pending, err := CreateTransfer(ctx, db, transferCopy(), "branch-away")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	cp2 := transferCopy()
	cp2.ID = "copy-2"
	dispatched, err := CreateTransfer(ctx, db, cp2, "branch-other")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if err := MarkTransferInTransit(ctx, db, dispatched.ID, time.Now().UTC()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	out, err := ListTransfers(ctx, db, "", "")
	if err != nil || len(out) != 1 || out[0].ID != pending.ID {
		t.Fatalf("default listing should show pending only: %+v, err=%v", out, err)
	}

	out, err = ListTransfers(ctx, db, "branch-other", domain.TransferInTransit)
	if err != nil || len(out) != 1 || out[0].ID != dispatched.ID {
		t.Fatalf("filtered listing wrong: %+v, err=%v", out, err)
	}
}
