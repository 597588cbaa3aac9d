package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/repo"
)

// newServiceDB opens a throwaway sqlite store with the full schema and the
// member-code counter seeded, mirroring what repo.AutoMigrate does at boot.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
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

	if err := db.AutoMigrate(
		&domain.Branch{},
		&domain.Item{},
		&domain.Member{},
		&domain.Copy{},
		&domain.Loan{},
		&domain.Reservation{},
		&domain.Transfer{},
		&domain.Transaction{},
		&domain.Notification{},
		&domain.Sequence{},
		&domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := repo.EnsureSequence(db, repo.SeqMemberID, 1000); err != nil {
		t.Fatalf("seed sequence: %v", err)
	}
	return db
}

func seedBranch(t *testing.T, db *gorm.DB, code string) *domain.Branch {
	t.Helper()
	b, err := repo.CreateBranch(context.Background(), db, code, code+" Branch")
	if err != nil {
		t.Fatalf("seed branch %s: %v", code, err)
	}
	return b
}

func seedItem(t *testing.T, db *gorm.DB, title string) *domain.Item {
	t.Helper()
	it, err := repo.CreateItem(context.Background(), db, title, "book", "fiction")
	if err != nil {
		t.Fatalf("seed item %s: %v", title, err)
	}
	return it
}

// seedCopy accessions a copy the way CopyService.Create does: insert plus
// counter increment, so the item aggregates start consistent.
func seedCopy(t *testing.T, db *gorm.DB, itemID, branchID, tag string) *domain.Copy {
	t.Helper()
	ctx := context.Background()
	cp, err := repo.CreateCopy(ctx, db, itemID, branchID, tag)
	if err != nil {
		t.Fatalf("seed copy %s: %v", tag, err)
	}
	if err := repo.AddItemCounters(ctx, db, itemID, 1, 1); err != nil {
		t.Fatalf("seed counters for %s: %v", tag, err)
	}
	return cp
}

func seedMember(t *testing.T, db *gorm.DB, status domain.MemberStatus) *domain.Member {
	t.Helper()
	ctx := context.Background()
	seq, err := repo.NextSequence(ctx, db, repo.SeqMemberID)
	if err != nil {
		t.Fatalf("next member seq: %v", err)
	}
	m, err := repo.CreateMember(ctx, db, fmt.Sprintf("MEM%04d", seq), &domain.Member{
		FirstName: "Test",
		LastName:  fmt.Sprintf("Member%d", seq),
		Email:     fmt.Sprintf("member%d@example.org", seq),
	})
	if err != nil {
		t.Fatalf("seed member: %v", err)
	}
	if status != domain.MemberPending {
		if err := repo.UpdateMemberStatus(ctx, db, m.ID, status); err != nil {
			t.Fatalf("set member status: %v", err)
		}
		m.Status = status
	}
	return m
}

func itemCounters(t *testing.T, db *gorm.DB, itemID string) (total, available int) {
	t.Helper()
	it, err := repo.GetItem(context.Background(), db, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return it.TotalCopies, it.AvailableCopies
}

func copyStatus(t *testing.T, db *gorm.DB, copyID string) domain.CopyStatus {
	t.Helper()
	var cp domain.Copy
	if err := db.Where("id = ?", copyID).First(&cp).Error; err != nil {
		t.Fatalf("get copy: %v", err)
	}
	return cp.Status
}
