// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/tbourn/go-library-backend/internal/domain"
)

// Sequence counter names and their starting values. The first issued member
// code is MEM1001.
const (
	SeqMemberID = "member_id"
	SeqStaffID  = "staff_id"

	seqStart = 1000
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for every record store owned by
// the core, then seeds the identifier sequences.
func AutoMigrate(db *gorm.DB) error {
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
		return err
	}
	for _, name := range []string{SeqMemberID, SeqStaffID} {
		if err := EnsureSequence(db, name, seqStart); err != nil {
			return err
		}
	}
	return nil
}
