package repo

import (
	"context"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

// newRepoDB opens a file-backed SQLite database under t.TempDir with foreign
// keys enforced and migrates only the given models, so tests can also run
// against a missing table.
func newRepoDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "repo.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Release the file before TempDir cleanup.
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA foreign_keys=ON;")

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// seedReview stores a minimal review owned by userID.
func seedReview(t *testing.T, db *gorm.DB, userID string) *domain.Review {
	t.Helper()
	r := &domain.Review{UserID: userID, Title: "t", CodeSnippet: "x", Language: "go"}
	if err := CreateReview(context.Background(), db, r); err != nil {
		t.Fatalf("seed review: %v", err)
	}
	return r
}
