package schema

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestStampVersion(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "meta.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&StoreMeta{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	ctx := context.Background()

	version, err := ReadVersion(ctx, db)
	if err != nil {
		t.Fatalf("ReadVersion() error = %v", err)
	}
	if version != "" {
		t.Fatalf("ReadVersion() on empty store = %q, want empty", version)
	}

	for i := 0; i < 2; i++ {
		if err := StampVersion(ctx, db); err != nil {
			t.Fatalf("StampVersion() #%d error = %v", i+1, err)
		}
	}
	version, err = ReadVersion(ctx, db)
	if err != nil {
		t.Fatalf("ReadVersion() error = %v", err)
	}
	if version != Version {
		t.Fatalf("ReadVersion() = %q, want %q", version, Version)
	}

	if err := db.Model(&StoreMeta{}).Where("key = ?", versionKey).Update("value", "9").Error; err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := StampVersion(ctx, db); err == nil {
		t.Fatalf("StampVersion() expected error for newer store")
	}
}
