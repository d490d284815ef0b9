package repo

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:): %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func TestRememberName_LookupName_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := RememberName(ctx, db, 42, "My Song.osz"); err != nil {
		t.Fatalf("RememberName: %v", err)
	}

	name, ok, err := LookupName(ctx, db, 42)
	if err != nil {
		t.Fatalf("LookupName: %v", err)
	}
	if !ok || name != "My Song.osz" {
		t.Fatalf("expected (My Song.osz, true), got (%q, %v)", name, ok)
	}
}

func TestLookupName_MissReturnsFalse(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := LookupName(context.Background(), db, domain.Identifier(999))
	if err != nil {
		t.Fatalf("LookupName: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for absent identifier")
	}
}

func TestRememberName_DuplicateToleratedAsNoOp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := RememberName(ctx, db, 1, "first.osz"); err != nil {
		t.Fatalf("first RememberName: %v", err)
	}
	if err := RememberName(ctx, db, 1, "second.osz"); err != nil {
		t.Fatalf("duplicate RememberName should not error: %v", err)
	}

	name, ok, err := LookupName(ctx, db, 1)
	if err != nil || !ok {
		t.Fatalf("LookupName after duplicate insert: name=%q ok=%v err=%v", name, ok, err)
	}
	if name != "first.osz" {
		t.Fatalf("expected original name preserved on conflict, got %q", name)
	}
}
