package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

// ErrNotFound mirrors gorm.ErrRecordNotFound under a package-local name so
// callers outside repo don't need to import gorm to test for a miss.
var ErrNotFound = gorm.ErrRecordNotFound

// LookupName returns the persisted filename for id, or ("", false) if the
// Name Registry has no row for it.
func LookupName(ctx context.Context, db *gorm.DB, id domain.Identifier) (string, bool, error) {
	var row domain.BeatmapsetName
	err := db.WithContext(ctx).First(&row, "id = ?", int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Name, true, nil
}

// RememberName fire-and-forget inserts a (id, name) row. Duplicates are
// tolerated via INSERT ... ON CONFLICT DO NOTHING, matching the Name
// Registry's append-only, tolerate-duplicates contract.
func RememberName(ctx context.Context, db *gorm.DB, id domain.Identifier, name string) error {
	row := domain.BeatmapsetName{ID: int64(id), Name: name}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}
