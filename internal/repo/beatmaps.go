package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

// UpsertBeatmap INSERT-IGNOREs a single descriptor row into the beatmaps
// table, keyed on BeatmapID, matching the metadata path's
// duplicates-tolerated contract.
func UpsertBeatmap(ctx context.Context, db *gorm.DB, b *domain.Beatmap) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(b).Error
}

// GetBeatmap returns the single difficulty row for beatmapID, or
// (nil, false) if absent.
func GetBeatmap(ctx context.Context, db *gorm.DB, beatmapID int64) (*domain.Beatmap, bool, error) {
	var row domain.Beatmap
	err := db.WithContext(ctx).First(&row, "beatmap_id = ?", beatmapID).Error
	if err != nil {
		if err == ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &row, true, nil
}

// ListBeatmapset returns every difficulty row belonging to beatmapsetID,
// ordered by beatmap_id for stable output.
func ListBeatmapset(ctx context.Context, db *gorm.DB, beatmapsetID int64) ([]domain.Beatmap, error) {
	var rows []domain.Beatmap
	err := db.WithContext(ctx).
		Where("beatmapset_id = ?", beatmapsetID).
		Order("beatmap_id ASC").
		Find(&rows).Error
	return rows, err
}
