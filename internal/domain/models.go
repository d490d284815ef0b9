package domain

import "time"

// BeatmapsetName is a row in beatmaps_names: the persisted mapping from a
// beatmapset Identifier to the original archive filename the upstream
// service served it under. Rows are append-only; duplicates on Insert are
// tolerated (INSERT ... ON CONFLICT DO NOTHING semantics), not errors.
type BeatmapsetName struct {
	ID   int64  `json:"id"   gorm:"column:id;primaryKey"`
	Name string `json:"name" gorm:"column:name"`
}

// TableName implements the GORM Tabler interface.
func (BeatmapsetName) TableName() string { return "beatmaps_names" }

// Beatmap is a row in the beatmaps table: a single difficulty's descriptor,
// as returned by the upstream metadata API. Rows are append-only; the
// metadata fetcher upserts with INSERT ... ON CONFLICT DO NOTHING keyed on
// BeatmapID, matching the table's original "duplicates tolerated" contract.
//
// Column names and the difficulty_std/taiko/ctb/mania split follow spec §6
// verbatim; the original C++ source's approved/approved_date naming
// inconsistency (spec.md §9, Open Question 2) is not reproduced — this type
// is the single authoritative shape.
type Beatmap struct {
	BeatmapID      int64     `json:"beatmap_id"      gorm:"column:beatmap_id;primaryKey"`
	BeatmapsetID   int64     `json:"beatmapset_id"   gorm:"column:beatmapset_id;index"`
	BeatmapMD5     string    `json:"beatmap_md5"     gorm:"column:beatmap_md5"`
	Mode           int       `json:"mode"            gorm:"column:mode"`
	Artist         string    `json:"artist"          gorm:"column:artist"`
	Title          string    `json:"title"           gorm:"column:title"`
	DifficultyName string    `json:"difficulty_name" gorm:"column:difficulty_name"`
	Creator        string    `json:"creator"         gorm:"column:creator"`
	CountNormal    int       `json:"count_normal"    gorm:"column:count_normal"`
	CountSlider    int       `json:"count_slider"    gorm:"column:count_slider"`
	CountSpinner   int       `json:"count_spinner"   gorm:"column:count_spinner"`
	MaxCombo       int       `json:"max_combo"       gorm:"column:max_combo"`
	RankedStatus   int       `json:"ranked_status"   gorm:"column:ranked_status"`
	CreatingDate   time.Time `json:"creating_date"   gorm:"column:creating_date"`
	BPM            float64   `json:"bpm"             gorm:"column:bpm"`
	HitLength      int       `json:"hit_length"      gorm:"column:hit_length"`
	CS             float64   `json:"cs"              gorm:"column:cs"`
	AR             float64   `json:"ar"              gorm:"column:ar"`
	OD             float64   `json:"od"              gorm:"column:od"`
	HP             float64   `json:"hp"              gorm:"column:hp"`

	// Exactly one of these is populated, selected by Mode ∈ {0,1,2,3}.
	DifficultyStd   float64 `json:"difficulty_std"   gorm:"column:difficulty_std"`
	DifficultyTaiko float64 `json:"difficulty_taiko" gorm:"column:difficulty_taiko"`
	DifficultyCTB   float64 `json:"difficulty_ctb"   gorm:"column:difficulty_ctb"`
	DifficultyMania float64 `json:"difficulty_mania" gorm:"column:difficulty_mania"`
}

// TableName implements the GORM Tabler interface.
func (Beatmap) TableName() string { return "beatmaps" }
