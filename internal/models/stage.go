package models

import "time"

// Default acoustic parameters for a new stage (meters / coefficients).
const (
	DefaultStageWidth      = 25.0
	DefaultStageLength     = 20.0
	DefaultStageHeight     = 10.0
	DefaultStageReflection = 0.7
	DefaultStageAbsorption = 0.7
)

// Stage is one virtual room. Password holds a bcrypt hash; an empty value
// means the stage is open. Router references stay nil until assignment
// succeeds — a stage may legitimately exist unserved.
type Stage struct {
	ID          string `gorm:"primaryKey;size:36" json:"_id"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"size:1000" json:"description"`
	Password    string `gorm:"size:255" json:"-"`

	AudioType string `gorm:"size:50;not null" json:"audioType"` // e.g. mediasoup, jammer, ov
	VideoType string `gorm:"size:50;not null" json:"videoType"`

	AudioRouterID *string `gorm:"size:36;index" json:"audioRouterId"`
	VideoRouterID *string `gorm:"size:36;index" json:"videoRouterId"`

	// Preferred geographic position for router selection.
	PreferredLat *float64 `json:"preferredLat"`
	PreferredLng *float64 `json:"preferredLng"`

	Width      float64 `gorm:"default:25" json:"width"`
	Length     float64 `gorm:"default:20" json:"length"`
	Height     float64 `gorm:"default:10" json:"height"`
	Reflection float64 `gorm:"default:0.7" json:"reflection"`
	Absorption float64 `gorm:"default:0.7" json:"absorption"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Stage) TableName() string { return "stages" }

// StageAdmin grants a user management rights over a stage. Admins receive
// stage events even when they never joined.
type StageAdmin struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	StageID string `gorm:"size:36;index;uniqueIndex:idx_stage_admin,priority:1;not null" json:"stageId"`
	UserID  string `gorm:"size:36;index;uniqueIndex:idx_stage_admin,priority:2;not null" json:"userId"`
}

func (StageAdmin) TableName() string { return "stage_admins" }

// StageSoundEditor grants a user rights to edit spatial defaults of a stage.
type StageSoundEditor struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	StageID string `gorm:"size:36;index;uniqueIndex:idx_stage_sound_editor,priority:1;not null" json:"stageId"`
	UserID  string `gorm:"size:36;index;uniqueIndex:idx_stage_sound_editor,priority:2;not null" json:"userId"`
}

func (StageSoundEditor) TableName() string { return "stage_sound_editors" }

// Group is a named subdivision of a stage. Its spatial and volume attributes
// seed every override materialized against it.
type Group struct {
	ID          string `gorm:"primaryKey;size:36" json:"_id"`
	StageID     string `gorm:"size:36;index;not null" json:"stageId"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"size:1000" json:"description"`
	Color       string `gorm:"size:20" json:"color"`
	IconURL     string `gorm:"size:500" json:"iconUrl"`

	ThreeDimensionalProperties `gorm:"embedded"`
	VolumeProperties           `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Group) TableName() string { return "groups" }
