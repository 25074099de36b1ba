package models

import "time"

// AudioTrack is a published audio stream visible to other stage
// participants. The full reference chain is kept denormalized as foreign
// keys so cascades and fan-out can resolve by indexed lookup.
type AudioTrack struct {
	ID            string `gorm:"primaryKey;size:36" json:"_id"`
	StageID       string `gorm:"size:36;index;not null" json:"stageId"`
	StageMemberID string `gorm:"size:36;index;not null" json:"stageMemberId"`
	StageDeviceID string `gorm:"size:36;index;not null" json:"stageDeviceId"`
	UserID        string `gorm:"size:36;index;not null" json:"userId"`
	DeviceID      string `gorm:"size:36;index;not null" json:"deviceId"`

	Type         string  `gorm:"size:50" json:"type"` // mediasoup producer, ov channel, ...
	ProducerID   *string `gorm:"size:100" json:"producerId"`
	OvSourcePort *int    `json:"ovSourcePort"`

	ThreeDimensionalProperties `gorm:"embedded"`
	VolumeProperties           `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (AudioTrack) TableName() string { return "audio_tracks" }

// VideoTrack is a published video stream. Video has no spatial or volume
// attributes and therefore no per-viewer overrides.
type VideoTrack struct {
	ID            string `gorm:"primaryKey;size:36" json:"_id"`
	StageID       string `gorm:"size:36;index;not null" json:"stageId"`
	StageMemberID string `gorm:"size:36;index;not null" json:"stageMemberId"`
	StageDeviceID string `gorm:"size:36;index;not null" json:"stageDeviceId"`
	UserID        string `gorm:"size:36;index;not null" json:"userId"`
	DeviceID      string `gorm:"size:36;index;not null" json:"deviceId"`

	Type       string  `gorm:"size:50" json:"type"`
	ProducerID *string `gorm:"size:100" json:"producerId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (VideoTrack) TableName() string { return "video_tracks" }
