package models

import "time"

// Per-viewer overrides. Each table holds at most one record per
// (userId, targetId, deviceId) triple, enforced by a unique index so a
// losing concurrent insert surfaces as a duplicate-key error and is retried
// as an update. Overrides are private: only the authoring viewer is ever
// notified about them.

type CustomGroupPosition struct {
	ID       string `gorm:"primaryKey;size:36" json:"_id"`
	UserID   string `gorm:"size:36;index;uniqueIndex:idx_custom_group_pos,priority:1;not null" json:"userId"`
	GroupID  string `gorm:"size:36;index;uniqueIndex:idx_custom_group_pos,priority:2;not null" json:"groupId"`
	DeviceID string `gorm:"size:36;index;uniqueIndex:idx_custom_group_pos,priority:3;not null" json:"deviceId"`

	ThreeDimensionalProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomGroupPosition) TableName() string { return "custom_group_positions" }

type CustomGroupVolume struct {
	ID       string `gorm:"primaryKey;size:36" json:"_id"`
	UserID   string `gorm:"size:36;index;uniqueIndex:idx_custom_group_vol,priority:1;not null" json:"userId"`
	GroupID  string `gorm:"size:36;index;uniqueIndex:idx_custom_group_vol,priority:2;not null" json:"groupId"`
	DeviceID string `gorm:"size:36;index;uniqueIndex:idx_custom_group_vol,priority:3;not null" json:"deviceId"`

	VolumeProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomGroupVolume) TableName() string { return "custom_group_volumes" }

type CustomStageMemberPosition struct {
	ID            string `gorm:"primaryKey;size:36" json:"_id"`
	UserID        string `gorm:"size:36;index;uniqueIndex:idx_custom_member_pos,priority:1;not null" json:"userId"`
	StageMemberID string `gorm:"size:36;index;uniqueIndex:idx_custom_member_pos,priority:2;not null" json:"stageMemberId"`
	DeviceID      string `gorm:"size:36;index;uniqueIndex:idx_custom_member_pos,priority:3;not null" json:"deviceId"`

	ThreeDimensionalProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomStageMemberPosition) TableName() string { return "custom_stage_member_positions" }

type CustomStageMemberVolume struct {
	ID            string `gorm:"primaryKey;size:36" json:"_id"`
	UserID        string `gorm:"size:36;index;uniqueIndex:idx_custom_member_vol,priority:1;not null" json:"userId"`
	StageMemberID string `gorm:"size:36;index;uniqueIndex:idx_custom_member_vol,priority:2;not null" json:"stageMemberId"`
	DeviceID      string `gorm:"size:36;index;uniqueIndex:idx_custom_member_vol,priority:3;not null" json:"deviceId"`

	VolumeProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomStageMemberVolume) TableName() string { return "custom_stage_member_volumes" }

type CustomStageDevicePosition struct {
	ID            string `gorm:"primaryKey;size:36" json:"_id"`
	UserID        string `gorm:"size:36;index;uniqueIndex:idx_custom_sd_pos,priority:1;not null" json:"userId"`
	StageDeviceID string `gorm:"size:36;index;uniqueIndex:idx_custom_sd_pos,priority:2;not null" json:"stageDeviceId"`
	DeviceID      string `gorm:"size:36;index;uniqueIndex:idx_custom_sd_pos,priority:3;not null" json:"deviceId"`

	ThreeDimensionalProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomStageDevicePosition) TableName() string { return "custom_stage_device_positions" }

type CustomStageDeviceVolume struct {
	ID            string `gorm:"primaryKey;size:36" json:"_id"`
	UserID        string `gorm:"size:36;index;uniqueIndex:idx_custom_sd_vol,priority:1;not null" json:"userId"`
	StageDeviceID string `gorm:"size:36;index;uniqueIndex:idx_custom_sd_vol,priority:2;not null" json:"stageDeviceId"`
	DeviceID      string `gorm:"size:36;index;uniqueIndex:idx_custom_sd_vol,priority:3;not null" json:"deviceId"`

	VolumeProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomStageDeviceVolume) TableName() string { return "custom_stage_device_volumes" }

type CustomAudioTrackPosition struct {
	ID           string `gorm:"primaryKey;size:36" json:"_id"`
	UserID       string `gorm:"size:36;index;uniqueIndex:idx_custom_at_pos,priority:1;not null" json:"userId"`
	AudioTrackID string `gorm:"size:36;index;uniqueIndex:idx_custom_at_pos,priority:2;not null" json:"audioTrackId"`
	DeviceID     string `gorm:"size:36;index;uniqueIndex:idx_custom_at_pos,priority:3;not null" json:"deviceId"`

	ThreeDimensionalProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomAudioTrackPosition) TableName() string { return "custom_audio_track_positions" }

type CustomAudioTrackVolume struct {
	ID           string `gorm:"primaryKey;size:36" json:"_id"`
	UserID       string `gorm:"size:36;index;uniqueIndex:idx_custom_at_vol,priority:1;not null" json:"userId"`
	AudioTrackID string `gorm:"size:36;index;uniqueIndex:idx_custom_at_vol,priority:2;not null" json:"audioTrackId"`
	DeviceID     string `gorm:"size:36;index;uniqueIndex:idx_custom_at_vol,priority:3;not null" json:"deviceId"`

	VolumeProperties `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CustomAudioTrackVolume) TableName() string { return "custom_audio_track_volumes" }
