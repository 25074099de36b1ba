package models

import "time"

// StageMember is a User's presence record inside one stage and group.
// Exactly one exists per (user, stage); Active aggregates the online state
// of all the user's devices.
type StageMember struct {
	ID      string `gorm:"primaryKey;size:36" json:"_id"`
	StageID string `gorm:"size:36;index;uniqueIndex:idx_member_user_stage,priority:1;not null" json:"stageId"`
	UserID  string `gorm:"size:36;index;uniqueIndex:idx_member_user_stage,priority:2;not null" json:"userId"`
	GroupID string `gorm:"size:36;index;not null" json:"groupId"`

	Active     bool `gorm:"default:false" json:"active"`
	IsDirector bool `gorm:"default:false" json:"isDirector"`

	ThreeDimensionalProperties `gorm:"embedded"`
	VolumeProperties           `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (StageMember) TableName() string { return "stage_members" }

// MaxStageDeviceOrder bounds the per-stage order slots: valid slots are
// [0, MaxStageDeviceOrder).
const MaxStageDeviceOrder = 30

// StageDevice is the presence of one Device inside a Stage for a given
// StageMember. Order is the device's slot, unique within the stage.
type StageDevice struct {
	ID            string `gorm:"primaryKey;size:36" json:"_id"`
	StageID       string `gorm:"size:36;index;uniqueIndex:idx_stage_device_order,priority:1;not null" json:"stageId"`
	GroupID       string `gorm:"size:36;index;not null" json:"groupId"`
	StageMemberID string `gorm:"size:36;index;not null" json:"stageMemberId"`
	UserID        string `gorm:"size:36;index;not null" json:"userId"`
	DeviceID      string `gorm:"size:36;index;not null" json:"deviceId"`

	Order  int    `gorm:"column:order_slot;uniqueIndex:idx_stage_device_order,priority:2;not null" json:"order"`
	Active bool   `gorm:"default:false" json:"active"`
	Type   string `gorm:"size:50" json:"type"`

	SendLocal bool `gorm:"default:true" json:"sendLocal"`

	ThreeDimensionalProperties `gorm:"embedded"`
	VolumeProperties           `gorm:"embedded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (StageDevice) TableName() string { return "stage_devices" }
