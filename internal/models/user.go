package models

import "time"

// User is a platform identity. The three stage pointers are either all set
// (the user is currently inside a stage) or all unset.
type User struct {
	ID             string  `gorm:"primaryKey;size:36" json:"_id"`
	Uid            string  `gorm:"uniqueIndex;size:100;not null" json:"uid"` // external identity subject
	Name           string  `gorm:"size:200" json:"name"`
	AvatarURL      string  `gorm:"size:500" json:"avatarUrl"`
	CanCreateStage bool    `gorm:"default:false" json:"canCreateStage"`
	StageID        *string `gorm:"size:36;index" json:"stageId"`
	GroupID        *string `gorm:"size:36" json:"groupId"`
	StageMemberID  *string `gorm:"size:36" json:"stageMemberId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// InsideStage reports whether the user currently has an active stage session.
func (u *User) InsideStage() bool {
	return u.StageID != nil && u.GroupID != nil && u.StageMemberID != nil
}
