package services

import (
	"github.com/stagecast/distributor/internal/models"
)

// UpdateStageMemberRequest patches a member record. Moving the member to
// another group re-parents its stage devices.
type UpdateStageMemberRequest struct {
	GroupID    *string                      `json:"groupId"`
	IsDirector *bool                        `json:"isDirector"`
	Position   models.ThreeDimensionalPatch `json:"position"`
	Volume     models.VolumePatch           `json:"volume"`
}

// UpdateStageMember requires admin rights; sound editors may change the
// spatial and volume defaults only.
func (d *Distributor) UpdateStageMember(userID, stageMemberID string, req *UpdateStageMemberRequest) error {
	var member models.StageMember
	if err := d.db.First(&member, "id = ?", stageMemberID).Error; err != nil {
		return translateNotFound(err)
	}

	admin, err := d.isStageAdmin(member.StageID, userID)
	if err != nil {
		return err
	}
	if !admin {
		spatialOnly := req.GroupID == nil && req.IsDirector == nil
		editor, err := d.isSoundEditor(member.StageID, userID)
		if err != nil {
			return err
		}
		if !spatialOnly || !editor {
			return ErrNoPrivileges
		}
	}

	cols := map[string]interface{}{}
	payload := map[string]interface{}{"_id": stageMemberID}
	if req.GroupID != nil {
		var count int64
		if err := d.db.Model(&models.Group{}).
			Where("id = ? AND stage_id = ?", *req.GroupID, member.StageID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		cols["group_id"] = *req.GroupID
		payload["groupId"] = *req.GroupID
	}
	if req.IsDirector != nil {
		cols["is_director"] = *req.IsDirector
		payload["isDirector"] = *req.IsDirector
	}
	for col, value := range req.Position.Columns() {
		cols[col] = value
	}
	for col, value := range req.Volume.Columns() {
		cols[col] = value
	}
	if len(cols) == 0 {
		return nil
	}

	d.notifyJoinedStage(member.StageID, EventStageMemberChanged, payload)

	if err := d.db.Model(&models.StageMember{}).Where("id = ?", stageMemberID).Updates(cols).Error; err != nil {
		return err
	}

	if req.GroupID != nil {
		// Keep the stage devices and the owning user in the new group.
		if err := d.db.Model(&models.StageDevice{}).
			Where("stage_member_id = ?", stageMemberID).
			Update("group_id", *req.GroupID).Error; err != nil {
			return err
		}
		if err := d.db.Model(&models.User{}).
			Where("stage_member_id = ?", stageMemberID).
			Update("group_id", *req.GroupID).Error; err != nil {
			return err
		}
	}
	return nil
}

// RemoveStageMember expels a member from the stage entirely (admin only).
func (d *Distributor) RemoveStageMember(userID, stageMemberID string) error {
	var member models.StageMember
	if err := d.db.First(&member, "id = ?", stageMemberID).Error; err != nil {
		return translateNotFound(err)
	}
	admin, err := d.isStageAdmin(member.StageID, userID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrNoPrivileges
	}
	return d.deleteStageMemberCascade(&member)
}

// deleteStageMemberCascade removes a member record with its stage devices,
// tracks and targeting overrides. A member currently inside the stage is
// forced to leave first so the user's pointers never dangle.
func (d *Distributor) deleteStageMemberCascade(member *models.StageMember) error {
	var user models.User
	if err := d.db.First(&user, "id = ?", member.UserID).Error; err == nil {
		if user.StageMemberID != nil && *user.StageMemberID == member.ID {
			if err := d.clearUserStagePointers(&user); err != nil {
				return err
			}
			d.SendToUser(user.ID, EventStageLeft, member.StageID)
		}
	}

	var stageDevices []models.StageDevice
	if err := d.db.Find(&stageDevices, "stage_member_id = ?", member.ID).Error; err != nil {
		return err
	}

	branches := make([]func() error, 0, len(stageDevices)+2)
	for _, sd := range stageDevices {
		sd := sd
		branches = append(branches, func() error {
			return d.deleteStageDeviceCascade(&sd)
		})
	}
	branches = append(branches,
		func() error {
			return d.db.Delete(&models.CustomStageMemberPosition{}, "stage_member_id = ?", member.ID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomStageMemberVolume{}, "stage_member_id = ?", member.ID).Error
		},
	)

	if err := runBranches(branches...); err != nil {
		return cascadeError("delete stage member", member.ID, err)
	}

	if err := d.db.Delete(&models.StageMember{}, "id = ?", member.ID).Error; err != nil {
		return err
	}
	d.notifyStage(member.StageID, EventStageMemberRemoved, member.ID)
	return nil
}

// clearUserStagePointers resets the all-or-nothing stage session pointers.
func (d *Distributor) clearUserStagePointers(user *models.User) error {
	return d.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"stage_id":        nil,
			"group_id":        nil,
			"stage_member_id": nil,
		}).Error
}
