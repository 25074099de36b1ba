package services

import (
	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/internal/utils"
	"github.com/stagecast/distributor/pkg/logger"
)

// StagePackage is the full stage state handed to a user on join: the
// entity graph of the stage plus the caller's own overrides.
type StagePackage struct {
	Stage        *models.Stage        `json:"stage"`
	Groups       []models.Group       `json:"groups"`
	StageMembers []models.StageMember `json:"stageMembers"`
	StageDevices []models.StageDevice `json:"stageDevices"`
	AudioTracks  []models.AudioTrack  `json:"audioTracks"`
	VideoTracks  []models.VideoTrack  `json:"videoTracks"`

	CustomGroupPositions       []models.CustomGroupPosition       `json:"customGroupPositions"`
	CustomGroupVolumes         []models.CustomGroupVolume         `json:"customGroupVolumes"`
	CustomStageMemberPositions []models.CustomStageMemberPosition `json:"customStageMemberPositions"`
	CustomStageMemberVolumes   []models.CustomStageMemberVolume   `json:"customStageMemberVolumes"`
	CustomStageDevicePositions []models.CustomStageDevicePosition `json:"customStageDevicePositions"`
	CustomStageDeviceVolumes   []models.CustomStageDeviceVolume   `json:"customStageDeviceVolumes"`
	CustomAudioTrackPositions  []models.CustomAudioTrackPosition  `json:"customAudioTrackPositions"`
	CustomAudioTrackVolumes    []models.CustomAudioTrackVolume    `json:"customAudioTrackVolumes"`

	StageMemberID string `json:"stageMemberId"`
	GroupID       string `json:"groupId"`
}

// JoinStage moves a user into a stage: password check, member
// find-or-create, pointer update, StageDevice materialization for every
// device of the user, then notifications. A user already inside another
// stage leaves it first.
func (d *Distributor) JoinStage(userID, stageID, groupID, password string) (*StagePackage, error) {
	user, err := d.GetUser(userID)
	if err != nil {
		return nil, err
	}
	stage, err := d.GetStage(stageID)
	if err != nil {
		return nil, err
	}

	admin, err := d.isStageAdmin(stageID, userID)
	if err != nil {
		return nil, err
	}
	if stage.Password != "" && !admin {
		if !utils.CheckPassword(password, stage.Password) {
			return nil, ErrInvalidPassword
		}
	}

	if groupID == "" {
		// Default to the stage's first group by creation order.
		var first models.Group
		if err := d.db.Where("stage_id = ?", stageID).Order("created_at").First(&first).Error; err != nil {
			if translateNotFound(err) == ErrNotFound {
				return nil, ErrNoGroupAvailable
			}
			return nil, err
		}
		groupID = first.ID
	} else {
		var count int64
		if err := d.db.Model(&models.Group{}).
			Where("id = ? AND stage_id = ?", groupID, stageID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
	}

	if user.InsideStage() && *user.StageID != stageID {
		if err := d.LeaveStage(userID); err != nil && err != ErrNotInsideStage {
			return nil, err
		}
	}

	var devices []models.Device
	if err := d.db.Find(&devices, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	anyOnline := false
	for _, device := range devices {
		if device.Online {
			anyOnline = true
			break
		}
	}

	var member models.StageMember
	created := false
	err = d.db.Where("user_id = ? AND stage_id = ?", userID, stageID).First(&member).Error
	if err != nil {
		if translateNotFound(err) != ErrNotFound {
			return nil, err
		}
		member = models.StageMember{
			ID:                         uuid.NewString(),
			StageID:                    stageID,
			UserID:                     userID,
			GroupID:                    groupID,
			Active:                     anyOnline,
			ThreeDimensionalProperties: models.DefaultThreeDimensional(),
			VolumeProperties:           models.DefaultVolume(),
		}
		if err := d.db.Create(&member).Error; err != nil {
			return nil, err
		}
		created = true
	} else {
		cols := map[string]interface{}{"active": anyOnline}
		if member.GroupID != groupID {
			cols["group_id"] = groupID
		}
		if err := d.db.Model(&models.StageMember{}).Where("id = ?", member.ID).Updates(cols).Error; err != nil {
			return nil, err
		}
		member.Active = anyOnline
		member.GroupID = groupID
	}

	if err := d.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"stage_id":        stageID,
		"group_id":        groupID,
		"stage_member_id": member.ID,
	}).Error; err != nil {
		return nil, err
	}

	for _, device := range devices {
		var existing int64
		if err := d.db.Model(&models.StageDevice{}).
			Where("stage_member_id = ? AND device_id = ?", member.ID, device.ID).
			Count(&existing).Error; err != nil {
			return nil, err
		}
		if existing > 0 {
			continue
		}
		if _, err := d.createStageDevice(&member, &device); err != nil {
			if err == ErrSlotsExhausted {
				return nil, err
			}
			logger.Error().Err(err).
				Str("device", device.ID).
				Str("stage", stageID).
				Msg("failed to materialize stage device on join")
		}
	}

	if created {
		d.notifyJoinedStage(stageID, EventStageMemberAdded, member)
	} else {
		d.notifyJoinedStage(stageID, EventStageMemberChanged, map[string]interface{}{
			"_id":     member.ID,
			"active":  member.Active,
			"groupId": member.GroupID,
		})
	}

	pkg, err := d.buildStagePackage(userID, stage, member.ID, groupID)
	if err != nil {
		return nil, err
	}
	d.SendToUser(userID, EventStageJoined, pkg)
	return pkg, nil
}

// LeaveStage ends the user's presence in their current stage without
// removing the member record: pointers are cleared, the member and its
// stage devices go inactive, and published tracks are withdrawn.
func (d *Distributor) LeaveStage(userID string) error {
	user, err := d.GetUser(userID)
	if err != nil {
		return err
	}
	if !user.InsideStage() {
		return ErrNotInsideStage
	}

	stageID := *user.StageID
	memberID := *user.StageMemberID

	if err := d.clearUserStagePointers(user); err != nil {
		return err
	}
	d.SendToUser(userID, EventStageLeft, stageID)

	if err := d.db.Model(&models.StageMember{}).
		Where("id = ?", memberID).
		Update("active", false).Error; err != nil {
		return err
	}
	d.notifyJoinedStage(stageID, EventStageMemberChanged, map[string]interface{}{
		"_id":    memberID,
		"active": false,
	})

	var stageDevices []models.StageDevice
	if err := d.db.Find(&stageDevices, "stage_member_id = ?", memberID).Error; err != nil {
		return err
	}

	branches := make([]func() error, 0, len(stageDevices))
	for _, sd := range stageDevices {
		sd := sd
		branches = append(branches, func() error {
			if err := d.db.Model(&models.StageDevice{}).
				Where("id = ?", sd.ID).
				Update("active", false).Error; err != nil {
				return err
			}
			d.notifyJoinedStage(stageID, EventStageDeviceChanged, map[string]interface{}{
				"_id":    sd.ID,
				"active": false,
			})
			return d.removeTracksOfStageDevice(sd.ID, stageID)
		})
	}
	return cascadeError("leave stage", memberID, runBranches(branches...))
}

// LeaveStageForGood removes the user's membership record of a stage
// entirely, cascading its stage devices, tracks and overrides.
func (d *Distributor) LeaveStageForGood(userID, stageID string) error {
	var member models.StageMember
	err := d.db.Where("user_id = ? AND stage_id = ?", userID, stageID).First(&member).Error
	if err != nil {
		return translateNotFound(err)
	}
	return d.deleteStageMemberCascade(&member)
}

// buildStagePackage collects the stage graph plus the viewer's overrides.
func (d *Distributor) buildStagePackage(userID string, stage *models.Stage, memberID, groupID string) (*StagePackage, error) {
	pkg := &StagePackage{
		Stage:         stage,
		StageMemberID: memberID,
		GroupID:       groupID,
	}

	if err := d.db.Find(&pkg.Groups, "stage_id = ?", stage.ID).Error; err != nil {
		return nil, err
	}
	if err := d.db.Find(&pkg.StageMembers, "stage_id = ?", stage.ID).Error; err != nil {
		return nil, err
	}
	if err := d.db.Find(&pkg.StageDevices, "stage_id = ?", stage.ID).Error; err != nil {
		return nil, err
	}
	if err := d.db.Find(&pkg.AudioTracks, "stage_id = ?", stage.ID).Error; err != nil {
		return nil, err
	}
	if err := d.db.Find(&pkg.VideoTracks, "stage_id = ?", stage.ID).Error; err != nil {
		return nil, err
	}

	groupIDs := make([]string, 0, len(pkg.Groups))
	for _, group := range pkg.Groups {
		groupIDs = append(groupIDs, group.ID)
	}
	memberIDs := make([]string, 0, len(pkg.StageMembers))
	for _, member := range pkg.StageMembers {
		memberIDs = append(memberIDs, member.ID)
	}
	stageDeviceIDs := make([]string, 0, len(pkg.StageDevices))
	for _, sd := range pkg.StageDevices {
		stageDeviceIDs = append(stageDeviceIDs, sd.ID)
	}
	trackIDs := make([]string, 0, len(pkg.AudioTracks))
	for _, track := range pkg.AudioTracks {
		trackIDs = append(trackIDs, track.ID)
	}

	if len(groupIDs) > 0 {
		if err := d.db.Find(&pkg.CustomGroupPositions, "user_id = ? AND group_id IN ?", userID, groupIDs).Error; err != nil {
			return nil, err
		}
		if err := d.db.Find(&pkg.CustomGroupVolumes, "user_id = ? AND group_id IN ?", userID, groupIDs).Error; err != nil {
			return nil, err
		}
	}
	if len(memberIDs) > 0 {
		if err := d.db.Find(&pkg.CustomStageMemberPositions, "user_id = ? AND stage_member_id IN ?", userID, memberIDs).Error; err != nil {
			return nil, err
		}
		if err := d.db.Find(&pkg.CustomStageMemberVolumes, "user_id = ? AND stage_member_id IN ?", userID, memberIDs).Error; err != nil {
			return nil, err
		}
	}
	if len(stageDeviceIDs) > 0 {
		if err := d.db.Find(&pkg.CustomStageDevicePositions, "user_id = ? AND stage_device_id IN ?", userID, stageDeviceIDs).Error; err != nil {
			return nil, err
		}
		if err := d.db.Find(&pkg.CustomStageDeviceVolumes, "user_id = ? AND stage_device_id IN ?", userID, stageDeviceIDs).Error; err != nil {
			return nil, err
		}
	}
	if len(trackIDs) > 0 {
		if err := d.db.Find(&pkg.CustomAudioTrackPositions, "user_id = ? AND audio_track_id IN ?", userID, trackIDs).Error; err != nil {
			return nil, err
		}
		if err := d.db.Find(&pkg.CustomAudioTrackVolumes, "user_id = ? AND audio_track_id IN ?", userID, trackIDs).Error; err != nil {
			return nil, err
		}
	}

	return pkg, nil
}
