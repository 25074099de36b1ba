package services

import (
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/pkg/logger"
)

// Event kinds pushed to clients. Removal payloads carry the bare id; change
// payloads carry the id plus the changed columns.
const (
	EventReady = "ready"

	EventUserChanged = "user-changed"
	EventUserRemoved = "user-removed"

	EventDeviceAdded   = "device-added"
	EventDeviceChanged = "device-changed"
	EventDeviceRemoved = "device-removed"

	EventSoundCardAdded   = "sound-card-added"
	EventSoundCardChanged = "sound-card-changed"
	EventSoundCardRemoved = "sound-card-removed"

	EventStageAdded   = "stage-added"
	EventStageChanged = "stage-changed"
	EventStageRemoved = "stage-removed"
	EventStageJoined  = "stage-joined"
	EventStageLeft    = "stage-left"

	EventGroupAdded   = "group-added"
	EventGroupChanged = "group-changed"
	EventGroupRemoved = "group-removed"

	EventStageMemberAdded   = "stage-member-added"
	EventStageMemberChanged = "stage-member-changed"
	EventStageMemberRemoved = "stage-member-removed"

	EventStageDeviceAdded   = "stage-device-added"
	EventStageDeviceChanged = "stage-device-changed"
	EventStageDeviceRemoved = "stage-device-removed"

	EventAudioTrackAdded   = "audio-track-added"
	EventAudioTrackChanged = "audio-track-changed"
	EventAudioTrackRemoved = "audio-track-removed"

	EventVideoTrackAdded   = "video-track-added"
	EventVideoTrackChanged = "video-track-changed"
	EventVideoTrackRemoved = "video-track-removed"

	EventCustomGroupPositionAdded   = "custom-group-position-added"
	EventCustomGroupPositionChanged = "custom-group-position-changed"
	EventCustomGroupPositionRemoved = "custom-group-position-removed"
	EventCustomGroupVolumeAdded     = "custom-group-volume-added"
	EventCustomGroupVolumeChanged   = "custom-group-volume-changed"
	EventCustomGroupVolumeRemoved   = "custom-group-volume-removed"

	EventCustomStageMemberPositionAdded   = "custom-stage-member-position-added"
	EventCustomStageMemberPositionChanged = "custom-stage-member-position-changed"
	EventCustomStageMemberPositionRemoved = "custom-stage-member-position-removed"
	EventCustomStageMemberVolumeAdded     = "custom-stage-member-volume-added"
	EventCustomStageMemberVolumeChanged   = "custom-stage-member-volume-changed"
	EventCustomStageMemberVolumeRemoved   = "custom-stage-member-volume-removed"

	EventCustomStageDevicePositionAdded   = "custom-stage-device-position-added"
	EventCustomStageDevicePositionChanged = "custom-stage-device-position-changed"
	EventCustomStageDevicePositionRemoved = "custom-stage-device-position-removed"
	EventCustomStageDeviceVolumeAdded     = "custom-stage-device-volume-added"
	EventCustomStageDeviceVolumeChanged   = "custom-stage-device-volume-changed"
	EventCustomStageDeviceVolumeRemoved   = "custom-stage-device-volume-removed"

	EventCustomAudioTrackPositionAdded   = "custom-audio-track-position-added"
	EventCustomAudioTrackPositionChanged = "custom-audio-track-position-changed"
	EventCustomAudioTrackPositionRemoved = "custom-audio-track-position-removed"
	EventCustomAudioTrackVolumeAdded     = "custom-audio-track-volume-added"
	EventCustomAudioTrackVolumeChanged   = "custom-audio-track-volume-changed"
	EventCustomAudioTrackVolumeRemoved   = "custom-audio-track-volume-removed"

	EventRouterAdded   = "router-added"
	EventRouterChanged = "router-changed"
	EventRouterRemoved = "router-removed"

	EventRouterServeStage   = "router-serve-stage"
	EventRouterUnserveStage = "router-unserve-stage"
)

// SendToUser delivers an event to every connected device of one user.
func (d *Distributor) SendToUser(userID, event string, payload interface{}) {
	d.hub.SendToUser(userID, event, payload)
}

// SendToDevice delivers an event to a single device connection.
func (d *Distributor) SendToDevice(deviceID, event string, payload interface{}) {
	d.hub.SendToDevice(deviceID, event, payload)
}

// SendToRouter delivers an event to a connected media router.
func (d *Distributor) SendToRouter(routerID, event string, payload interface{}) {
	d.hub.SendToRouter(routerID, event, payload)
}

// SendToAll delivers an event to every connected client.
func (d *Distributor) SendToAll(event string, payload interface{}) {
	d.hub.SendToAll(event, payload)
}

// SendToStage delivers an event to the union of the stage's admins and the
// users holding a StageMember record, deduplicated per call so every
// recipient sees the event at most once. Admins receive events even when
// they never joined.
func (d *Distributor) SendToStage(stageID, event string, payload interface{}) error {
	recipients := map[string]struct{}{}

	var adminIDs []string
	if err := d.db.Model(&models.StageAdmin{}).
		Where("stage_id = ?", stageID).
		Pluck("user_id", &adminIDs).Error; err != nil {
		return err
	}
	for _, id := range adminIDs {
		recipients[id] = struct{}{}
	}

	var memberUserIDs []string
	if err := d.db.Model(&models.StageMember{}).
		Where("stage_id = ?", stageID).
		Pluck("user_id", &memberUserIDs).Error; err != nil {
		return err
	}
	for _, id := range memberUserIDs {
		recipients[id] = struct{}{}
	}

	for id := range recipients {
		d.hub.SendToUser(id, event, payload)
	}
	return nil
}

// SendToJoinedStage delivers an event only to users currently present in
// the stage (their active stage pointer equals the target).
func (d *Distributor) SendToJoinedStage(stageID, event string, payload interface{}) error {
	var userIDs []string
	if err := d.db.Model(&models.User{}).
		Where("stage_id = ?", stageID).
		Pluck("id", &userIDs).Error; err != nil {
		return err
	}
	for _, id := range userIDs {
		d.hub.SendToUser(id, event, payload)
	}
	return nil
}

// notifyJoinedStage is SendToJoinedStage with the error demoted to a log
// line, for the fire-and-forget notification paths.
func (d *Distributor) notifyJoinedStage(stageID, event string, payload interface{}) {
	if err := d.SendToJoinedStage(stageID, event, payload); err != nil {
		logger.Error().Err(err).Str("stage", stageID).Str("event", event).Msg("fan-out failed")
	}
}

// notifyStage is SendToStage with the error demoted to a log line.
func (d *Distributor) notifyStage(stageID, event string, payload interface{}) {
	if err := d.SendToStage(stageID, event, payload); err != nil {
		logger.Error().Err(err).Str("stage", stageID).Str("event", event).Msg("fan-out failed")
	}
}
