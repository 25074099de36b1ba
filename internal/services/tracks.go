package services

import (
	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
)

// CreateAudioTrackRequest publishes an audio stream from one stage device.
// The ownership chain (user, device, stage, member) is derived server-side
// from the stage device; it cannot be forged by the client.
type CreateAudioTrackRequest struct {
	StageDeviceID string  `json:"stageDeviceId" binding:"required"`
	Type          string  `json:"type"`
	ProducerID    *string `json:"producerId"`
	OvSourcePort  *int    `json:"ovSourcePort"`
}

func (d *Distributor) CreateAudioTrack(userID, deviceID string, req *CreateAudioTrackRequest) (*models.AudioTrack, error) {
	var sd models.StageDevice
	if err := d.db.First(&sd, "id = ?", req.StageDeviceID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	if sd.UserID != userID || sd.DeviceID != deviceID {
		return nil, ErrNoPrivileges
	}

	track := models.AudioTrack{
		ID:                         uuid.NewString(),
		StageID:                    sd.StageID,
		StageMemberID:              sd.StageMemberID,
		StageDeviceID:              sd.ID,
		UserID:                     sd.UserID,
		DeviceID:                   sd.DeviceID,
		Type:                       req.Type,
		ProducerID:                 req.ProducerID,
		OvSourcePort:               req.OvSourcePort,
		ThreeDimensionalProperties: models.DefaultThreeDimensional(),
		VolumeProperties:           models.DefaultVolume(),
	}
	if err := d.db.Create(&track).Error; err != nil {
		return nil, err
	}
	d.notifyJoinedStage(sd.StageID, EventAudioTrackAdded, track)
	return &track, nil
}

// UpdateAudioTrackRequest carries the client-patchable subset of a track.
// Ownership links (userId, deviceId, stage references) are write-protected
// and are not representable here; raw payloads carrying them are stripped
// by the handler before this struct is built.
type UpdateAudioTrackRequest struct {
	ProducerID   *string                      `json:"producerId"`
	OvSourcePort *int                         `json:"ovSourcePort"`
	Position     models.ThreeDimensionalPatch `json:"position"`
	Volume       models.VolumePatch           `json:"volume"`
}

func (d *Distributor) UpdateAudioTrack(userID, trackID string, req *UpdateAudioTrackRequest) error {
	var track models.AudioTrack
	if err := d.db.First(&track, "id = ?", trackID).Error; err != nil {
		return translateNotFound(err)
	}
	if track.UserID != userID {
		admin, err := d.isStageAdmin(track.StageID, userID)
		if err != nil {
			return err
		}
		if !admin {
			return ErrNoPrivileges
		}
	}

	cols := map[string]interface{}{}
	payload := map[string]interface{}{"_id": trackID}
	if req.ProducerID != nil {
		cols["producer_id"] = *req.ProducerID
		payload["producerId"] = *req.ProducerID
	}
	if req.OvSourcePort != nil {
		cols["ov_source_port"] = *req.OvSourcePort
		payload["ovSourcePort"] = *req.OvSourcePort
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

	// Optimistic notification for the safe subset, then persist.
	d.notifyJoinedStage(track.StageID, EventAudioTrackChanged, payload)

	return d.db.Model(&models.AudioTrack{}).Where("id = ?", trackID).Updates(cols).Error
}

// DeleteAudioTrack removes a published track and the overrides targeting it.
func (d *Distributor) DeleteAudioTrack(userID, trackID string) error {
	var track models.AudioTrack
	if err := d.db.First(&track, "id = ?", trackID).Error; err != nil {
		return translateNotFound(err)
	}
	if userID != "" && track.UserID != userID {
		admin, err := d.isStageAdmin(track.StageID, userID)
		if err != nil {
			return err
		}
		if !admin {
			return ErrNoPrivileges
		}
	}
	return d.deleteAudioTrackCascade(&track)
}

func (d *Distributor) deleteAudioTrackCascade(track *models.AudioTrack) error {
	err := runBranches(
		func() error {
			return d.db.Delete(&models.CustomAudioTrackPosition{}, "audio_track_id = ?", track.ID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomAudioTrackVolume{}, "audio_track_id = ?", track.ID).Error
		},
	)
	if err != nil {
		return cascadeError("delete audio track", track.ID, err)
	}
	if err := d.db.Delete(&models.AudioTrack{}, "id = ?", track.ID).Error; err != nil {
		return err
	}
	d.notifyJoinedStage(track.StageID, EventAudioTrackRemoved, track.ID)
	return nil
}

// CreateVideoTrackRequest publishes a video stream from one stage device.
type CreateVideoTrackRequest struct {
	StageDeviceID string  `json:"stageDeviceId" binding:"required"`
	Type          string  `json:"type"`
	ProducerID    *string `json:"producerId"`
}

func (d *Distributor) CreateVideoTrack(userID, deviceID string, req *CreateVideoTrackRequest) (*models.VideoTrack, error) {
	var sd models.StageDevice
	if err := d.db.First(&sd, "id = ?", req.StageDeviceID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	if sd.UserID != userID || sd.DeviceID != deviceID {
		return nil, ErrNoPrivileges
	}

	track := models.VideoTrack{
		ID:            uuid.NewString(),
		StageID:       sd.StageID,
		StageMemberID: sd.StageMemberID,
		StageDeviceID: sd.ID,
		UserID:        sd.UserID,
		DeviceID:      sd.DeviceID,
		Type:          req.Type,
		ProducerID:    req.ProducerID,
	}
	if err := d.db.Create(&track).Error; err != nil {
		return nil, err
	}
	d.notifyJoinedStage(sd.StageID, EventVideoTrackAdded, track)
	return &track, nil
}

// DeleteVideoTrack removes a published video track.
func (d *Distributor) DeleteVideoTrack(userID, trackID string) error {
	var track models.VideoTrack
	if err := d.db.First(&track, "id = ?", trackID).Error; err != nil {
		return translateNotFound(err)
	}
	if userID != "" && track.UserID != userID {
		admin, err := d.isStageAdmin(track.StageID, userID)
		if err != nil {
			return err
		}
		if !admin {
			return ErrNoPrivileges
		}
	}
	if err := d.db.Delete(&models.VideoTrack{}, "id = ?", track.ID).Error; err != nil {
		return err
	}
	d.notifyJoinedStage(track.StageID, EventVideoTrackRemoved, track.ID)
	return nil
}

// removeTracksOfStageDevice deletes every track a stage device published,
// with their overrides, notifying the joined stage per removed track.
func (d *Distributor) removeTracksOfStageDevice(stageDeviceID, stageID string) error {
	var audioTracks []models.AudioTrack
	if err := d.db.Find(&audioTracks, "stage_device_id = ?", stageDeviceID).Error; err != nil {
		return err
	}
	var videoTracks []models.VideoTrack
	if err := d.db.Find(&videoTracks, "stage_device_id = ?", stageDeviceID).Error; err != nil {
		return err
	}

	branches := make([]func() error, 0, len(audioTracks)+len(videoTracks))
	for _, track := range audioTracks {
		track := track
		branches = append(branches, func() error {
			return d.deleteAudioTrackCascade(&track)
		})
	}
	for _, track := range videoTracks {
		track := track
		branches = append(branches, func() error {
			if err := d.db.Delete(&models.VideoTrack{}, "id = ?", track.ID).Error; err != nil {
				return err
			}
			d.notifyJoinedStage(stageID, EventVideoTrackRemoved, track.ID)
			return nil
		})
	}
	return cascadeError("remove tracks of stage device", stageDeviceID, runBranches(branches...))
}
