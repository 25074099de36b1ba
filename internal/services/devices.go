package services

import (
	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/pkg/logger"
)

// CreateDeviceRequest registers a client instance of a user.
type CreateDeviceRequest struct {
	Type         string  `json:"type"`
	UUID         *string `json:"uuid"`
	CanAudio     bool    `json:"canAudio"`
	CanVideo     bool    `json:"canVideo"`
	SendAudio    bool    `json:"sendAudio"`
	SendVideo    bool    `json:"sendVideo"`
	ReceiveAudio bool    `json:"receiveAudio"`
	ReceiveVideo bool    `json:"receiveVideo"`
	Online       bool    `json:"online"`
}

// CreateDevice registers a device and materializes a StageDevice in every
// stage the user is a member of, so the Device×StageMember cross product
// stays complete.
func (d *Distributor) CreateDevice(userID string, req *CreateDeviceRequest) (*models.Device, error) {
	if _, err := d.GetUser(userID); err != nil {
		return nil, err
	}

	device := models.Device{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         req.Type,
		UUID:         req.UUID,
		ApiServer:    d.instanceID,
		Online:       req.Online,
		CanAudio:     req.CanAudio,
		CanVideo:     req.CanVideo,
		SendAudio:    req.SendAudio,
		SendVideo:    req.SendVideo,
		ReceiveAudio: req.ReceiveAudio,
		ReceiveVideo: req.ReceiveVideo,
	}
	if err := d.db.Create(&device).Error; err != nil {
		return nil, err
	}
	d.SendToUser(userID, EventDeviceAdded, device)

	var members []models.StageMember
	if err := d.db.Find(&members, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	for _, member := range members {
		if _, err := d.createStageDevice(&member, &device); err != nil {
			logger.Error().Err(err).
				Str("device", device.ID).
				Str("stage", member.StageID).
				Msg("failed to materialize stage device")
		}
	}

	if device.Online {
		d.renewPresenceAsync(userID)
	}
	return &device, nil
}

// UpdateDeviceRequest patches a device. Online transitions re-derive the
// owner's presence.
type UpdateDeviceRequest struct {
	Online       *bool   `json:"online"`
	CanAudio     *bool   `json:"canAudio"`
	CanVideo     *bool   `json:"canVideo"`
	SendAudio    *bool   `json:"sendAudio"`
	SendVideo    *bool   `json:"sendVideo"`
	ReceiveAudio *bool   `json:"receiveAudio"`
	ReceiveVideo *bool   `json:"receiveVideo"`
	SoundCardID  *string `json:"soundCardId"`
}

func (d *Distributor) UpdateDevice(userID, deviceID string, req *UpdateDeviceRequest) error {
	var device models.Device
	if err := d.db.First(&device, "id = ?", deviceID).Error; err != nil {
		return translateNotFound(err)
	}
	if device.UserID != userID {
		return ErrNoPrivileges
	}

	cols := map[string]interface{}{}
	payload := map[string]interface{}{"_id": deviceID}
	if req.Online != nil {
		cols["online"] = *req.Online
		payload["online"] = *req.Online
	}
	if req.CanAudio != nil {
		cols["can_audio"] = *req.CanAudio
		payload["canAudio"] = *req.CanAudio
	}
	if req.CanVideo != nil {
		cols["can_video"] = *req.CanVideo
		payload["canVideo"] = *req.CanVideo
	}
	if req.SendAudio != nil {
		cols["send_audio"] = *req.SendAudio
		payload["sendAudio"] = *req.SendAudio
	}
	if req.SendVideo != nil {
		cols["send_video"] = *req.SendVideo
		payload["sendVideo"] = *req.SendVideo
	}
	if req.ReceiveAudio != nil {
		cols["receive_audio"] = *req.ReceiveAudio
		payload["receiveAudio"] = *req.ReceiveAudio
	}
	if req.ReceiveVideo != nil {
		cols["receive_video"] = *req.ReceiveVideo
		payload["receiveVideo"] = *req.ReceiveVideo
	}
	if req.SoundCardID != nil {
		cols["sound_card_id"] = *req.SoundCardID
		payload["soundCardId"] = *req.SoundCardID
	}
	if len(cols) == 0 {
		return nil
	}

	d.SendToUser(userID, EventDeviceChanged, payload)

	if err := d.db.Model(&models.Device{}).Where("id = ?", deviceID).Updates(cols).Error; err != nil {
		return err
	}

	if req.Online != nil && *req.Online != device.Online {
		d.renewPresenceAsync(userID)
	}
	return nil
}

// SetDeviceOnline flips the online flag from the transport layer
// (connection established / lost) and re-derives presence.
func (d *Distributor) SetDeviceOnline(deviceID string, online bool) error {
	var device models.Device
	if err := d.db.First(&device, "id = ?", deviceID).Error; err != nil {
		return translateNotFound(err)
	}
	if device.Online == online {
		return nil
	}
	if err := d.db.Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("online", online).Error; err != nil {
		return err
	}
	d.SendToUser(device.UserID, EventDeviceChanged, map[string]interface{}{
		"_id":    deviceID,
		"online": online,
	})
	d.renewPresenceAsync(device.UserID)
	return nil
}

// DeleteDevice removes a device and its cascade: stage devices it
// materialized, tracks it published, sound cards it registered and every
// override it authored. Presence of the owner is re-derived afterwards.
func (d *Distributor) DeleteDevice(deviceID string) error {
	var device models.Device
	if err := d.db.First(&device, "id = ?", deviceID).Error; err != nil {
		return translateNotFound(err)
	}

	var stageDevices []models.StageDevice
	if err := d.db.Find(&stageDevices, "device_id = ?", deviceID).Error; err != nil {
		return err
	}

	branches := make([]func() error, 0, len(stageDevices)+9)
	for _, sd := range stageDevices {
		sd := sd
		branches = append(branches, func() error {
			return d.deleteStageDeviceCascade(&sd)
		})
	}
	branches = append(branches,
		func() error {
			return d.db.Delete(&models.SoundCard{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomGroupPosition{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomGroupVolume{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomStageMemberPosition{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomStageMemberVolume{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomStageDevicePosition{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomStageDeviceVolume{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomAudioTrackPosition{}, "device_id = ?", deviceID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomAudioTrackVolume{}, "device_id = ?", deviceID).Error
		},
	)

	if err := runBranches(branches...); err != nil {
		return cascadeError("delete device", deviceID, err)
	}

	if err := d.db.Delete(&models.Device{}, "id = ?", deviceID).Error; err != nil {
		return err
	}
	d.SendToUser(device.UserID, EventDeviceRemoved, deviceID)

	d.renewPresenceAsync(device.UserID)
	return nil
}
