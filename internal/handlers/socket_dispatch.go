package handlers

import (
	"encoding/json"
	"errors"

	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/internal/realtime"
	"github.com/stagecast/distributor/internal/services"
)

var errUnknownIntent = errors.New("unknown intent")

// Client intent names. Mutations are acknowledged by the resulting
// events, not by a reply to the frame.
const (
	intentChangeUser = "change-user"

	intentChangeDevice    = "change-device"
	intentSendSoundCard   = "send-sound-card"
	intentRemoveSoundCard = "remove-sound-card"

	intentCreateStage = "create-stage"
	intentChangeStage = "change-stage"
	intentRemoveStage = "remove-stage"

	intentJoinStage         = "join-stage"
	intentLeaveStage        = "leave-stage"
	intentLeaveStageForGood = "leave-stage-for-good"

	intentCreateGroup = "create-group"
	intentChangeGroup = "change-group"
	intentRemoveGroup = "remove-group"

	intentChangeStageMember = "change-stage-member"
	intentRemoveStageMember = "remove-stage-member"

	intentChangeStageDevice = "change-stage-device"

	intentCreateAudioTrack = "create-audio-track"
	intentChangeAudioTrack = "change-audio-track"
	intentRemoveAudioTrack = "remove-audio-track"
	intentCreateVideoTrack = "create-video-track"
	intentRemoveVideoTrack = "remove-video-track"

	intentSetCustomGroupPosition    = "set-custom-group-position"
	intentRemoveCustomGroupPosition = "remove-custom-group-position"
	intentSetCustomGroupVolume      = "set-custom-group-volume"
	intentRemoveCustomGroupVolume   = "remove-custom-group-volume"

	intentSetCustomStageMemberPosition    = "set-custom-stage-member-position"
	intentRemoveCustomStageMemberPosition = "remove-custom-stage-member-position"
	intentSetCustomStageMemberVolume      = "set-custom-stage-member-volume"
	intentRemoveCustomStageMemberVolume   = "remove-custom-stage-member-volume"

	intentSetCustomStageDevicePosition    = "set-custom-stage-device-position"
	intentRemoveCustomStageDevicePosition = "remove-custom-stage-device-position"
	intentSetCustomStageDeviceVolume      = "set-custom-stage-device-volume"
	intentRemoveCustomStageDeviceVolume   = "remove-custom-stage-device-volume"

	intentSetCustomAudioTrackPosition    = "set-custom-audio-track-position"
	intentRemoveCustomAudioTrackPosition = "remove-custom-audio-track-position"
	intentSetCustomAudioTrackVolume      = "set-custom-audio-track-volume"
	intentRemoveCustomAudioTrackVolume   = "remove-custom-audio-track-volume"
)

type idPayload struct {
	ID string `json:"_id"`
}

type joinPayload struct {
	StageID  string `json:"stageId"`
	GroupID  string `json:"groupId"`
	Password string `json:"password"`
}

type targetPatch struct {
	TargetID string                       `json:"targetId"`
	Position models.ThreeDimensionalPatch `json:"position"`
	Volume   models.VolumePatch           `json:"volume"`
}

func decode[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// dispatch routes a client frame to the distributor. Router connections
// carry no user identity and accept no intents.
func (h *SocketHandler) dispatch(client *realtime.Client, frame *clientFrame) error {
	if client.UserID == "" {
		return errUnknownIntent
	}
	userID := client.UserID
	deviceID := client.DeviceID
	d := h.distributor

	switch frame.Event {
	case intentChangeUser:
		req, err := decode[services.UpdateUserRequest](frame.Payload)
		if err != nil {
			return err
		}
		return d.UpdateUser(userID, req)

	case intentChangeDevice:
		var p struct {
			ID string `json:"_id"`
			services.UpdateDeviceRequest
		}
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return err
		}
		if p.ID == "" {
			p.ID = deviceID
		}
		return d.UpdateDevice(userID, p.ID, &p.UpdateDeviceRequest)

	case intentSendSoundCard:
		req, err := decode[services.SoundCardRequest](frame.Payload)
		if err != nil {
			return err
		}
		_, err = d.UpsertSoundCard(userID, deviceID, req)
		return err

	case intentRemoveSoundCard:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.DeleteSoundCard(userID, p.ID)

	case intentCreateStage:
		req, err := decode[services.CreateStageRequest](frame.Payload)
		if err != nil {
			return err
		}
		_, err = d.CreateStage(userID, req)
		return err

	case intentChangeStage:
		var p struct {
			ID string `json:"_id"`
			services.UpdateStageRequest
		}
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return err
		}
		return d.UpdateStage(userID, p.ID, &p.UpdateStageRequest)

	case intentRemoveStage:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.DeleteStage(userID, p.ID)

	case intentJoinStage:
		p, err := decode[joinPayload](frame.Payload)
		if err != nil {
			return err
		}
		_, err = d.JoinStage(userID, p.StageID, p.GroupID, p.Password)
		return err

	case intentLeaveStage:
		return d.LeaveStage(userID)

	case intentLeaveStageForGood:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.LeaveStageForGood(userID, p.ID)

	case intentCreateGroup:
		var p struct {
			StageID string `json:"stageId"`
			services.CreateGroupRequest
		}
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return err
		}
		_, err := d.CreateGroup(userID, p.StageID, &p.CreateGroupRequest)
		return err

	case intentChangeGroup:
		var p struct {
			ID string `json:"_id"`
			services.UpdateGroupRequest
		}
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return err
		}
		return d.UpdateGroup(userID, p.ID, &p.UpdateGroupRequest)

	case intentRemoveGroup:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.DeleteGroup(userID, p.ID)

	case intentChangeStageMember:
		var p struct {
			ID string `json:"_id"`
			services.UpdateStageMemberRequest
		}
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return err
		}
		return d.UpdateStageMember(userID, p.ID, &p.UpdateStageMemberRequest)

	case intentRemoveStageMember:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveStageMember(userID, p.ID)

	case intentChangeStageDevice:
		var p struct {
			ID string `json:"_id"`
			services.UpdateStageDeviceRequest
		}
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return err
		}
		return d.UpdateStageDevice(userID, p.ID, &p.UpdateStageDeviceRequest)

	case intentCreateAudioTrack:
		req, err := decode[services.CreateAudioTrackRequest](frame.Payload)
		if err != nil {
			return err
		}
		_, err = d.CreateAudioTrack(userID, deviceID, req)
		return err

	case intentChangeAudioTrack:
		var p struct {
			ID string `json:"_id"`
			services.UpdateAudioTrackRequest
		}
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return err
		}
		return d.UpdateAudioTrack(userID, p.ID, &p.UpdateAudioTrackRequest)

	case intentRemoveAudioTrack:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.DeleteAudioTrack(userID, p.ID)

	case intentCreateVideoTrack:
		req, err := decode[services.CreateVideoTrackRequest](frame.Payload)
		if err != nil {
			return err
		}
		_, err = d.CreateVideoTrack(userID, deviceID, req)
		return err

	case intentRemoveVideoTrack:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.DeleteVideoTrack(userID, p.ID)

	case intentSetCustomGroupPosition:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomGroupPosition(userID, deviceID, p.TargetID, p.Position)

	case intentSetCustomGroupVolume:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomGroupVolume(userID, deviceID, p.TargetID, p.Volume)

	case intentRemoveCustomGroupPosition:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomGroupPosition(userID, p.ID)

	case intentRemoveCustomGroupVolume:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomGroupVolume(userID, p.ID)

	case intentSetCustomStageMemberPosition:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomStageMemberPosition(userID, deviceID, p.TargetID, p.Position)

	case intentSetCustomStageMemberVolume:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomStageMemberVolume(userID, deviceID, p.TargetID, p.Volume)

	case intentRemoveCustomStageMemberPosition:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomStageMemberPosition(userID, p.ID)

	case intentRemoveCustomStageMemberVolume:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomStageMemberVolume(userID, p.ID)

	case intentSetCustomStageDevicePosition:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomStageDevicePosition(userID, deviceID, p.TargetID, p.Position)

	case intentSetCustomStageDeviceVolume:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomStageDeviceVolume(userID, deviceID, p.TargetID, p.Volume)

	case intentRemoveCustomStageDevicePosition:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomStageDevicePosition(userID, p.ID)

	case intentRemoveCustomStageDeviceVolume:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomStageDeviceVolume(userID, p.ID)

	case intentSetCustomAudioTrackPosition:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomAudioTrackPosition(userID, deviceID, p.TargetID, p.Position)

	case intentSetCustomAudioTrackVolume:
		p, err := decode[targetPatch](frame.Payload)
		if err != nil {
			return err
		}
		return d.SetCustomAudioTrackVolume(userID, deviceID, p.TargetID, p.Volume)

	case intentRemoveCustomAudioTrackPosition:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomAudioTrackPosition(userID, p.ID)

	case intentRemoveCustomAudioTrackVolume:
		p, err := decode[idPayload](frame.Payload)
		if err != nil {
			return err
		}
		return d.RemoveCustomAudioTrackVolume(userID, p.ID)
	}

	return errUnknownIntent
}
