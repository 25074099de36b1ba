package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
	"gorm.io/gorm"
)

// Override resolution engine. All eight override kinds share one upsert
// primitive: try an atomic conditional update against the unique
// (viewer, target, device) triple, otherwise seed a new record from the
// target's current attributes merged with the delta. A losing concurrent
// insert surfaces as a duplicate key and is retried as an update, never as
// a user-visible error.

// upsertOverride is the shared primitive. filter identifies the unique
// triple, cols is the delta as column updates, seed materializes a fresh
// record from the target's current attributes, changedPayload builds the
// viewer notification for the update path.
func upsertOverride[T any](
	d *Distributor,
	viewerID string,
	filter map[string]interface{},
	cols map[string]interface{},
	seed func() (T, error),
	changedPayload func(id string) interface{},
	addedEvent, changedEvent string,
) error {
	if len(cols) > 0 {
		res := d.db.Model(new(T)).Where(filter).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			id, err := overrideID[T](d.db, filter)
			if err != nil {
				return err
			}
			d.SendToUser(viewerID, changedEvent, changedPayload(id))
			return nil
		}
	} else {
		// Empty delta: materialize the override if missing, otherwise done.
		var existing int64
		if err := d.db.Model(new(T)).Where(filter).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
	}

	record, err := seed()
	if err != nil {
		return err
	}
	if err := d.db.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race against a concurrent viewer call.
			if len(cols) > 0 {
				if err := d.db.Model(new(T)).Where(filter).Updates(cols).Error; err != nil {
					return err
				}
			}
			id, err := overrideID[T](d.db, filter)
			if err != nil {
				return err
			}
			d.SendToUser(viewerID, changedEvent, changedPayload(id))
			return nil
		}
		return err
	}

	d.SendToUser(viewerID, addedEvent, record)
	return nil
}

func overrideID[T any](db *gorm.DB, filter map[string]interface{}) (string, error) {
	var ids []string
	if err := db.Model(new(T)).Where(filter).Limit(1).Pluck("id", &ids).Error; err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNotFound
	}
	return ids[0], nil
}

// removeOverride deletes an override by id after verifying the caller is
// its author, and notifies only that viewer.
func removeOverride[T any](d *Distributor, viewerID, id string, ownerID func(T) string, removedEvent string) error {
	var record T
	if err := d.db.First(&record, "id = ?", id).Error; err != nil {
		return translateNotFound(err)
	}
	if ownerID(record) != viewerID {
		return ErrNoPrivileges
	}
	if err := d.db.Delete(new(T), "id = ?", id).Error; err != nil {
		return err
	}
	d.SendToUser(viewerID, removedEvent, id)
	return nil
}

func positionChangedPayload(p models.ThreeDimensionalPatch) func(string) interface{} {
	return func(id string) interface{} {
		payload := map[string]interface{}{"_id": id}
		if p.X != nil {
			payload["x"] = *p.X
		}
		if p.Y != nil {
			payload["y"] = *p.Y
		}
		if p.Z != nil {
			payload["z"] = *p.Z
		}
		if p.RX != nil {
			payload["rX"] = *p.RX
		}
		if p.RY != nil {
			payload["rY"] = *p.RY
		}
		if p.RZ != nil {
			payload["rZ"] = *p.RZ
		}
		if p.Directivity != nil {
			payload["directivity"] = *p.Directivity
		}
		return payload
	}
}

func volumeChangedPayload(p models.VolumePatch) func(string) interface{} {
	return func(id string) interface{} {
		payload := map[string]interface{}{"_id": id}
		if p.Volume != nil {
			payload["volume"] = *p.Volume
		}
		if p.Muted != nil {
			payload["muted"] = *p.Muted
		}
		return payload
	}
}

// --- Group overrides ---

func (d *Distributor) SetCustomGroupPosition(viewerID, deviceID, groupID string, patch models.ThreeDimensionalPatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "group_id": groupID, "device_id": deviceID}
	seed := func() (models.CustomGroupPosition, error) {
		var group models.Group
		if err := d.db.First(&group, "id = ?", groupID).Error; err != nil {
			return models.CustomGroupPosition{}, translateNotFound(err)
		}
		return models.CustomGroupPosition{
			ID:                         uuid.NewString(),
			UserID:                     viewerID,
			GroupID:                    groupID,
			DeviceID:                   deviceID,
			ThreeDimensionalProperties: patch.Apply(group.ThreeDimensionalProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		positionChangedPayload(patch),
		EventCustomGroupPositionAdded, EventCustomGroupPositionChanged)
}

func (d *Distributor) SetCustomGroupVolume(viewerID, deviceID, groupID string, patch models.VolumePatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "group_id": groupID, "device_id": deviceID}
	seed := func() (models.CustomGroupVolume, error) {
		var group models.Group
		if err := d.db.First(&group, "id = ?", groupID).Error; err != nil {
			return models.CustomGroupVolume{}, translateNotFound(err)
		}
		return models.CustomGroupVolume{
			ID:               uuid.NewString(),
			UserID:           viewerID,
			GroupID:          groupID,
			DeviceID:         deviceID,
			VolumeProperties: patch.Apply(group.VolumeProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		volumeChangedPayload(patch),
		EventCustomGroupVolumeAdded, EventCustomGroupVolumeChanged)
}

func (d *Distributor) RemoveCustomGroupPosition(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomGroupPosition) string { return r.UserID },
		EventCustomGroupPositionRemoved)
}

func (d *Distributor) RemoveCustomGroupVolume(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomGroupVolume) string { return r.UserID },
		EventCustomGroupVolumeRemoved)
}

// --- Stage member overrides ---

func (d *Distributor) SetCustomStageMemberPosition(viewerID, deviceID, stageMemberID string, patch models.ThreeDimensionalPatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "stage_member_id": stageMemberID, "device_id": deviceID}
	seed := func() (models.CustomStageMemberPosition, error) {
		var member models.StageMember
		if err := d.db.First(&member, "id = ?", stageMemberID).Error; err != nil {
			return models.CustomStageMemberPosition{}, translateNotFound(err)
		}
		return models.CustomStageMemberPosition{
			ID:                         uuid.NewString(),
			UserID:                     viewerID,
			StageMemberID:              stageMemberID,
			DeviceID:                   deviceID,
			ThreeDimensionalProperties: patch.Apply(member.ThreeDimensionalProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		positionChangedPayload(patch),
		EventCustomStageMemberPositionAdded, EventCustomStageMemberPositionChanged)
}

func (d *Distributor) SetCustomStageMemberVolume(viewerID, deviceID, stageMemberID string, patch models.VolumePatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "stage_member_id": stageMemberID, "device_id": deviceID}
	seed := func() (models.CustomStageMemberVolume, error) {
		var member models.StageMember
		if err := d.db.First(&member, "id = ?", stageMemberID).Error; err != nil {
			return models.CustomStageMemberVolume{}, translateNotFound(err)
		}
		return models.CustomStageMemberVolume{
			ID:               uuid.NewString(),
			UserID:           viewerID,
			StageMemberID:    stageMemberID,
			DeviceID:         deviceID,
			VolumeProperties: patch.Apply(member.VolumeProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		volumeChangedPayload(patch),
		EventCustomStageMemberVolumeAdded, EventCustomStageMemberVolumeChanged)
}

func (d *Distributor) RemoveCustomStageMemberPosition(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomStageMemberPosition) string { return r.UserID },
		EventCustomStageMemberPositionRemoved)
}

func (d *Distributor) RemoveCustomStageMemberVolume(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomStageMemberVolume) string { return r.UserID },
		EventCustomStageMemberVolumeRemoved)
}

// --- Stage device overrides ---

func (d *Distributor) SetCustomStageDevicePosition(viewerID, deviceID, stageDeviceID string, patch models.ThreeDimensionalPatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "stage_device_id": stageDeviceID, "device_id": deviceID}
	seed := func() (models.CustomStageDevicePosition, error) {
		var sd models.StageDevice
		if err := d.db.First(&sd, "id = ?", stageDeviceID).Error; err != nil {
			return models.CustomStageDevicePosition{}, translateNotFound(err)
		}
		return models.CustomStageDevicePosition{
			ID:                         uuid.NewString(),
			UserID:                     viewerID,
			StageDeviceID:              stageDeviceID,
			DeviceID:                   deviceID,
			ThreeDimensionalProperties: patch.Apply(sd.ThreeDimensionalProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		positionChangedPayload(patch),
		EventCustomStageDevicePositionAdded, EventCustomStageDevicePositionChanged)
}

func (d *Distributor) SetCustomStageDeviceVolume(viewerID, deviceID, stageDeviceID string, patch models.VolumePatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "stage_device_id": stageDeviceID, "device_id": deviceID}
	seed := func() (models.CustomStageDeviceVolume, error) {
		var sd models.StageDevice
		if err := d.db.First(&sd, "id = ?", stageDeviceID).Error; err != nil {
			return models.CustomStageDeviceVolume{}, translateNotFound(err)
		}
		return models.CustomStageDeviceVolume{
			ID:               uuid.NewString(),
			UserID:           viewerID,
			StageDeviceID:    stageDeviceID,
			DeviceID:         deviceID,
			VolumeProperties: patch.Apply(sd.VolumeProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		volumeChangedPayload(patch),
		EventCustomStageDeviceVolumeAdded, EventCustomStageDeviceVolumeChanged)
}

func (d *Distributor) RemoveCustomStageDevicePosition(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomStageDevicePosition) string { return r.UserID },
		EventCustomStageDevicePositionRemoved)
}

func (d *Distributor) RemoveCustomStageDeviceVolume(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomStageDeviceVolume) string { return r.UserID },
		EventCustomStageDeviceVolumeRemoved)
}

// --- Audio track overrides ---

func (d *Distributor) SetCustomAudioTrackPosition(viewerID, deviceID, audioTrackID string, patch models.ThreeDimensionalPatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "audio_track_id": audioTrackID, "device_id": deviceID}
	seed := func() (models.CustomAudioTrackPosition, error) {
		var track models.AudioTrack
		if err := d.db.First(&track, "id = ?", audioTrackID).Error; err != nil {
			return models.CustomAudioTrackPosition{}, translateNotFound(err)
		}
		return models.CustomAudioTrackPosition{
			ID:                         uuid.NewString(),
			UserID:                     viewerID,
			AudioTrackID:               audioTrackID,
			DeviceID:                   deviceID,
			ThreeDimensionalProperties: patch.Apply(track.ThreeDimensionalProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		positionChangedPayload(patch),
		EventCustomAudioTrackPositionAdded, EventCustomAudioTrackPositionChanged)
}

func (d *Distributor) SetCustomAudioTrackVolume(viewerID, deviceID, audioTrackID string, patch models.VolumePatch) error {
	filter := map[string]interface{}{"user_id": viewerID, "audio_track_id": audioTrackID, "device_id": deviceID}
	seed := func() (models.CustomAudioTrackVolume, error) {
		var track models.AudioTrack
		if err := d.db.First(&track, "id = ?", audioTrackID).Error; err != nil {
			return models.CustomAudioTrackVolume{}, translateNotFound(err)
		}
		return models.CustomAudioTrackVolume{
			ID:               uuid.NewString(),
			UserID:           viewerID,
			AudioTrackID:     audioTrackID,
			DeviceID:         deviceID,
			VolumeProperties: patch.Apply(track.VolumeProperties),
		}, nil
	}
	return upsertOverride(d, viewerID, filter, patch.Columns(), seed,
		volumeChangedPayload(patch),
		EventCustomAudioTrackVolumeAdded, EventCustomAudioTrackVolumeChanged)
}

func (d *Distributor) RemoveCustomAudioTrackPosition(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomAudioTrackPosition) string { return r.UserID },
		EventCustomAudioTrackPositionRemoved)
}

func (d *Distributor) RemoveCustomAudioTrackVolume(viewerID, id string) error {
	return removeOverride(d, viewerID, id,
		func(r models.CustomAudioTrackVolume) string { return r.UserID },
		EventCustomAudioTrackVolumeRemoved)
}
