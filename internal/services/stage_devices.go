package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
	"gorm.io/gorm"
)

// allocateOrderSlot finds the lowest free order slot in [0, 30) for the
// stage. Freed slots are reused.
func (d *Distributor) allocateOrderSlot(stageID string) (int, error) {
	var used []int
	if err := d.db.Model(&models.StageDevice{}).
		Where("stage_id = ?", stageID).
		Order("order_slot").
		Pluck("order_slot", &used).Error; err != nil {
		return 0, err
	}

	taken := map[int]struct{}{}
	for _, slot := range used {
		taken[slot] = struct{}{}
	}
	for slot := 0; slot < models.MaxStageDeviceOrder; slot++ {
		if _, ok := taken[slot]; !ok {
			return slot, nil
		}
	}
	return 0, ErrSlotsExhausted
}

// createStageDevice materializes the presence of one device inside a stage
// for a member. The unique (stage, slot) index backstops concurrent
// allocations; a losing insert retries with a fresh slot.
func (d *Distributor) createStageDevice(member *models.StageMember, device *models.Device) (*models.StageDevice, error) {
	for {
		slot, err := d.allocateOrderSlot(member.StageID)
		if err != nil {
			return nil, err
		}

		sd := models.StageDevice{
			ID:                         uuid.NewString(),
			StageID:                    member.StageID,
			GroupID:                    member.GroupID,
			StageMemberID:              member.ID,
			UserID:                     member.UserID,
			DeviceID:                   device.ID,
			Order:                      slot,
			Active:                     member.Active && device.Online,
			Type:                       device.Type,
			SendLocal:                  true,
			ThreeDimensionalProperties: member.ThreeDimensionalProperties,
			VolumeProperties:           member.VolumeProperties,
		}
		if err := d.db.Create(&sd).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, err
		}

		d.notifyJoinedStage(member.StageID, EventStageDeviceAdded, sd)
		return &sd, nil
	}
}

// UpdateStageDeviceRequest patches a stage device.
type UpdateStageDeviceRequest struct {
	SendLocal *bool                        `json:"sendLocal"`
	Position  models.ThreeDimensionalPatch `json:"position"`
	Volume    models.VolumePatch           `json:"volume"`
}

// UpdateStageDevice may be called by the owning user, a stage admin, or a
// sound editor (spatial and volume fields only).
func (d *Distributor) UpdateStageDevice(userID, stageDeviceID string, req *UpdateStageDeviceRequest) error {
	var sd models.StageDevice
	if err := d.db.First(&sd, "id = ?", stageDeviceID).Error; err != nil {
		return translateNotFound(err)
	}

	if sd.UserID != userID {
		admin, err := d.isStageAdmin(sd.StageID, userID)
		if err != nil {
			return err
		}
		if !admin {
			editor, err := d.isSoundEditor(sd.StageID, userID)
			if err != nil {
				return err
			}
			if !editor || req.SendLocal != nil {
				return ErrNoPrivileges
			}
		}
	}

	cols := map[string]interface{}{}
	payload := map[string]interface{}{"_id": stageDeviceID}
	if req.SendLocal != nil {
		cols["send_local"] = *req.SendLocal
		payload["sendLocal"] = *req.SendLocal
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

	d.notifyJoinedStage(sd.StageID, EventStageDeviceChanged, payload)

	return d.db.Model(&models.StageDevice{}).Where("id = ?", stageDeviceID).Updates(cols).Error
}

// deleteStageDeviceCascade removes a stage device with its published
// tracks and the overrides targeting it. The order slot becomes free for
// the next device joining the stage.
func (d *Distributor) deleteStageDeviceCascade(sd *models.StageDevice) error {
	err := runBranches(
		func() error {
			return d.removeTracksOfStageDevice(sd.ID, sd.StageID)
		},
		func() error {
			return d.db.Delete(&models.CustomStageDevicePosition{}, "stage_device_id = ?", sd.ID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomStageDeviceVolume{}, "stage_device_id = ?", sd.ID).Error
		},
	)
	if err != nil {
		return cascadeError("delete stage device", sd.ID, err)
	}

	if err := d.db.Delete(&models.StageDevice{}, "id = ?", sd.ID).Error; err != nil {
		return err
	}
	d.notifyJoinedStage(sd.StageID, EventStageDeviceRemoved, sd.ID)
	return nil
}
