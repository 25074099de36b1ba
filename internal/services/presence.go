package services

import (
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/pkg/logger"
)

// RenewPresence re-derives a user's presence from their device online
// flags: the user is present in their assigned stage iff at least one
// device is online. When presence flips, the StageMember record and all of
// its StageDevices are synchronized; a StageDevice turning inactive loses
// its published tracks (a disconnected device cannot keep publishing) but
// keeps its record and order slot.
func (d *Distributor) RenewPresence(userID string) error {
	var user models.User
	if err := d.db.First(&user, "id = ?", userID).Error; err != nil {
		return translateNotFound(err)
	}
	if !user.InsideStage() {
		return nil
	}

	var onlineCount int64
	if err := d.db.Model(&models.Device{}).
		Where("user_id = ? AND online = ?", userID, true).
		Count(&onlineCount).Error; err != nil {
		return err
	}
	present := onlineCount > 0

	var member models.StageMember
	if err := d.db.First(&member, "id = ?", *user.StageMemberID).Error; err != nil {
		// The pointer invariant is violated; treat as NotFound, not a crash.
		return translateNotFound(err)
	}

	if member.Active == present {
		return nil
	}

	if err := d.db.Model(&models.StageMember{}).
		Where("id = ?", member.ID).
		Update("active", present).Error; err != nil {
		return err
	}
	d.notifyJoinedStage(member.StageID, EventStageMemberChanged, map[string]interface{}{
		"_id":    member.ID,
		"active": present,
	})

	var stageDevices []models.StageDevice
	if err := d.db.Find(&stageDevices, "stage_member_id = ?", member.ID).Error; err != nil {
		return err
	}
	for _, sd := range stageDevices {
		if sd.Active == present {
			continue
		}
		if err := d.db.Model(&models.StageDevice{}).
			Where("id = ?", sd.ID).
			Update("active", present).Error; err != nil {
			return err
		}
		d.notifyJoinedStage(sd.StageID, EventStageDeviceChanged, map[string]interface{}{
			"_id":    sd.ID,
			"active": present,
		})
		if !present {
			if err := d.removeTracksOfStageDevice(sd.ID, sd.StageID); err != nil {
				logger.Error().Err(err).
					Str("stageDevice", sd.ID).
					Msg("failed to remove tracks of inactive stage device")
			}
		}
	}

	return nil
}

// renewPresenceAsync recomputes presence fire-and-forget relative to the
// triggering request; the caller only waits for the store mutation that
// triggered it.
func (d *Distributor) renewPresenceAsync(userID string) {
	if d.queue != nil {
		if err := d.queue.Enqueue(&Task{Type: TaskTypeRenewPresence, UserID: userID}); err == nil {
			return
		}
	}
	go func() {
		if err := d.RenewPresence(userID); err != nil {
			logger.Error().Err(err).Str("user", userID).Msg("presence renewal failed")
		}
	}()
}
