package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
	"gorm.io/gorm"
)

// SoundCardRequest describes the audio hardware of one device. The
// (user, device, uuid) triple identifies the card across reconnects.
type SoundCardRequest struct {
	UUID              string   `json:"uuid" binding:"required"`
	Label             string   `json:"label"`
	IsDefault         *bool    `json:"isDefault"`
	DriverType        string   `json:"driverType"`
	SampleRate        *int     `json:"sampleRate"`
	SampleRates       string   `json:"sampleRates"`
	PeriodSize        *int     `json:"periodSize"`
	NumPeriods        *int     `json:"numPeriods"`
	SoftwareLatency   *float64 `json:"softwareLatency"`
	NumInputChannels  *int     `json:"numInputChannels"`
	NumOutputChannels *int     `json:"numOutputChannels"`
}

// UpsertSoundCard updates the card matching the triple or inserts one,
// using the same conditional-update-then-insert shape as the override
// engine so concurrent registrations cannot duplicate.
func (d *Distributor) UpsertSoundCard(userID, deviceID string, req *SoundCardRequest) (*models.SoundCard, error) {
	cols := map[string]interface{}{}
	if req.Label != "" {
		cols["label"] = req.Label
	}
	if req.IsDefault != nil {
		cols["is_default"] = *req.IsDefault
	}
	if req.DriverType != "" {
		cols["driver_type"] = req.DriverType
	}
	if req.SampleRate != nil {
		cols["sample_rate"] = *req.SampleRate
	}
	if req.SampleRates != "" {
		cols["sample_rates"] = req.SampleRates
	}
	if req.PeriodSize != nil {
		cols["period_size"] = *req.PeriodSize
	}
	if req.NumPeriods != nil {
		cols["num_periods"] = *req.NumPeriods
	}
	if req.SoftwareLatency != nil {
		cols["software_latency"] = *req.SoftwareLatency
	}
	if req.NumInputChannels != nil {
		cols["num_input_channels"] = *req.NumInputChannels
	}
	if req.NumOutputChannels != nil {
		cols["num_output_channels"] = *req.NumOutputChannels
	}

	triple := map[string]interface{}{
		"user_id":   userID,
		"device_id": deviceID,
		"uuid":      req.UUID,
	}

	if len(cols) > 0 {
		res := d.db.Model(&models.SoundCard{}).Where(triple).Updates(cols)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			var card models.SoundCard
			if err := d.db.Where(triple).First(&card).Error; err != nil {
				return nil, err
			}
			d.SendToUser(userID, EventSoundCardChanged, card)
			return &card, nil
		}
	}

	card := models.SoundCard{
		ID:          uuid.NewString(),
		UserID:      userID,
		DeviceID:    deviceID,
		UUID:        req.UUID,
		Label:       req.Label,
		DriverType:  req.DriverType,
		SampleRate:  48000,
		PeriodSize:  96,
		NumPeriods:  2,
		SampleRates: req.SampleRates,
	}
	if req.IsDefault != nil {
		card.IsDefault = *req.IsDefault
	}
	if req.SampleRate != nil {
		card.SampleRate = *req.SampleRate
	}
	if req.PeriodSize != nil {
		card.PeriodSize = *req.PeriodSize
	}
	if req.NumPeriods != nil {
		card.NumPeriods = *req.NumPeriods
	}
	if req.SoftwareLatency != nil {
		card.SoftwareLatency = req.SoftwareLatency
	}
	if req.NumInputChannels != nil {
		card.NumInputChannels = *req.NumInputChannels
	}
	if req.NumOutputChannels != nil {
		card.NumOutputChannels = *req.NumOutputChannels
	}

	if err := d.db.Create(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race: retry as an update.
			if len(cols) > 0 {
				if err := d.db.Model(&models.SoundCard{}).Where(triple).Updates(cols).Error; err != nil {
					return nil, err
				}
			}
			var existing models.SoundCard
			if err := d.db.Where(triple).First(&existing).Error; err != nil {
				return nil, err
			}
			d.SendToUser(userID, EventSoundCardChanged, existing)
			return &existing, nil
		}
		return nil, err
	}

	d.SendToUser(userID, EventSoundCardAdded, card)
	return &card, nil
}

// DeleteSoundCard removes a card owned by the caller and clears any device
// reference to it.
func (d *Distributor) DeleteSoundCard(userID, soundCardID string) error {
	var card models.SoundCard
	if err := d.db.First(&card, "id = ?", soundCardID).Error; err != nil {
		return translateNotFound(err)
	}
	if card.UserID != userID {
		return ErrNoPrivileges
	}

	if err := d.db.Model(&models.Device{}).
		Where("sound_card_id = ?", soundCardID).
		Update("sound_card_id", nil).Error; err != nil {
		return err
	}
	if err := d.db.Delete(&models.SoundCard{}, "id = ?", soundCardID).Error; err != nil {
		return err
	}
	d.SendToUser(userID, EventSoundCardRemoved, soundCardID)
	return nil
}
