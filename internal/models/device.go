package models

import "time"

// Device is one client instance of a User (a browser tab, a native app, an
// OV box). ApiServer records which server instance registered the device so
// stale records can be purged after a crash of that instance.
type Device struct {
	ID        string  `gorm:"primaryKey;size:36" json:"_id"`
	UserID    string  `gorm:"size:36;index;not null" json:"userId"`
	Type      string  `gorm:"size:50" json:"type"` // browser, native, ov
	ApiServer string  `gorm:"size:100;index" json:"apiServer"`
	Online    bool    `gorm:"default:false" json:"online"`
	UUID      *string `gorm:"column:uuid;size:100" json:"uuid"`

	CanAudio     bool `gorm:"default:false" json:"canAudio"`
	CanVideo     bool `gorm:"default:false" json:"canVideo"`
	SendAudio    bool `gorm:"default:false" json:"sendAudio"`
	SendVideo    bool `gorm:"default:false" json:"sendVideo"`
	ReceiveAudio bool `gorm:"default:false" json:"receiveAudio"`
	ReceiveVideo bool `gorm:"default:false" json:"receiveVideo"`

	SoundCardID *string `gorm:"size:36" json:"soundCardId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Device) TableName() string { return "devices" }

// SoundCard is the audio hardware configuration of one Device, identified by
// the (userId, deviceId, uuid) triple.
type SoundCard struct {
	ID       string `gorm:"primaryKey;size:36" json:"_id"`
	UserID   string `gorm:"size:36;index;uniqueIndex:idx_sound_card_triple,priority:1;not null" json:"userId"`
	DeviceID string `gorm:"size:36;index;uniqueIndex:idx_sound_card_triple,priority:2;not null" json:"deviceId"`
	UUID     string `gorm:"column:uuid;size:100;uniqueIndex:idx_sound_card_triple,priority:3;not null" json:"uuid"`

	Label             string   `gorm:"size:200" json:"label"`
	IsDefault         bool     `gorm:"default:false" json:"isDefault"`
	DriverType        string   `gorm:"size:20" json:"driverType"` // jack, alsa, asio, webrtc
	SampleRate        int      `gorm:"default:48000" json:"sampleRate"`
	SampleRates       string   `gorm:"size:500" json:"sampleRates"` // JSON array of supported rates
	PeriodSize        int      `gorm:"default:96" json:"periodSize"`
	NumPeriods        int      `gorm:"default:2" json:"numPeriods"`
	SoftwareLatency   *float64 `json:"softwareLatency"`
	NumInputChannels  int      `gorm:"default:0" json:"numInputChannels"`
	NumOutputChannels int      `gorm:"default:0" json:"numOutputChannels"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (SoundCard) TableName() string { return "sound_cards" }
