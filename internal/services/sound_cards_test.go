package services

import (
	"testing"

	"github.com/stagecast/distributor/internal/models"
)

func TestUpsertSoundCardByTriple(t *testing.T) {
	d, _ := newTestDistributor(t)
	user, device := seedUser(t, d, "engineer", true)

	first, err := d.UpsertSoundCard(user.ID, device.ID, &SoundCardRequest{
		UUID:  "hw:0",
		Label: "Internal",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.SampleRate != 48000 || first.PeriodSize != 96 || first.NumPeriods != 2 {
		t.Fatalf("driver defaults not applied: %+v", first)
	}

	second, err := d.UpsertSoundCard(user.ID, device.ID, &SoundCardRequest{
		UUID:  "hw:0",
		Label: "Internal (renamed)",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same triple must update in place: %s vs %s", first.ID, second.ID)
	}
	if n := count[models.SoundCard](t, d, ""); n != 1 {
		t.Fatalf("expected 1 sound card, got %d", n)
	}
	if second.Label != "Internal (renamed)" {
		t.Fatalf("label not updated: %s", second.Label)
	}

	// A different uuid on the same device is a second card.
	if _, err := d.UpsertSoundCard(user.ID, device.ID, &SoundCardRequest{UUID: "hw:1"}); err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if n := count[models.SoundCard](t, d, ""); n != 2 {
		t.Fatalf("expected 2 sound cards, got %d", n)
	}
}

func TestDeleteSoundCardDetachesDevices(t *testing.T) {
	d, _ := newTestDistributor(t)
	user, device := seedUser(t, d, "engineer", true)

	card, err := d.UpsertSoundCard(user.ID, device.ID, &SoundCardRequest{UUID: "hw:0"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := d.UpdateDevice(user.ID, device.ID, &UpdateDeviceRequest{SoundCardID: &card.ID}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := d.DeleteSoundCard(user.ID, card.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var loaded models.Device
	if err := d.DB().First(&loaded, "id = ?", device.ID).Error; err != nil {
		t.Fatalf("reload device: %v", err)
	}
	if loaded.SoundCardID != nil {
		t.Fatalf("device must be detached from the deleted card")
	}
}
