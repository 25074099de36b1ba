package services

import (
	"testing"

	"github.com/stagecast/distributor/internal/models"
)

func TestDeleteUserPurgesRoleRows(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	editor, _ := seedUser(t, d, "editor", true)

	if _, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:         "mixdown",
		AudioType:    "mediasoup",
		VideoType:    "mediasoup",
		Admins:       []string{editor.ID},
		SoundEditors: []string{editor.ID},
	}); err != nil {
		t.Fatalf("create stage: %v", err)
	}

	if err := d.DeleteUser(editor.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if n := count[models.StageAdmin](t, d, "user_id = ?", editor.ID); n != 0 {
		t.Fatalf("expected admin rows purged, %d left", n)
	}
	if n := count[models.StageSoundEditor](t, d, "user_id = ?", editor.ID); n != 0 {
		t.Fatalf("expected sound editor rows purged, %d left", n)
	}
	if n := count[models.Device](t, d, "user_id = ?", editor.ID); n != 0 {
		t.Fatalf("expected devices purged, %d left", n)
	}
}
