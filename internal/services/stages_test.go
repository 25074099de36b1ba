package services

import (
	"testing"

	"github.com/stagecast/distributor/internal/models"
)

func TestCreateStageRequiresPrivilege(t *testing.T) {
	d, _ := newTestDistributor(t)
	user, err := d.GetOrCreateUserByUid("plain", "plain", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err = d.CreateStage(user.ID, &CreateStageRequest{
		Name:      "nope",
		AudioType: "mediasoup",
		VideoType: "mediasoup",
	})
	if err != ErrNoPrivileges {
		t.Fatalf("expected ErrNoPrivileges, got %v", err)
	}
}

func TestCreateStageDefaults(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:      "defaults",
		AudioType: "mediasoup",
		VideoType: "mediasoup",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if stage.Width != models.DefaultStageWidth ||
		stage.Length != models.DefaultStageLength ||
		stage.Height != models.DefaultStageHeight {
		t.Fatalf("wrong room defaults: %vx%vx%v", stage.Width, stage.Length, stage.Height)
	}
	if stage.Reflection != models.DefaultStageReflection || stage.Absorption != models.DefaultStageAbsorption {
		t.Fatalf("wrong acoustic defaults: %v/%v", stage.Reflection, stage.Absorption)
	}
	// The creator is always an admin.
	if n := count[models.StageAdmin](t, d, "stage_id = ? AND user_id = ?", stage.ID, admin.ID); n != 1 {
		t.Fatalf("creator must be admin")
	}
}

func TestUpdateStageAdminOnly(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	other, _ := seedUser(t, d, "other", true)
	stage, _ := seedStage(t, d, admin.ID, "rehearsal")

	if err := d.UpdateStage(other.ID, stage.ID, &UpdateStageRequest{
		Name: strp("hijacked"),
	}); err != ErrNoPrivileges {
		t.Fatalf("expected ErrNoPrivileges, got %v", err)
	}

	if err := d.UpdateStage(admin.ID, stage.ID, &UpdateStageRequest{
		Name: strp("renamed"),
	}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	var loaded models.Stage
	if err := d.DB().First(&loaded, "id = ?", stage.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Name != "renamed" {
		t.Fatalf("rename not applied: %s", loaded.Name)
	}
}

func TestDeleteStageCascadesEverything(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, userDevice := seedUser(t, d, "musician", true)
	stage, group := seedStage(t, d, admin.ID, "doomed")

	if _, err := d.JoinStage(user.ID, stage.ID, group.ID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	var sd models.StageDevice
	if err := d.DB().First(&sd, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load stage device: %v", err)
	}
	track, err := d.CreateAudioTrack(user.ID, userDevice.ID, &CreateAudioTrackRequest{
		StageDeviceID: sd.ID,
	})
	if err != nil {
		t.Fatalf("create track: %v", err)
	}
	if err := d.SetCustomGroupVolume(user.ID, userDevice.ID, group.ID,
		models.VolumePatch{Volume: f64(0.5)}); err != nil {
		t.Fatalf("set group override: %v", err)
	}
	if err := d.SetCustomAudioTrackVolume(user.ID, userDevice.ID, track.ID,
		models.VolumePatch{Muted: boolp(true)}); err != nil {
		t.Fatalf("set track override: %v", err)
	}

	if err := d.DeleteStage(user.ID, stage.ID); err != ErrNoPrivileges {
		t.Fatalf("non-admin delete should fail, got %v", err)
	}
	if err := d.DeleteStage(admin.ID, stage.ID); err != nil {
		t.Fatalf("delete stage: %v", err)
	}

	if n := count[models.Stage](t, d, ""); n != 0 {
		t.Fatalf("stage row left")
	}
	if n := count[models.Group](t, d, ""); n != 0 {
		t.Fatalf("group rows left")
	}
	if n := count[models.StageMember](t, d, ""); n != 0 {
		t.Fatalf("member rows left")
	}
	if n := count[models.StageDevice](t, d, ""); n != 0 {
		t.Fatalf("stage device rows left")
	}
	if n := count[models.AudioTrack](t, d, ""); n != 0 {
		t.Fatalf("track rows left")
	}
	if n := count[models.StageAdmin](t, d, ""); n != 0 {
		t.Fatalf("admin rows left")
	}
	if n := count[models.CustomGroupVolume](t, d, ""); n != 0 {
		t.Fatalf("group override rows left")
	}
	if n := count[models.CustomAudioTrackVolume](t, d, ""); n != 0 {
		t.Fatalf("track override rows left")
	}

	// The joined user's pointers are cleared along with the membership.
	left, err := d.GetUser(user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if left.InsideStage() {
		t.Fatalf("user pointers must be cleared by the cascade")
	}
}

func TestUpdateUserIgnoresUnknownFields(t *testing.T) {
	d, _ := newTestDistributor(t)
	user, _ := seedUser(t, d, "sneaky", true)

	// canCreateStage is write-protected: the request type has no field
	// for it, so a patch can never change it.
	if err := d.UpdateUser(user.ID, &UpdateUserRequest{Name: strp("renamed")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	reloaded, err := d.GetUser(user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Name != "renamed" {
		t.Fatalf("rename not applied")
	}
	if !reloaded.CanCreateStage {
		t.Fatalf("canCreateStage must be untouched by profile updates")
	}
}
