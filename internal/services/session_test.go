package services

import (
	"testing"

	"github.com/stagecast/distributor/internal/models"
)

func TestJoinStageCreatesMemberAndStageDevices(t *testing.T) {
	d, hub := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, _ := seedUser(t, d, "musician", true)
	stage, group := seedStage(t, d, admin.ID, "rehearsal")
	hub.reset()

	pkg, err := d.JoinStage(user.ID, stage.ID, group.ID, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if pkg.Stage.ID != stage.ID || pkg.GroupID != group.ID {
		t.Fatalf("wrong package stage/group: %s/%s", pkg.Stage.ID, pkg.GroupID)
	}

	joined, err := d.GetUser(user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !joined.InsideStage() || *joined.StageID != stage.ID {
		t.Fatalf("user pointers not set: %+v", joined)
	}

	if n := count[models.StageMember](t, d, "user_id = ? AND stage_id = ?", user.ID, stage.ID); n != 1 {
		t.Fatalf("expected 1 member, got %d", n)
	}
	// One StageDevice per device of the user.
	if n := count[models.StageDevice](t, d, "user_id = ? AND stage_id = ?", user.ID, stage.ID); n != 1 {
		t.Fatalf("expected 1 stage device, got %d", n)
	}
	if hub.countFor(user.ID, EventStageJoined) != 1 {
		t.Fatalf("expected stage-joined event for user")
	}
}

func TestJoinStageWrongPassword(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, _ := seedUser(t, d, "guest", true)

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:      "locked",
		Password:  "s3cret",
		AudioType: "mediasoup",
		VideoType: "mediasoup",
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}
	if _, err := d.CreateGroup(admin.ID, stage.ID, &CreateGroupRequest{Name: "band"}); err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, err := d.JoinStage(user.ID, stage.ID, "", "wrong"); err != ErrInvalidPassword {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := d.JoinStage(user.ID, stage.ID, "", "s3cret"); err != nil {
		t.Fatalf("join with correct password: %v", err)
	}
}

func TestJoinStageDefaultGroup(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, _ := seedUser(t, d, "guest", true)
	stage, group := seedStage(t, d, admin.ID, "rehearsal")

	// No group given: the stage's first group is assigned.
	pkg, err := d.JoinStage(user.ID, stage.ID, "", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if pkg.GroupID != group.ID {
		t.Fatalf("expected default group %s, got %s", group.ID, pkg.GroupID)
	}
}

func TestJoinStageWithoutGroups(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, _ := seedUser(t, d, "guest", true)

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:      "empty",
		AudioType: "mediasoup",
		VideoType: "mediasoup",
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}

	if _, err := d.JoinStage(user.ID, stage.ID, "", ""); err != ErrNoGroupAvailable {
		t.Fatalf("expected ErrNoGroupAvailable, got %v", err)
	}
}

func TestLeaveStageKeepsMemberRecord(t *testing.T) {
	d, hub := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, _ := seedUser(t, d, "musician", true)
	stage, group := seedStage(t, d, admin.ID, "rehearsal")

	if _, err := d.JoinStage(user.ID, stage.ID, group.ID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	hub.reset()

	if err := d.LeaveStage(user.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	left, err := d.GetUser(user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if left.InsideStage() {
		t.Fatalf("user pointers not cleared: %+v", left)
	}

	var member models.StageMember
	if err := d.DB().First(&member, "user_id = ? AND stage_id = ?", user.ID, stage.ID).Error; err != nil {
		t.Fatalf("member record must survive leave: %v", err)
	}
	if member.Active {
		t.Fatalf("member must be inactive after leave")
	}
	var stageDevices []models.StageDevice
	if err := d.DB().Find(&stageDevices, "stage_member_id = ?", member.ID).Error; err != nil {
		t.Fatalf("load stage devices: %v", err)
	}
	if len(stageDevices) == 0 {
		t.Fatalf("stage devices must keep their slots after leave")
	}
	for _, sd := range stageDevices {
		if sd.Active {
			t.Fatalf("stage device %s still active after leave", sd.ID)
		}
	}
	if hub.countFor(user.ID, EventStageLeft) != 1 {
		t.Fatalf("expected stage-left event for user")
	}

	if err := d.LeaveStage(user.ID); err != ErrNotInsideStage {
		t.Fatalf("expected ErrNotInsideStage on second leave, got %v", err)
	}
}

func TestLeaveStageForGoodPurgesMember(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, userDevice := seedUser(t, d, "musician", true)
	stage, group := seedStage(t, d, admin.ID, "rehearsal")

	if _, err := d.JoinStage(user.ID, stage.ID, group.ID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	var sd models.StageDevice
	if err := d.DB().First(&sd, "user_id = ? AND device_id = ?", user.ID, userDevice.ID).Error; err != nil {
		t.Fatalf("load stage device: %v", err)
	}
	if _, err := d.CreateAudioTrack(user.ID, userDevice.ID, &CreateAudioTrackRequest{
		StageDeviceID: sd.ID,
	}); err != nil {
		t.Fatalf("create track: %v", err)
	}

	if err := d.LeaveStageForGood(user.ID, stage.ID); err != nil {
		t.Fatalf("leave for good: %v", err)
	}

	if n := count[models.StageMember](t, d, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("member record not purged, %d left", n)
	}
	if n := count[models.StageDevice](t, d, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("stage devices not purged, %d left", n)
	}
	if n := count[models.AudioTrack](t, d, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("tracks not purged, %d left", n)
	}
}

func TestJoinSwitchesStages(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	user, _ := seedUser(t, d, "musician", true)
	stageA, groupA := seedStage(t, d, admin.ID, "alpha")
	stageB, groupB := seedStage(t, d, admin.ID, "beta")

	if _, err := d.JoinStage(user.ID, stageA.ID, groupA.ID, ""); err != nil {
		t.Fatalf("join alpha: %v", err)
	}
	if _, err := d.JoinStage(user.ID, stageB.ID, groupB.ID, ""); err != nil {
		t.Fatalf("join beta: %v", err)
	}

	moved, err := d.GetUser(user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if *moved.StageID != stageB.ID {
		t.Fatalf("user should be in beta, is in %s", *moved.StageID)
	}
	// The alpha membership survives as an inactive record.
	var alphaMember models.StageMember
	if err := d.DB().First(&alphaMember, "user_id = ? AND stage_id = ?", user.ID, stageA.ID).Error; err != nil {
		t.Fatalf("alpha member should survive: %v", err)
	}
	if alphaMember.Active {
		t.Fatalf("alpha member should be inactive after switching")
	}
}
