package services

import (
	"sync"
	"testing"

	"github.com/stagecast/distributor/internal/models"
)

func TestSetCustomGroupPositionUpsert(t *testing.T) {
	d, hub := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	viewer, viewerDevice := seedUser(t, d, "viewer", true)
	_, group := seedStage(t, d, admin.ID, "rehearsal")
	hub.reset()

	if err := d.SetCustomGroupPosition(viewer.ID, viewerDevice.ID, group.ID,
		models.ThreeDimensionalPatch{X: f64(5)}); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if n := count[models.CustomGroupPosition](t, d, ""); n != 1 {
		t.Fatalf("expected 1 override row, got %d", n)
	}
	if got := hub.countFor(viewer.ID, EventCustomGroupPositionAdded); got != 1 {
		t.Fatalf("expected 1 added event for viewer, got %d", got)
	}

	// Same triple again: must update in place, not insert.
	if err := d.SetCustomGroupPosition(viewer.ID, viewerDevice.ID, group.ID,
		models.ThreeDimensionalPatch{Y: f64(2)}); err != nil {
		t.Fatalf("second set: %v", err)
	}
	if n := count[models.CustomGroupPosition](t, d, ""); n != 1 {
		t.Fatalf("expected 1 override row after second set, got %d", n)
	}

	var row models.CustomGroupPosition
	if err := d.DB().First(&row).Error; err != nil {
		t.Fatalf("load override: %v", err)
	}
	if row.X != 5 || row.Y != 2 {
		t.Fatalf("patch not merged: x=%v y=%v", row.X, row.Y)
	}
	if got := hub.countFor(viewer.ID, EventCustomGroupPositionChanged); got != 1 {
		t.Fatalf("expected 1 changed event for viewer, got %d", got)
	}
	// The override is private: the admin hears nothing about it.
	if got := len(hub.eventsFor(admin.ID)); got != 0 {
		t.Fatalf("expected no override events for admin, got %d", got)
	}
}

func TestSetCustomGroupPositionSeedsFromGroup(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	viewer, viewerDevice := seedUser(t, d, "viewer", true)
	stage, group := seedStage(t, d, admin.ID, "rehearsal")

	if err := d.UpdateGroup(admin.ID, group.ID, &UpdateGroupRequest{
		Position: models.ThreeDimensionalPatch{X: f64(3), Z: f64(7)},
	}); err != nil {
		t.Fatalf("move group: %v", err)
	}
	_ = stage

	if err := d.SetCustomGroupPosition(viewer.ID, viewerDevice.ID, group.ID,
		models.ThreeDimensionalPatch{Y: f64(1)}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var row models.CustomGroupPosition
	if err := d.DB().First(&row).Error; err != nil {
		t.Fatalf("load override: %v", err)
	}
	// Unpatched attributes inherit the group's current values.
	if row.X != 3 || row.Y != 1 || row.Z != 7 {
		t.Fatalf("seed merge wrong: x=%v y=%v z=%v", row.X, row.Y, row.Z)
	}
}

func TestConcurrentOverrideSetsConverge(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	viewer, viewerDevice := seedUser(t, d, "viewer", true)
	_, group := seedStage(t, d, admin.ID, "rehearsal")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := float64(i)
			errs[i] = d.SetCustomGroupVolume(viewer.ID, viewerDevice.ID, group.ID,
				models.VolumePatch{Volume: &v})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	if n := count[models.CustomGroupVolume](t, d, ""); n != 1 {
		t.Fatalf("concurrent sets must converge to 1 row, got %d", n)
	}
}

func TestRemoveCustomOverrideOwnership(t *testing.T) {
	d, hub := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)
	viewer, viewerDevice := seedUser(t, d, "viewer", true)
	other, _ := seedUser(t, d, "other", true)
	_, group := seedStage(t, d, admin.ID, "rehearsal")

	if err := d.SetCustomGroupPosition(viewer.ID, viewerDevice.ID, group.ID,
		models.ThreeDimensionalPatch{X: f64(1)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var row models.CustomGroupPosition
	if err := d.DB().First(&row).Error; err != nil {
		t.Fatalf("load override: %v", err)
	}
	hub.reset()

	if err := d.RemoveCustomGroupPosition(other.ID, row.ID); err != ErrNoPrivileges {
		t.Fatalf("expected ErrNoPrivileges for non-owner, got %v", err)
	}
	if err := d.RemoveCustomGroupPosition(viewer.ID, row.ID); err != nil {
		t.Fatalf("owner remove: %v", err)
	}
	if n := count[models.CustomGroupPosition](t, d, ""); n != 0 {
		t.Fatalf("override not removed, %d rows left", n)
	}
	if got := hub.countFor(viewer.ID, EventCustomGroupPositionRemoved); got != 1 {
		t.Fatalf("expected 1 removed event for viewer, got %d", got)
	}
}

func TestRemoveMissingOverride(t *testing.T) {
	d, _ := newTestDistributor(t)
	viewer, _ := seedUser(t, d, "viewer", true)

	if err := d.RemoveCustomGroupPosition(viewer.ID, "no-such-id"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
