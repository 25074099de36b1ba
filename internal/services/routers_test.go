package services

import (
	"testing"

	"github.com/stagecast/distributor/internal/models"
)

func seedRouter(t *testing.T, d *Distributor, url string, lat, lng *float64, services map[string]int) *models.Router {
	t.Helper()
	router, err := d.CreateRouter(&CreateRouterRequest{
		Url:      url,
		Lat:      lat,
		Lng:      lng,
		Services: services,
	})
	if err != nil {
		t.Fatalf("create router %s: %v", url, err)
	}
	return router
}

func capacityOf(t *testing.T, d *Distributor, routerID, kind string) int {
	t.Helper()
	var svc models.RouterService
	if err := d.DB().First(&svc, "router_id = ? AND kind = ?", routerID, kind).Error; err != nil {
		t.Fatalf("load capacity: %v", err)
	}
	return svc.Capacity
}

func TestCreateRouterDeduplicatesByURL(t *testing.T) {
	d, _ := newTestDistributor(t)

	first := seedRouter(t, d, "wss://r1.example.com", nil, nil, map[string]int{"mediasoup": 10})
	second := seedRouter(t, d, "wss://r1.example.com", f64(50), f64(8), map[string]int{"mediasoup": 20})

	if first.ID != second.ID {
		t.Fatalf("same URL must map to one router: %s vs %s", first.ID, second.ID)
	}
	if n := count[models.Router](t, d, ""); n != 1 {
		t.Fatalf("expected 1 router, got %d", n)
	}
	if got := capacityOf(t, d, first.ID, "mediasoup"); got != 20 {
		t.Fatalf("re-registration must update capacity, got %d", got)
	}
}

func TestNearestRouterByHaversine(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)

	near := seedRouter(t, d, "wss://near.example.com", f64(0), f64(0), map[string]int{"mediasoup": 5})
	far := seedRouter(t, d, "wss://far.example.com", f64(10), f64(10), map[string]int{"mediasoup": 5})

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:         "close-by",
		AudioType:    "mediasoup",
		VideoType:    "mediasoup",
		PreferredLat: f64(1),
		PreferredLng: f64(1),
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}

	var assigned models.Stage
	if err := d.DB().First(&assigned, "id = ?", stage.ID).Error; err != nil {
		t.Fatalf("reload stage: %v", err)
	}
	if assigned.AudioRouterID == nil || *assigned.AudioRouterID != near.ID {
		t.Fatalf("expected nearest router %s, got %v", near.ID, assigned.AudioRouterID)
	}
	// Same kind for audio and video: one router serves both, one unit claimed.
	if assigned.VideoRouterID == nil || *assigned.VideoRouterID != near.ID {
		t.Fatalf("video should share the router, got %v", assigned.VideoRouterID)
	}
	if got := capacityOf(t, d, near.ID, "mediasoup"); got != 4 {
		t.Fatalf("expected capacity 4 after claim, got %d", got)
	}
	if got := capacityOf(t, d, far.ID, "mediasoup"); got != 5 {
		t.Fatalf("far router capacity must be untouched, got %d", got)
	}
}

func TestAssignmentSkipsExhaustedRouter(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)

	near := seedRouter(t, d, "wss://near.example.com", f64(0), f64(0), map[string]int{"mediasoup": 0})
	far := seedRouter(t, d, "wss://far.example.com", f64(10), f64(10), map[string]int{"mediasoup": 1})

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:         "overflow",
		AudioType:    "mediasoup",
		VideoType:    "mediasoup",
		PreferredLat: f64(1),
		PreferredLng: f64(1),
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}

	var assigned models.Stage
	if err := d.DB().First(&assigned, "id = ?", stage.ID).Error; err != nil {
		t.Fatalf("reload stage: %v", err)
	}
	if assigned.AudioRouterID == nil || *assigned.AudioRouterID != far.ID {
		t.Fatalf("exhausted nearest router must be skipped, got %v", assigned.AudioRouterID)
	}
	_ = near
}

func TestStageStaysUnservedWithoutRouters(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)

	stage, _ := seedStage(t, d, admin.ID, "unserved")

	var loaded models.Stage
	if err := d.DB().First(&loaded, "id = ?", stage.ID).Error; err != nil {
		t.Fatalf("reload stage: %v", err)
	}
	if loaded.AudioRouterID != nil || loaded.VideoRouterID != nil {
		t.Fatalf("stage must stay unserved with no routers")
	}

	// A router appearing later picks the stage up through the sweep.
	router := seedRouter(t, d, "wss://late.example.com", f64(0), f64(0), map[string]int{"mediasoup": 2})
	if err := d.DB().First(&loaded, "id = ?", stage.ID).Error; err != nil {
		t.Fatalf("reload stage: %v", err)
	}
	if loaded.AudioRouterID == nil || *loaded.AudioRouterID != router.ID {
		t.Fatalf("late router must pick up the unserved stage, got %v", loaded.AudioRouterID)
	}
}

func TestDeleteRouterClearsOnlyMatchingKind(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)

	audioRouter := seedRouter(t, d, "wss://audio.example.com", f64(0), f64(0), map[string]int{"jammer": 5})
	videoRouter := seedRouter(t, d, "wss://video.example.com", f64(0), f64(0), map[string]int{"mediasoup": 5})

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:      "mixed",
		AudioType: "jammer",
		VideoType: "mediasoup",
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}

	var assigned models.Stage
	if err := d.DB().First(&assigned, "id = ?", stage.ID).Error; err != nil {
		t.Fatalf("reload stage: %v", err)
	}
	if assigned.AudioRouterID == nil || *assigned.AudioRouterID != audioRouter.ID {
		t.Fatalf("audio kind not assigned: %v", assigned.AudioRouterID)
	}
	if assigned.VideoRouterID == nil || *assigned.VideoRouterID != videoRouter.ID {
		t.Fatalf("video kind not assigned: %v", assigned.VideoRouterID)
	}

	if err := d.DeleteRouter(audioRouter.ID); err != nil {
		t.Fatalf("delete audio router: %v", err)
	}
	if err := d.DB().First(&assigned, "id = ?", stage.ID).Error; err != nil {
		t.Fatalf("reload stage: %v", err)
	}
	if assigned.AudioRouterID != nil {
		t.Fatalf("audio router reference must be cleared")
	}
	if assigned.VideoRouterID == nil || *assigned.VideoRouterID != videoRouter.ID {
		t.Fatalf("video router reference must survive")
	}
}

func TestStageDeletionRestoresCapacity(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)

	router := seedRouter(t, d, "wss://r.example.com", f64(0), f64(0), map[string]int{"mediasoup": 3})

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:      "short-lived",
		AudioType: "mediasoup",
		VideoType: "mediasoup",
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}
	if got := capacityOf(t, d, router.ID, "mediasoup"); got != 2 {
		t.Fatalf("expected capacity 2 after claim, got %d", got)
	}

	if err := d.DeleteStage(admin.ID, stage.ID); err != nil {
		t.Fatalf("delete stage: %v", err)
	}
	if got := capacityOf(t, d, router.ID, "mediasoup"); got != 3 {
		t.Fatalf("expected capacity restored to 3, got %d", got)
	}
}

func TestClearSharedRouterReassignsWithoutLeak(t *testing.T) {
	d, _ := newTestDistributor(t)
	admin, _ := seedUser(t, d, "admin", true)

	router := seedRouter(t, d, "wss://r.example.com", f64(0), f64(0), map[string]int{"mediasoup": 3})

	stage, err := d.CreateStage(admin.ID, &CreateStageRequest{
		Name:      "reassigned",
		AudioType: "mediasoup",
		VideoType: "mediasoup",
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}
	if got := capacityOf(t, d, router.ID, "mediasoup"); got != 2 {
		t.Fatalf("expected capacity 2 after claim, got %d", got)
	}

	// Clearing one side of a shared assignment drops the whole claim;
	// reassignment then claims a fresh unit. Net capacity must stay at
	// exactly one claimed unit.
	if err := d.UpdateStage(admin.ID, stage.ID, &UpdateStageRequest{ClearAudioRouter: true}); err != nil {
		t.Fatalf("update stage: %v", err)
	}

	if got := capacityOf(t, d, router.ID, "mediasoup"); got != 2 {
		t.Fatalf("expected capacity 2 after reassignment, got %d", got)
	}

	reloaded, err := d.GetStage(stage.ID)
	if err != nil {
		t.Fatalf("reload stage: %v", err)
	}
	if reloaded.AudioRouterID == nil || reloaded.VideoRouterID == nil {
		t.Fatalf("stage should be reassigned on both kinds: %+v", reloaded)
	}
	if *reloaded.AudioRouterID != *reloaded.VideoRouterID {
		t.Fatalf("same-kind stage should share one router")
	}
}
