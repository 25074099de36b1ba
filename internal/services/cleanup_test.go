package services

import (
	"testing"
	"time"

	"github.com/stagecast/distributor/internal/models"
)

func TestCleanupInstancePurgesOwnRecordsOnly(t *testing.T) {
	d, _ := newTestDistributor(t)
	user, _ := seedUser(t, d, "survivor", true)

	// A device and router from another instance must survive.
	foreignDevice := models.Device{ID: "foreign-dev", UserID: user.ID, ApiServer: "other-instance"}
	if err := d.DB().Create(&foreignDevice).Error; err != nil {
		t.Fatalf("seed foreign device: %v", err)
	}
	foreignRouter := models.Router{ID: "foreign-router", Url: "wss://foreign.example.com", ApiServer: "other-instance"}
	if err := d.DB().Create(&foreignRouter).Error; err != nil {
		t.Fatalf("seed foreign router: %v", err)
	}

	// seedUser registered one device through this instance.
	seedRouter(t, d, "wss://local.example.com", nil, nil, nil)

	if err := d.CleanupInstance(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if n := count[models.Device](t, d, "api_server = ?", d.InstanceID()); n != 0 {
		t.Fatalf("own devices not purged, %d left", n)
	}
	if n := count[models.Router](t, d, "api_server = ?", d.InstanceID()); n != 0 {
		t.Fatalf("own routers not purged, %d left", n)
	}
	if n := count[models.Device](t, d, "api_server = ?", "other-instance"); n != 1 {
		t.Fatalf("foreign device must survive")
	}
	if n := count[models.Router](t, d, "api_server = ?", "other-instance"); n != 1 {
		t.Fatalf("foreign router must survive")
	}
}

func TestSweepLockSingleHolder(t *testing.T) {
	d, _ := newTestDistributor(t)

	first := NewSweeper(d, "@every 1m")
	ok, err := first.acquireLock()
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !ok {
		t.Fatalf("first acquire must succeed")
	}

	// A second instance must not get the unexpired lock.
	other := NewSweeper(NewDistributor(d.DB(), &captureHub{}, nil, "other-instance"), "@every 1m")
	ok, err = other.acquireLock()
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("second acquire must be rejected while the lock is held")
	}

	// Expire the lock: takeover succeeds.
	if err := d.DB().Model(&models.SchedulerLock{}).
		Where("lock_name = ?", sweepLockName).
		Update("expires_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("expire lock: %v", err)
	}
	ok, err = other.acquireLock()
	if err != nil {
		t.Fatalf("takeover acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expired lock must be taken over")
	}
}
