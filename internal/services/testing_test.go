package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stagecast/distributor/internal/models"
)

// sentEvent is one fan-out delivery recorded by the capture hub.
type sentEvent struct {
	Scope   string // "user", "device", "router", "all"
	Target  string
	Event   string
	Payload interface{}
}

// captureHub records every delivery instead of pushing it to sockets.
type captureHub struct {
	mu     sync.Mutex
	events []sentEvent
}

func (h *captureHub) SendToUser(userID, event string, payload interface{}) {
	h.record(sentEvent{Scope: "user", Target: userID, Event: event, Payload: payload})
}

func (h *captureHub) SendToDevice(deviceID, event string, payload interface{}) {
	h.record(sentEvent{Scope: "device", Target: deviceID, Event: event, Payload: payload})
}

func (h *captureHub) SendToRouter(routerID, event string, payload interface{}) {
	h.record(sentEvent{Scope: "router", Target: routerID, Event: event, Payload: payload})
}

func (h *captureHub) SendToAll(event string, payload interface{}) {
	h.record(sentEvent{Scope: "all", Event: event, Payload: payload})
}

func (h *captureHub) record(e sentEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *captureHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}

// eventsFor returns the events delivered to one user, in order.
func (h *captureHub) eventsFor(userID string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.events {
		if e.Scope == "user" && e.Target == userID {
			out = append(out, e)
		}
	}
	return out
}

func (h *captureHub) countFor(userID, event string) int {
	n := 0
	for _, e := range h.eventsFor(userID) {
		if e.Event == event {
			n++
		}
	}
	return n
}

// inlineQueue runs tasks synchronously on the caller so tests see their
// effects immediately.
type inlineQueue struct {
	d *Distributor
}

func (q *inlineQueue) Enqueue(task *Task) error {
	return q.d.ProcessTask(context.Background(), task)
}

func (q *inlineQueue) IsAsync() bool { return false }
func (q *inlineQueue) Close() error  { return nil }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	// A single connection keeps the in-memory database alive and shared.
	sqlDB.SetMaxOpenConns(1)
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestDistributor(t *testing.T) (*Distributor, *captureHub) {
	t.Helper()
	hub := &captureHub{}
	d := NewDistributor(newTestDB(t), hub, nil, "test-instance")
	d.SetQueue(&inlineQueue{d: d})
	return d, hub
}

// seedUser creates a user with a device, optionally online.
func seedUser(t *testing.T, d *Distributor, uid string, online bool) (*models.User, *models.Device) {
	t.Helper()
	user, err := d.GetOrCreateUserByUid(uid, uid, "")
	if err != nil {
		t.Fatalf("create user %s: %v", uid, err)
	}
	if err := d.db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("can_create_stage", true).Error; err != nil {
		t.Fatalf("grant stage creation to %s: %v", uid, err)
	}
	user.CanCreateStage = true

	device, err := d.CreateDevice(user.ID, &CreateDeviceRequest{
		Type:     "test",
		CanAudio: true,
		CanVideo: true,
		Online:   online,
	})
	if err != nil {
		t.Fatalf("create device for %s: %v", uid, err)
	}
	return user, device
}

// seedStage creates a stage with one group.
func seedStage(t *testing.T, d *Distributor, creatorID, name string) (*models.Stage, *models.Group) {
	t.Helper()
	stage, err := d.CreateStage(creatorID, &CreateStageRequest{
		Name:      name,
		AudioType: "mediasoup",
		VideoType: "mediasoup",
	})
	if err != nil {
		t.Fatalf("create stage %s: %v", name, err)
	}
	group, err := d.CreateGroup(creatorID, stage.ID, &CreateGroupRequest{Name: name + "-group"})
	if err != nil {
		t.Fatalf("create group on %s: %v", name, err)
	}
	return stage, group
}

func f64(v float64) *float64 { return &v }
func strp(v string) *string  { return &v }
func boolp(v bool) *bool     { return &v }

func count[T any](t *testing.T, d *Distributor, query string, args ...interface{}) int64 {
	t.Helper()
	var model T
	var n int64
	q := d.db.Model(&model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
