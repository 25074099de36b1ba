package services

import (
	"gorm.io/gorm"
)

// Broadcaster is the transport collaborator used for fan-out. Delivery
// reliability is its responsibility; the distributor only resolves
// audiences into recipients.
type Broadcaster interface {
	SendToUser(userID, event string, payload interface{})
	SendToDevice(deviceID, event string, payload interface{})
	SendToRouter(routerID, event string, payload interface{})
	SendToAll(event string, payload interface{})
}

// Distributor is the authoritative state engine over the stage entity
// graph. It is constructed explicitly and passed around by dependency
// injection; it holds no process-global state.
type Distributor struct {
	db         *gorm.DB
	hub        Broadcaster
	queue      TaskQueue
	instanceID string
}

// NewDistributor wires the distributor to its collaborators. queue may be
// nil, in which case background work (router assignment, presence renewal)
// runs in fire-and-forget goroutines of this process.
func NewDistributor(db *gorm.DB, hub Broadcaster, queue TaskQueue, instanceID string) *Distributor {
	return &Distributor{
		db:         db,
		hub:        hub,
		queue:      queue,
		instanceID: instanceID,
	}
}

// SetQueue attaches the task queue after construction. The queue's
// processor is the distributor itself, so the two are wired in two steps.
func (d *Distributor) SetQueue(queue TaskQueue) {
	d.queue = queue
}

// DB exposes the underlying connection for handlers that only read.
func (d *Distributor) DB() *gorm.DB {
	return d.db
}

// InstanceID returns the identifier this process tags Devices and Routers with.
func (d *Distributor) InstanceID() string {
	return d.instanceID
}
