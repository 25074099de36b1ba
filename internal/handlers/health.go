package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stagecast/distributor/internal/realtime"
	"github.com/stagecast/distributor/internal/services"
)

// HealthHandler reports the state of the server's subsystems.
type HealthHandler struct {
	distributor *services.Distributor
	hub         *realtime.Hub
	queue       services.TaskQueue
}

func NewHealthHandler(d *services.Distributor, hub *realtime.Hub, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{distributor: d, hub: hub, queue: queue}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	dbStatus := "ok"
	sqlDB, err := h.distributor.DB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(200, gin.H{
		"status":   overall,
		"service":  "distributor",
		"instance": h.distributor.InstanceID(),
		"components": gin.H{
			"database":   dbStatus,
			"queue_mode": queueMode,
			"ws_clients": h.hub.ClientCount(),
		},
	})
}
