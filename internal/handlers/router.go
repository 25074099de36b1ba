package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/internal/services"
	"github.com/stagecast/distributor/pkg/response"
)

// RouterHandler registers and manages media relay servers.
type RouterHandler struct {
	distributor *services.Distributor
}

func NewRouterHandler(d *services.Distributor) *RouterHandler {
	return &RouterHandler{distributor: d}
}

// List returns all registered routers with their service capacities.
// GET /api/routers
func (h *RouterHandler) List(c *gin.Context) {
	var routers []models.Router
	if err := h.distributor.DB().Find(&routers).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}

	var kinds []models.RouterService
	if err := h.distributor.DB().Find(&kinds).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}
	servicesByRouter := make(map[string]map[string]int)
	for _, svc := range kinds {
		if servicesByRouter[svc.RouterID] == nil {
			servicesByRouter[svc.RouterID] = make(map[string]int)
		}
		servicesByRouter[svc.RouterID][svc.Kind] = svc.Capacity
	}

	type routerWithServices struct {
		models.Router
		Services map[string]int `json:"services"`
	}
	out := make([]routerWithServices, 0, len(routers))
	for _, router := range routers {
		out = append(out, routerWithServices{Router: router, Services: servicesByRouter[router.ID]})
	}
	response.Success(c, out)
}

// Register announces a router and its capacities. Re-announcing the
// same URL updates the existing record.
// POST /api/routers
func (h *RouterHandler) Register(c *gin.Context) {
	var req services.CreateRouterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	router, err := h.distributor.CreateRouter(&req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Created(c, router)
}

// Update patches a router record.
// PUT /api/routers/:id
func (h *RouterHandler) Update(c *gin.Context) {
	var req services.UpdateRouterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	router, err := h.distributor.UpdateRouter(c.Param("id"), &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, router)
}

// Delete removes a router. Stages it served are detached and queued for
// reassignment.
// DELETE /api/routers/:id
func (h *RouterHandler) Delete(c *gin.Context) {
	if err := h.distributor.DeleteRouter(c.Param("id")); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, nil)
}
