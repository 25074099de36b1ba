package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stagecast/distributor/internal/middleware"
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/internal/services"
	"github.com/stagecast/distributor/pkg/response"
)

// StageHandler exposes the stage graph over REST for administration.
// The socket gateway is the primary mutation surface; these endpoints
// mirror it for tooling and dashboards.
type StageHandler struct {
	distributor *services.Distributor
}

func NewStageHandler(d *services.Distributor) *StageHandler {
	return &StageHandler{distributor: d}
}

// List returns the stages the caller administrates or is a member of.
// GET /api/stages
func (h *StageHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var stages []models.Stage
	err := h.distributor.DB().
		Distinct("stages.*").
		Joins("LEFT JOIN stage_admins ON stage_admins.stage_id = stages.id").
		Joins("LEFT JOIN stage_members ON stage_members.stage_id = stages.id").
		Where("stage_admins.user_id = ? OR stage_members.user_id = ?", userID, userID).
		Find(&stages).Error
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, stages)
}

// Create creates a stage with the caller as admin.
// POST /api/stages
func (h *StageHandler) Create(c *gin.Context) {
	var req services.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	stage, err := h.distributor.CreateStage(middleware.GetUserID(c), &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Created(c, stage)
}

// Get returns a single stage.
// GET /api/stages/:id
func (h *StageHandler) Get(c *gin.Context) {
	stage, err := h.distributor.GetStage(c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, stage)
}

// Update patches a stage. Admin only.
// PUT /api/stages/:id
func (h *StageHandler) Update(c *gin.Context) {
	var req services.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.distributor.UpdateStage(middleware.GetUserID(c), c.Param("id"), &req); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, nil)
}

// Delete removes a stage and all its children. Admin only.
// DELETE /api/stages/:id
func (h *StageHandler) Delete(c *gin.Context) {
	if err := h.distributor.DeleteStage(middleware.GetUserID(c), c.Param("id")); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, nil)
}

// CreateGroup adds a group to a stage. Admin only.
// POST /api/stages/:id/groups
func (h *StageHandler) CreateGroup(c *gin.Context) {
	var req services.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	group, err := h.distributor.CreateGroup(middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Created(c, group)
}

// ListGroups returns the groups of a stage.
// GET /api/stages/:id/groups
func (h *StageHandler) ListGroups(c *gin.Context) {
	var groups []models.Group
	if err := h.distributor.DB().
		Where("stage_id = ?", c.Param("id")).
		Order("created_at").
		Find(&groups).Error; err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, groups)
}

// UpdateGroup patches a group.
// PUT /api/groups/:id
func (h *StageHandler) UpdateGroup(c *gin.Context) {
	var req services.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.distributor.UpdateGroup(middleware.GetUserID(c), c.Param("id"), &req); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, nil)
}

// DeleteGroup removes a group and its members. Admin only.
// DELETE /api/groups/:id
func (h *StageHandler) DeleteGroup(c *gin.Context) {
	if err := h.distributor.DeleteGroup(middleware.GetUserID(c), c.Param("id")); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, nil)
}
