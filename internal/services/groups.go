package services

import (
	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
)

// groupColorPalette is cycled through so every group of a stage gets a
// distinct display color.
var groupColorPalette = []string{
	"#f44336", "#2196f3", "#4caf50", "#ff9800",
	"#9c27b0", "#00bcd4", "#ffeb3b", "#795548",
}

// nextGroupColor picks the first palette color not yet used in the stage.
func (d *Distributor) nextGroupColor(stageID string) (string, error) {
	var used []string
	if err := d.db.Model(&models.Group{}).
		Where("stage_id = ?", stageID).
		Pluck("color", &used).Error; err != nil {
		return "", err
	}
	taken := map[string]struct{}{}
	for _, color := range used {
		taken[color] = struct{}{}
	}
	for _, color := range groupColorPalette {
		if _, ok := taken[color]; !ok {
			return color, nil
		}
	}
	// Palette exhausted; cycle.
	return groupColorPalette[len(used)%len(groupColorPalette)], nil
}

// CreateGroupRequest creates a subdivision of a stage.
type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	IconURL     string   `json:"iconUrl"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Z           *float64 `json:"z"`
	Volume      *float64 `json:"volume"`
}

func (d *Distributor) CreateGroup(userID, stageID string, req *CreateGroupRequest) (*models.Group, error) {
	if _, err := d.GetStage(stageID); err != nil {
		return nil, err
	}
	admin, err := d.isStageAdmin(stageID, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, ErrNoPrivileges
	}

	color := req.Color
	if color == "" {
		color, err = d.nextGroupColor(stageID)
		if err != nil {
			return nil, err
		}
	}

	group := models.Group{
		ID:                         uuid.NewString(),
		StageID:                    stageID,
		Name:                       req.Name,
		Description:                req.Description,
		Color:                      color,
		IconURL:                    req.IconURL,
		ThreeDimensionalProperties: models.DefaultThreeDimensional(),
		VolumeProperties:           models.DefaultVolume(),
	}
	if req.X != nil {
		group.X = *req.X
	}
	if req.Y != nil {
		group.Y = *req.Y
	}
	if req.Z != nil {
		group.Z = *req.Z
	}
	if req.Volume != nil {
		group.Volume = *req.Volume
	}

	if err := d.db.Create(&group).Error; err != nil {
		return nil, err
	}
	d.notifyStage(stageID, EventGroupAdded, group)
	return &group, nil
}

// UpdateGroupRequest patches a group, including its default spatial and
// volume attributes.
type UpdateGroupRequest struct {
	Name        *string                      `json:"name"`
	Description *string                      `json:"description"`
	Color       *string                      `json:"color"`
	IconURL     *string                      `json:"iconUrl"`
	Position    models.ThreeDimensionalPatch `json:"position"`
	Volume      models.VolumePatch           `json:"volume"`
}

// UpdateGroup requires stage admin rights, or sound-editor rights when only
// spatial/volume attributes change.
func (d *Distributor) UpdateGroup(userID, groupID string, req *UpdateGroupRequest) error {
	var group models.Group
	if err := d.db.First(&group, "id = ?", groupID).Error; err != nil {
		return translateNotFound(err)
	}

	admin, err := d.isStageAdmin(group.StageID, userID)
	if err != nil {
		return err
	}
	if !admin {
		spatialOnly := req.Name == nil && req.Description == nil && req.Color == nil && req.IconURL == nil
		editor, err := d.isSoundEditor(group.StageID, userID)
		if err != nil {
			return err
		}
		if !spatialOnly || !editor {
			return ErrNoPrivileges
		}
	}

	cols := map[string]interface{}{}
	payload := map[string]interface{}{"_id": groupID}
	if req.Name != nil {
		cols["name"] = *req.Name
		payload["name"] = *req.Name
	}
	if req.Description != nil {
		cols["description"] = *req.Description
		payload["description"] = *req.Description
	}
	if req.Color != nil {
		cols["color"] = *req.Color
		payload["color"] = *req.Color
	}
	if req.IconURL != nil {
		cols["icon_url"] = *req.IconURL
		payload["iconUrl"] = *req.IconURL
	}
	for col, value := range req.Position.Columns() {
		cols[col] = value
	}
	for col, value := range req.Volume.Columns() {
		cols[col] = value
	}
	if len(cols) == 0 {
		return nil
	}

	d.notifyStage(group.StageID, EventGroupChanged, payload)

	return d.db.Model(&models.Group{}).Where("id = ?", groupID).Updates(cols).Error
}

// DeleteGroup requires admin rights and runs the group cascade.
func (d *Distributor) DeleteGroup(userID, groupID string) error {
	var group models.Group
	if err := d.db.First(&group, "id = ?", groupID).Error; err != nil {
		return translateNotFound(err)
	}
	admin, err := d.isStageAdmin(group.StageID, userID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrNoPrivileges
	}
	return d.deleteGroupCascade(&group)
}

// deleteGroupCascade removes a group, its members (forcing leave for any
// member currently inside) and all overrides targeting it.
func (d *Distributor) deleteGroupCascade(group *models.Group) error {
	var members []models.StageMember
	if err := d.db.Find(&members, "group_id = ?", group.ID).Error; err != nil {
		return err
	}

	branches := make([]func() error, 0, len(members)+2)
	for _, member := range members {
		member := member
		branches = append(branches, func() error {
			return d.deleteStageMemberCascade(&member)
		})
	}
	branches = append(branches,
		func() error {
			return d.db.Delete(&models.CustomGroupPosition{}, "group_id = ?", group.ID).Error
		},
		func() error {
			return d.db.Delete(&models.CustomGroupVolume{}, "group_id = ?", group.ID).Error
		},
	)

	if err := runBranches(branches...); err != nil {
		return cascadeError("delete group", group.ID, err)
	}

	if err := d.db.Delete(&models.Group{}, "id = ?", group.ID).Error; err != nil {
		return err
	}
	d.notifyStage(group.StageID, EventGroupRemoved, group.ID)
	return nil
}
