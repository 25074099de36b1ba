package services

import (
	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/internal/utils"
)

// isStageAdmin reports whether the user is on the stage's admin list.
func (d *Distributor) isStageAdmin(stageID, userID string) (bool, error) {
	var count int64
	err := d.db.Model(&models.StageAdmin{}).
		Where("stage_id = ? AND user_id = ?", stageID, userID).
		Count(&count).Error
	return count > 0, err
}

// isSoundEditor reports whether the user may edit spatial defaults.
func (d *Distributor) isSoundEditor(stageID, userID string) (bool, error) {
	var count int64
	err := d.db.Model(&models.StageSoundEditor{}).
		Where("stage_id = ? AND user_id = ?", stageID, userID).
		Count(&count).Error
	return count > 0, err
}

// CreateStageRequest creates a room. Omitted acoustic fields fall back to
// the documented defaults.
type CreateStageRequest struct {
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	Password     string   `json:"password"`
	AudioType    string   `json:"audioType" binding:"required"`
	VideoType    string   `json:"videoType" binding:"required"`
	PreferredLat *float64 `json:"preferredLat"`
	PreferredLng *float64 `json:"preferredLng"`
	Width        *float64 `json:"width"`
	Length       *float64 `json:"length"`
	Height       *float64 `json:"height"`
	Reflection   *float64 `json:"reflection"`
	Absorption   *float64 `json:"absorption"`
	Admins       []string `json:"admins"`
	SoundEditors []string `json:"soundEditors"`
}

// CreateStage creates a stage with the caller as admin and kicks off router
// assignment asynchronously; the stage legitimately exists unserved until a
// router with capacity appears.
func (d *Distributor) CreateStage(creatorID string, req *CreateStageRequest) (*models.Stage, error) {
	creator, err := d.GetUser(creatorID)
	if err != nil {
		return nil, err
	}
	if !creator.CanCreateStage {
		return nil, ErrNoPrivileges
	}

	stage := models.Stage{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		AudioType:    req.AudioType,
		VideoType:    req.VideoType,
		PreferredLat: req.PreferredLat,
		PreferredLng: req.PreferredLng,
		Width:        models.DefaultStageWidth,
		Length:       models.DefaultStageLength,
		Height:       models.DefaultStageHeight,
		Reflection:   models.DefaultStageReflection,
		Absorption:   models.DefaultStageAbsorption,
	}
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		stage.Password = hash
	}
	if req.Width != nil {
		stage.Width = *req.Width
	}
	if req.Length != nil {
		stage.Length = *req.Length
	}
	if req.Height != nil {
		stage.Height = *req.Height
	}
	if req.Reflection != nil {
		stage.Reflection = *req.Reflection
	}
	if req.Absorption != nil {
		stage.Absorption = *req.Absorption
	}

	if err := d.db.Create(&stage).Error; err != nil {
		return nil, err
	}

	adminIDs := map[string]struct{}{creatorID: {}}
	for _, id := range req.Admins {
		adminIDs[id] = struct{}{}
	}
	for id := range adminIDs {
		if err := d.db.Create(&models.StageAdmin{StageID: stage.ID, UserID: id}).Error; err != nil {
			return nil, err
		}
	}
	for _, id := range req.SoundEditors {
		if err := d.db.Create(&models.StageSoundEditor{StageID: stage.ID, UserID: id}).Error; err != nil {
			return nil, err
		}
	}

	d.notifyStage(stage.ID, EventStageAdded, stage)

	d.enqueueRouterAssignment(stage.ID)

	return &stage, nil
}

// GetStage fetches one stage by id.
func (d *Distributor) GetStage(stageID string) (*models.Stage, error) {
	var stage models.Stage
	if err := d.db.First(&stage, "id = ?", stageID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &stage, nil
}

// UpdateStageRequest patches a stage. Setting ClearAudioRouter or
// ClearVideoRouter releases the assignment and queues a new one.
type UpdateStageRequest struct {
	Name             *string  `json:"name"`
	Description      *string  `json:"description"`
	Password         *string  `json:"password"`
	PreferredLat     *float64 `json:"preferredLat"`
	PreferredLng     *float64 `json:"preferredLng"`
	Width            *float64 `json:"width"`
	Length           *float64 `json:"length"`
	Height           *float64 `json:"height"`
	Reflection       *float64 `json:"reflection"`
	Absorption       *float64 `json:"absorption"`
	ClearAudioRouter bool     `json:"clearAudioRouter"`
	ClearVideoRouter bool     `json:"clearVideoRouter"`
}

// UpdateStage applies a patch after an admin check. The notification for
// the safe subset goes out before the write; password material never
// appears in any payload.
func (d *Distributor) UpdateStage(userID, stageID string, req *UpdateStageRequest) error {
	stage, err := d.GetStage(stageID)
	if err != nil {
		return err
	}
	admin, err := d.isStageAdmin(stageID, userID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrNoPrivileges
	}

	cols := map[string]interface{}{}
	payload := map[string]interface{}{"_id": stageID}
	if req.Name != nil {
		cols["name"] = *req.Name
		payload["name"] = *req.Name
	}
	if req.Description != nil {
		cols["description"] = *req.Description
		payload["description"] = *req.Description
	}
	if req.PreferredLat != nil {
		cols["preferred_lat"] = *req.PreferredLat
		payload["preferredLat"] = *req.PreferredLat
	}
	if req.PreferredLng != nil {
		cols["preferred_lng"] = *req.PreferredLng
		payload["preferredLng"] = *req.PreferredLng
	}
	if req.Width != nil {
		cols["width"] = *req.Width
		payload["width"] = *req.Width
	}
	if req.Length != nil {
		cols["length"] = *req.Length
		payload["length"] = *req.Length
	}
	if req.Height != nil {
		cols["height"] = *req.Height
		payload["height"] = *req.Height
	}
	if req.Reflection != nil {
		cols["reflection"] = *req.Reflection
		payload["reflection"] = *req.Reflection
	}
	if req.Absorption != nil {
		cols["absorption"] = *req.Absorption
		payload["absorption"] = *req.Absorption
	}

	d.notifyStage(stageID, EventStageChanged, payload)

	if req.Password != nil {
		if *req.Password == "" {
			cols["password"] = ""
		} else {
			hash, err := utils.HashPassword(*req.Password)
			if err != nil {
				return err
			}
			cols["password"] = hash
		}
	}

	// A shared same-kind assignment holds a single capacity unit. It is
	// cleared as a whole: clearing either side drops both references and
	// returns the one unit, then reassignment picks a fresh router.
	sharedClaim := stage.AudioRouterID != nil && stage.VideoRouterID != nil &&
		*stage.AudioRouterID == *stage.VideoRouterID && stage.AudioType == stage.VideoType

	routersCleared := false
	unserved := map[string]struct{}{}
	if sharedClaim && (req.ClearAudioRouter || req.ClearVideoRouter) {
		if err := d.releaseRouterCapacity(*stage.AudioRouterID, stage.AudioType); err != nil {
			return err
		}
		unserved[*stage.AudioRouterID] = struct{}{}
		cols["audio_router_id"] = nil
		cols["video_router_id"] = nil
		routersCleared = true
	} else {
		if req.ClearAudioRouter && stage.AudioRouterID != nil {
			if err := d.releaseRouterCapacity(*stage.AudioRouterID, stage.AudioType); err != nil {
				return err
			}
			unserved[*stage.AudioRouterID] = struct{}{}
			cols["audio_router_id"] = nil
			routersCleared = true
		}
		if req.ClearVideoRouter && stage.VideoRouterID != nil {
			if err := d.releaseRouterCapacity(*stage.VideoRouterID, stage.VideoType); err != nil {
				return err
			}
			unserved[*stage.VideoRouterID] = struct{}{}
			cols["video_router_id"] = nil
			routersCleared = true
		}
	}
	for routerID := range unserved {
		d.SendToRouter(routerID, EventRouterUnserveStage, map[string]interface{}{"stageId": stageID})
	}

	if len(cols) > 0 {
		if err := d.db.Model(&models.Stage{}).Where("id = ?", stageID).Updates(cols).Error; err != nil {
			return err
		}
	}

	if routersCleared {
		d.enqueueRouterAssignment(stageID)
	}
	return nil
}

// DeleteStage tears down a stage in fixed cascade order: online members are
// forced to leave, then groups (each cascading members, stage devices,
// tracks and overrides), then router capacity is returned. Branches run
// concurrently; a failing branch does not stop its siblings.
func (d *Distributor) DeleteStage(userID, stageID string) error {
	stage, err := d.GetStage(stageID)
	if err != nil {
		return err
	}
	if userID != "" {
		admin, err := d.isStageAdmin(stageID, userID)
		if err != nil {
			return err
		}
		if !admin {
			return ErrNoPrivileges
		}
	}

	// Notify while member records still exist to resolve the audience.
	d.notifyStage(stageID, EventStageRemoved, stageID)

	var groups []models.Group
	if err := d.db.Find(&groups, "stage_id = ?", stageID).Error; err != nil {
		return err
	}

	branches := make([]func() error, 0, len(groups)+3)
	for _, group := range groups {
		group := group
		branches = append(branches, func() error {
			return d.deleteGroupCascade(&group)
		})
	}
	branches = append(branches,
		func() error {
			return d.releaseRoutersOfStage(stage)
		},
		func() error {
			return d.db.Delete(&models.StageAdmin{}, "stage_id = ?", stageID).Error
		},
		func() error {
			return d.db.Delete(&models.StageSoundEditor{}, "stage_id = ?", stageID).Error
		},
	)

	if err := runBranches(branches...); err != nil {
		return cascadeError("delete stage", stageID, err)
	}

	return d.db.Delete(&models.Stage{}, "id = ?", stageID).Error
}
