package services

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/pkg/logger"
	"gorm.io/gorm"
)

// CreateRouterRequest registers a media-relay resource and its per-kind
// capacities.
type CreateRouterRequest struct {
	Url         string         `json:"url" binding:"required"`
	Path        string         `json:"path"`
	CountryCode string         `json:"countryCode"`
	City        string         `json:"city"`
	Lat         *float64       `json:"lat"`
	Lng         *float64       `json:"lng"`
	Services    map[string]int `json:"services"` // media kind -> capacity
}

// CreateRouter registers a router, deduplicated by URL: a concurrent
// re-registration of the same URL updates the existing record instead of
// failing.
func (d *Distributor) CreateRouter(req *CreateRouterRequest) (*models.Router, error) {
	cols := map[string]interface{}{
		"path":         req.Path,
		"country_code": req.CountryCode,
		"city":         req.City,
		"lat":          req.Lat,
		"lng":          req.Lng,
		"api_server":   d.instanceID,
	}

	res := d.db.Model(&models.Router{}).Where("url = ?", req.Url).Updates(cols)
	if res.Error != nil {
		return nil, res.Error
	}

	var router models.Router
	if res.RowsAffected > 0 {
		if err := d.db.First(&router, "url = ?", req.Url).Error; err != nil {
			return nil, err
		}
	} else {
		router = models.Router{
			ID:          uuid.NewString(),
			Url:         req.Url,
			Path:        req.Path,
			ApiServer:   d.instanceID,
			CountryCode: req.CountryCode,
			City:        req.City,
			Lat:         req.Lat,
			Lng:         req.Lng,
		}
		if err := d.db.Create(&router).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the registration race; fall back to the existing row.
				if err := d.db.First(&router, "url = ?", req.Url).Error; err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
	}

	for kind, capacity := range req.Services {
		svc := d.db.Model(&models.RouterService{}).
			Where("router_id = ? AND kind = ?", router.ID, kind).
			Update("capacity", capacity)
		if svc.Error != nil {
			return nil, svc.Error
		}
		if svc.RowsAffected == 0 {
			if err := d.db.Create(&models.RouterService{
				RouterID: router.ID,
				Kind:     kind,
				Capacity: capacity,
			}).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, err
			}
		}
	}

	d.SendToAll(EventRouterAdded, router)

	// A fresh router may be able to serve stages left without one.
	d.enqueueUnservedSweep()

	return &router, nil
}

// UpdateRouterRequest patches a router record.
type UpdateRouterRequest struct {
	Path        *string        `json:"path"`
	CountryCode *string        `json:"countryCode"`
	City        *string        `json:"city"`
	Lat         *float64       `json:"lat"`
	Lng         *float64       `json:"lng"`
	Services    map[string]int `json:"services"`
}

func (d *Distributor) UpdateRouter(routerID string, req *UpdateRouterRequest) (*models.Router, error) {
	var router models.Router
	if err := d.db.First(&router, "id = ?", routerID).Error; err != nil {
		return nil, translateNotFound(err)
	}

	cols := map[string]interface{}{}
	if req.Path != nil {
		cols["path"] = *req.Path
	}
	if req.CountryCode != nil {
		cols["country_code"] = *req.CountryCode
	}
	if req.City != nil {
		cols["city"] = *req.City
	}
	if req.Lat != nil {
		cols["lat"] = *req.Lat
	}
	if req.Lng != nil {
		cols["lng"] = *req.Lng
	}
	if len(cols) > 0 {
		if err := d.db.Model(&models.Router{}).Where("id = ?", routerID).Updates(cols).Error; err != nil {
			return nil, err
		}
	}

	for kind, capacity := range req.Services {
		svc := d.db.Model(&models.RouterService{}).
			Where("router_id = ? AND kind = ?", routerID, kind).
			Update("capacity", capacity)
		if svc.Error != nil {
			return nil, svc.Error
		}
		if svc.RowsAffected == 0 {
			if err := d.db.Create(&models.RouterService{
				RouterID: routerID,
				Kind:     kind,
				Capacity: capacity,
			}).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, err
			}
		}
	}

	if err := d.db.First(&router, "id = ?", routerID).Error; err != nil {
		return nil, err
	}
	d.SendToAll(EventRouterChanged, router)
	d.enqueueUnservedSweep()
	return &router, nil
}

// DeleteRouter removes a router. Stages it served get only the matching
// router reference cleared (per kind, never both unconditionally) and are
// queued for reassignment.
func (d *Distributor) DeleteRouter(routerID string) error {
	var router models.Router
	if err := d.db.First(&router, "id = ?", routerID).Error; err != nil {
		return translateNotFound(err)
	}

	var audioStageIDs, videoStageIDs []string
	if err := d.db.Model(&models.Stage{}).
		Where("audio_router_id = ?", routerID).
		Pluck("id", &audioStageIDs).Error; err != nil {
		return err
	}
	if err := d.db.Model(&models.Stage{}).
		Where("video_router_id = ?", routerID).
		Pluck("id", &videoStageIDs).Error; err != nil {
		return err
	}

	err := runBranches(
		func() error {
			return d.db.Model(&models.Stage{}).
				Where("audio_router_id = ?", routerID).
				Update("audio_router_id", nil).Error
		},
		func() error {
			return d.db.Model(&models.Stage{}).
				Where("video_router_id = ?", routerID).
				Update("video_router_id", nil).Error
		},
		func() error {
			return d.db.Delete(&models.RouterService{}, "router_id = ?", routerID).Error
		},
	)
	if err != nil {
		return cascadeError("delete router", routerID, err)
	}

	if err := d.db.Delete(&models.Router{}, "id = ?", routerID).Error; err != nil {
		return err
	}
	d.SendToAll(EventRouterRemoved, routerID)

	affected := map[string]struct{}{}
	for _, id := range audioStageIDs {
		affected[id] = struct{}{}
	}
	for _, id := range videoStageIDs {
		affected[id] = struct{}{}
	}
	for stageID := range affected {
		d.notifyStage(stageID, EventStageChanged, map[string]interface{}{"_id": stageID})
		d.enqueueRouterAssignment(stageID)
	}
	return nil
}

// nearestRouter picks the router with remaining capacity for kind that
// minimizes great-circle distance to (lat, lng). Routers without a position
// are treated as maximally distant and logged. Ties resolve to the first
// candidate in enumeration order. Returns nil when no router qualifies.
func (d *Distributor) nearestRouter(kind string, lat, lng *float64) (*models.Router, error) {
	var candidates []models.Router
	err := d.db.
		Joins("JOIN router_services ON router_services.router_id = routers.id").
		Where("router_services.kind = ? AND router_services.capacity > 0", kind).
		Order("routers.created_at").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if lat == nil || lng == nil {
		return &candidates[0], nil
	}

	var best *models.Router
	bestDistance := math.Inf(1)
	for i := range candidates {
		candidate := &candidates[i]
		distance := math.Inf(1)
		if candidate.HasPosition() {
			distance = haversineDistance(*lat, *lng, *candidate.Lat, *candidate.Lng)
		} else {
			logger.Warn().Str("router", candidate.ID).Msg("router has no position, treating as maximally distant")
		}
		if distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	if best == nil {
		// All candidates lack a position; take the first one anyway.
		best = &candidates[0]
	}
	return best, nil
}

// claimRouterCapacity atomically decrements remaining capacity for one
// kind. Returns false when a concurrent claim exhausted it first.
func (d *Distributor) claimRouterCapacity(routerID, kind string) (bool, error) {
	res := d.db.Model(&models.RouterService{}).
		Where("router_id = ? AND kind = ? AND capacity > 0", routerID, kind).
		Update("capacity", gorm.Expr("capacity - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// releaseRouterCapacity restores one unit of capacity for a kind.
func (d *Distributor) releaseRouterCapacity(routerID, kind string) error {
	return d.db.Model(&models.RouterService{}).
		Where("router_id = ? AND kind = ?", routerID, kind).
		Update("capacity", gorm.Expr("capacity + 1")).Error
}

// AssignRoutersToStage resolves router assignments for every unserved media
// kind of the stage. When audio and video kinds are identical one router is
// asked to serve both; otherwise the kinds are assigned independently.
// Finding no eligible router leaves the stage unserved and is not an error.
func (d *Distributor) AssignRoutersToStage(stageID string) error {
	var stage models.Stage
	if err := d.db.First(&stage, "id = ?", stageID).Error; err != nil {
		return translateNotFound(err)
	}

	if stage.AudioRouterID != nil && stage.VideoRouterID != nil {
		return nil
	}

	cols := map[string]interface{}{}

	if stage.AudioType == stage.VideoType {
		if stage.AudioRouterID == nil || stage.VideoRouterID == nil {
			router, err := d.nearestRouter(stage.AudioType, stage.PreferredLat, stage.PreferredLng)
			if err != nil {
				return err
			}
			if router == nil {
				logger.Warn().Str("stage", stageID).Str("kind", stage.AudioType).
					Msg("no router with capacity available, stage stays unserved")
				return nil
			}
			claimed, err := d.claimRouterCapacity(router.ID, stage.AudioType)
			if err != nil {
				return err
			}
			if claimed {
				cols["audio_router_id"] = router.ID
				cols["video_router_id"] = router.ID
			}
		}
	} else {
		if stage.AudioRouterID == nil {
			router, err := d.nearestRouter(stage.AudioType, stage.PreferredLat, stage.PreferredLng)
			if err != nil {
				return err
			}
			if router != nil {
				claimed, err := d.claimRouterCapacity(router.ID, stage.AudioType)
				if err != nil {
					return err
				}
				if claimed {
					cols["audio_router_id"] = router.ID
				}
			} else {
				logger.Warn().Str("stage", stageID).Str("kind", stage.AudioType).
					Msg("no audio router with capacity available")
			}
		}
		if stage.VideoRouterID == nil {
			router, err := d.nearestRouter(stage.VideoType, stage.PreferredLat, stage.PreferredLng)
			if err != nil {
				return err
			}
			if router != nil {
				claimed, err := d.claimRouterCapacity(router.ID, stage.VideoType)
				if err != nil {
					return err
				}
				if claimed {
					cols["video_router_id"] = router.ID
				}
			} else {
				logger.Warn().Str("stage", stageID).Str("kind", stage.VideoType).
					Msg("no video router with capacity available")
			}
		}
	}

	if len(cols) == 0 {
		return nil
	}
	if err := d.db.Model(&models.Stage{}).Where("id = ?", stageID).Updates(cols).Error; err != nil {
		return err
	}

	payload := map[string]interface{}{"_id": stageID}
	for col, value := range cols {
		switch col {
		case "audio_router_id":
			payload["audioRouterId"] = value
		case "video_router_id":
			payload["videoRouterId"] = value
		}
	}
	d.notifyStage(stageID, EventStageChanged, payload)

	notified := map[string]struct{}{}
	for _, value := range cols {
		routerID := value.(string)
		if _, seen := notified[routerID]; seen {
			continue
		}
		notified[routerID] = struct{}{}
		d.SendToRouter(routerID, EventRouterServeStage, map[string]interface{}{
			"stageId":   stageID,
			"audioType": stage.AudioType,
			"videoType": stage.VideoType,
		})
	}
	return nil
}

// releaseRoutersOfStage returns claimed capacity and tells the routers to
// stop serving the stage. Used when a stage is deleted or its router
// reference is explicitly cleared.
func (d *Distributor) releaseRoutersOfStage(stage *models.Stage) error {
	released := map[string]struct{}{}

	sharedClaim := stage.AudioRouterID != nil && stage.VideoRouterID != nil &&
		*stage.AudioRouterID == *stage.VideoRouterID && stage.AudioType == stage.VideoType

	if stage.AudioRouterID != nil {
		if err := d.releaseRouterCapacity(*stage.AudioRouterID, stage.AudioType); err != nil {
			return err
		}
		released[*stage.AudioRouterID] = struct{}{}
	}
	// A shared same-kind assignment claimed a single capacity unit, so it
	// is released once.
	if stage.VideoRouterID != nil && !sharedClaim {
		if err := d.releaseRouterCapacity(*stage.VideoRouterID, stage.VideoType); err != nil {
			return err
		}
		released[*stage.VideoRouterID] = struct{}{}
	}

	for routerID := range released {
		d.SendToRouter(routerID, EventRouterUnserveStage, map[string]interface{}{
			"stageId": stage.ID,
		})
	}
	return nil
}

// enqueueRouterAssignment schedules assignment fire-and-forget.
func (d *Distributor) enqueueRouterAssignment(stageID string) {
	if d.queue != nil {
		if err := d.queue.Enqueue(&Task{Type: TaskTypeAssignRouters, StageID: stageID}); err == nil {
			return
		}
	}
	go func() {
		if err := d.AssignRoutersToStage(stageID); err != nil {
			logger.Error().Err(err).Str("stage", stageID).Msg("router assignment failed")
		}
	}()
}

// enqueueUnservedSweep retries assignment for every stage currently missing
// a router.
func (d *Distributor) enqueueUnservedSweep() {
	var stageIDs []string
	if err := d.db.Model(&models.Stage{}).
		Where("audio_router_id IS NULL OR video_router_id IS NULL").
		Pluck("id", &stageIDs).Error; err != nil {
		logger.Error().Err(err).Msg("unserved stage sweep query failed")
		return
	}
	for _, stageID := range stageIDs {
		d.enqueueRouterAssignment(stageID)
	}
}
