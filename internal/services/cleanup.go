package services

import (
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/pkg/logger"
)

// CleanupInstance removes devices and routers left behind by a previous
// run of this process instance. Their connections are gone, so the
// records are stale; deleting through the regular cascades also frees
// claimed router capacity and withdraws published tracks.
func (d *Distributor) CleanupInstance() error {
	var deviceIDs []string
	if err := d.db.Model(&models.Device{}).
		Where("api_server = ?", d.instanceID).
		Pluck("id", &deviceIDs).Error; err != nil {
		return err
	}
	for _, id := range deviceIDs {
		if err := d.DeleteDevice(id); err != nil {
			logger.Warn().Err(err).Str("device", id).Msg("cleanup: failed to delete stale device")
		}
	}

	var routerIDs []string
	if err := d.db.Model(&models.Router{}).
		Where("api_server = ?", d.instanceID).
		Pluck("id", &routerIDs).Error; err != nil {
		return err
	}
	for _, id := range routerIDs {
		if err := d.DeleteRouter(id); err != nil {
			logger.Warn().Err(err).Str("router", id).Msg("cleanup: failed to delete stale router")
		}
	}

	if len(deviceIDs) > 0 || len(routerIDs) > 0 {
		logger.Info().
			Int("devices", len(deviceIDs)).
			Int("routers", len(routerIDs)).
			Str("instance", d.instanceID).
			Msg("cleaned up stale records of previous instance run")
	}
	return nil
}
