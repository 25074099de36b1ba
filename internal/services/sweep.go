package services

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/pkg/logger"
)

const (
	sweepLockName = "router_sweep"
	sweepLockTTL  = 4 * time.Minute
)

// Sweeper periodically retries router assignment for stages that are
// still missing an audio or video router, e.g. because no router had
// free capacity when the stage was created.
type Sweeper struct {
	distributor *Distributor
	scheduler   *cron.Cron
	spec        string
}

func NewSweeper(d *Distributor, spec string) *Sweeper {
	return &Sweeper{distributor: d, spec: spec}
}

func (s *Sweeper) Start() error {
	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(s.spec, s.run); err != nil {
		return err
	}
	s.scheduler.Start()
	logger.Info().Str("spec", s.spec).Msg("router sweep scheduled")
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Sweeper) run() {
	ok, err := s.acquireLock()
	if err != nil {
		logger.Error().Err(err).Msg("router sweep: lock acquisition failed")
		return
	}
	if !ok {
		return
	}
	s.distributor.enqueueUnservedSweep()
}

// acquireLock takes the database-backed lock for this sweep window so
// only one instance runs it. Stale locks are taken over once expired.
func (s *Sweeper) acquireLock() (bool, error) {
	db := s.distributor.DB()
	now := time.Now()

	result := db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND expires_at < ?", sweepLockName, now).
		Updates(map[string]interface{}{
			"locked_by":  s.distributor.InstanceID(),
			"locked_at":  now,
			"expires_at": now.Add(sweepLockTTL),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	lock := models.SchedulerLock{
		LockName:  sweepLockName,
		LockKey:   sweepLockName,
		LockedBy:  s.distributor.InstanceID(),
		LockedAt:  now,
		ExpiresAt: now.Add(sweepLockTTL),
	}
	if err := db.Create(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another instance holds an unexpired lock.
			return false, nil
		}
		return false, err
	}
	return true, nil
}
