package main

import (
	"github.com/stagecast/distributor/internal/config"
	"github.com/stagecast/distributor/internal/models"
	"github.com/stagecast/distributor/internal/realtime"
	"github.com/stagecast/distributor/internal/services"
	"github.com/stagecast/distributor/internal/utils"
	"github.com/stagecast/distributor/pkg/logger"
)

// appServices holds the initialized subsystems the HTTP layer depends on.
type appServices struct {
	distributor *services.Distributor
	hub         *realtime.Hub
	backplane   *realtime.Backplane
	taskQueue   services.TaskQueue
	worker      *services.Worker
	sweeper     *services.Sweeper
}

// bootstrap wires database, hub, queue and schedulers together.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.Auth.JWTSecret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	hub := realtime.NewHub()

	var backplane *realtime.Backplane
	if cfg.Redis.Enabled {
		bp, err := realtime.NewBackplane(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, hub)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable, event fan-out stays instance-local")
		} else {
			hub.SetBackplane(bp)
			bp.Start()
			backplane = bp
		}
	}

	distributor := services.NewDistributor(models.GetDB(), hub, nil, cfg.Server.InstanceID)

	// The queue processes tasks through the distributor, so it is wired
	// in after construction.
	taskQueue := services.NewTaskQueue(cfg, distributor.ProcessTask)
	distributor.SetQueue(taskQueue)

	var worker *services.Worker
	if cfg.Redis.Enabled && taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis, distributor.ProcessTask)
		if err := worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start async worker")
			worker = nil
		}
	}

	// Purge devices and routers a previous run of this instance left
	// behind.
	if err := distributor.CleanupInstance(); err != nil {
		logger.Warn().Err(err).Msg("Startup cleanup failed")
	}

	var sweeper *services.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = services.NewSweeper(distributor, cfg.Sweep.Spec)
		if err := sweeper.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start router sweep")
			sweeper = nil
		}
	}

	return &appServices{
		distributor: distributor,
		hub:         hub,
		backplane:   backplane,
		taskQueue:   taskQueue,
		worker:      worker,
		sweeper:     sweeper,
	}
}

// shutdown stops background work in reverse dependency order.
func (s *appServices) shutdown() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if s.backplane != nil {
		s.backplane.Stop()
	}
	logger.Info().Msg("All background services stopped")
}
