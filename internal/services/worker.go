package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/stagecast/distributor/internal/config"
	"github.com/stagecast/distributor/pkg/logger"
)

// Worker processes deferred tasks from the Redis queue. It is only started
// when Redis is enabled; the in-process queue handles its own tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *Task) error
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker creates a new worker instance
func NewWorker(cfg *config.RedisConfig, processor func(context.Context, *Task) error) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Infof("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
	}
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeAssignRouters, w.handleTask)
	w.mux.HandleFunc(TaskTypeRenewPresence, w.handleTask)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Infof("[Worker] Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.server.Shutdown()
	w.wg.Wait()
	w.running = false
}

func (w *Worker) handleTask(ctx context.Context, t *asynq.Task) error {
	var task Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("unmarshal task payload: %w", err)
	}
	if task.Type == "" {
		task.Type = t.Type()
	}
	return w.processor(ctx, &task)
}

// ProcessTask dispatches one deferred task against the distributor. It is
// the processor for both queue implementations.
func (d *Distributor) ProcessTask(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskTypeAssignRouters:
		return d.AssignRoutersToStage(task.StageID)
	case TaskTypeRenewPresence:
		return d.RenewPresence(task.UserID)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}
