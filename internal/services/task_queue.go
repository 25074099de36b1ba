package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/stagecast/distributor/internal/config"
	"github.com/stagecast/distributor/pkg/logger"
)

const (
	TaskTypeAssignRouters = "router:assign"
	TaskTypeRenewPresence = "presence:renew"
)

// Task is a unit of deferred work triggered by a graph mutation. The
// triggering request never blocks on it.
type Task struct {
	Type    string `json:"type"`
	StageID string `json:"stage_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// TaskQueue defers router assignment and presence renewal off the request
// path.
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *Task) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue builds the queue from config: Redis-backed asynq when
// enabled and reachable, otherwise an in-process fallback.
func NewTaskQueue(cfg *config.Config, processor func(context.Context, *Task) error) TaskQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncQueue(&cfg.Redis)
		if err != nil {
			logger.Infof("[TaskQueue] Redis unavailable, falling back to in-process mode: %v", err)
			return NewSyncQueue(processor)
		}
		logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
		return queue
	}
	logger.Infof("[TaskQueue] In-process queue initialized (Redis disabled)")
	return NewSyncQueue(processor)
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Test connection by pinging Redis
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	_, err := inspector.Queues()
	if err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds a task to the async queue
func (q *AsyncQueue) Enqueue(task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(task.Type, payload)
	_, err = q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	return err
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue runs tasks in fire-and-forget goroutines of this process.
type SyncQueue struct {
	processor func(context.Context, *Task) error
}

func NewSyncQueue(processor func(context.Context, *Task) error) *SyncQueue {
	return &SyncQueue{processor: processor}
}

func (q *SyncQueue) Enqueue(task *Task) error {
	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Errorf("[TaskQueue] Task %s failed: %v", task.Type, err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error { return nil }
