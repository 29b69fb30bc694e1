package queue

import (
	"fmt"
	"time"

	"tmplhub/internal/domain/template"

	"github.com/hibiken/asynq"
)

// QueueMigrations is the queue legacy migration tasks run on.
const QueueMigrations = "migrations"

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int, retryDelay time.Duration) *asynq.Server {
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueMigrations: 5,
				"default":       1,
			},
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				// Exponential backoff from retryDelay, capped at 32x.
				if n > 6 {
					n = 6
				}
				return retryDelay * time.Duration(1<<uint(n-1))
			},
		},
	)
}

// Enqueuer adapts the asynq client to template.MigrationEnqueuer.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

// NewEnqueuer creates a new migration enqueuer.
func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

// EnqueueMigrateLegacy enqueues a legacy migration task and returns its id.
func (e *Enqueuer) EnqueueMigrateLegacy(p template.MigrateLegacyPayload) (string, error) {
	return EnqueueMigrateLegacy(e.client, p, e.maxRetry)
}

// EnqueueMigrateLegacy enqueues a legacy migration task.
func EnqueueMigrateLegacy(client *asynq.Client, p template.MigrateLegacyPayload, maxRetry int) (string, error) {
	task, err := template.NewMigrateLegacyTask(p)
	if err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}

	info, err := client.Enqueue(task,
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueMigrations),
	)
	if err != nil {
		return "", fmt.Errorf("enqueuing task: %w", err)
	}

	return info.ID, nil
}
