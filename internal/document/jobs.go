package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/waterreg/registry-server/internal/system/config"
)

// JobState is the lifecycle state of a generation job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job is the tracked state of the PDF generation of one request.
type Job struct {
	RequestID  string    `json:"requestId"`
	State      JobState  `json:"state"`
	Attempts   int       `json:"attempts"`
	Children   int       `json:"children"`
	Error      string    `json:"error,omitempty"`
	File       string    `json:"file,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// JobTracker stores job state. Missing jobs are returned as nil.
type JobTracker interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, requestID string) (*Job, error)
}

func jobKey(requestID string) string {
	return "jobs:requests:" + requestID
}

// RedisJobTracker keeps job state in Redis with a TTL.
type RedisJobTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient creates the client used by the tracker.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisJobTracker(rdb *redis.Client, ttl time.Duration) *RedisJobTracker {
	return &RedisJobTracker{rdb: rdb, ttl: ttl}
}

func (t *RedisJobTracker) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := t.rdb.Set(ctx, jobKey(job.RequestID), data, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.RequestID, err)
	}
	return nil
}

func (t *RedisJobTracker) Get(ctx context.Context, requestID string) (*Job, error) {
	data, err := t.rdb.Get(ctx, jobKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", requestID, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", requestID, err)
	}
	return &job, nil
}

// MemoryJobTracker keeps job state in process. It serves the CLI and setups without Redis.
type MemoryJobTracker struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobTracker() *MemoryJobTracker {
	return &MemoryJobTracker{jobs: make(map[string]Job)}
}

func (t *MemoryJobTracker) Save(_ context.Context, job *Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[job.RequestID] = *job
	return nil
}

func (t *MemoryJobTracker) Get(_ context.Context, requestID string) (*Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[requestID]
	if !ok {
		return nil, nil
	}
	return &job, nil
}
