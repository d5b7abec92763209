package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirychukyurii/gridsynapse/internal/config"
	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/util"
)

// redis key layout shared with the job submission layer
const (
	redisJobPrefix      = "job:"
	redisQueueKey       = "job_queue"
	redisSchedulePrefix = "schedule:"
)

// RedisStore implements Store on redis. The queue is a list fed with LPUSH
// and drained with RPOP, which is atomic per item.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a new redis backed store
func NewRedisStore(cfg config.RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	if cfg.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	s := &RedisStore{
		client: redis.NewClient(opts),
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		s.client.Close()
		return nil, err
	}

	logger.Info("connected to redis", slog.String("addr", cfg.Addr), slog.Int("db", cfg.DB))

	return s, nil
}

// Name implements Store
func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if ttl > 0 {
		err = s.client.SetEx(ctx, key, data, ttl).Err()
	} else {
		err = s.client.Set(ctx, key, data, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", key, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s from redis: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Enqueue implements JobQueue
func (s *RedisStore) Enqueue(ctx context.Context, jobID string) (int64, error) {
	length, err := s.client.LPush(ctx, redisQueueKey, jobID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return length, nil
}

// Pop implements JobQueue
func (s *RedisStore) Pop(ctx context.Context) (string, error) {
	id, err := s.client.RPop(ctx, redisQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop job queue: %w", err)
	}
	return id, nil
}

// Len implements JobQueue
func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	length, err := s.client.LLen(ctx, redisQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count job queue: %w", err)
	}
	return length, nil
}

// PutJob implements JobStore
func (s *RedisStore) PutJob(ctx context.Context, job *model.Job, ttl time.Duration) error {
	return s.set(ctx, redisJobPrefix+job.ID, job, ttl)
}

// GetJob implements JobStore
func (s *RedisStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	found, err := s.get(ctx, redisJobPrefix+id, &job)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// PutSchedule implements ScheduleStore
func (s *RedisStore) PutSchedule(ctx context.Context, record *model.ScheduleRecord, ttl time.Duration) error {
	return s.set(ctx, redisSchedulePrefix+record.JobID, record, ttl)
}

// GetSchedule implements ScheduleStore
func (s *RedisStore) GetSchedule(ctx context.Context, jobID string) (*model.ScheduleRecord, error) {
	var record model.ScheduleRecord
	found, err := s.get(ctx, redisSchedulePrefix+jobID, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrScheduleNotFound
	}
	return &record, nil
}

// Ping implements Store
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
