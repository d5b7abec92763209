package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kirychukyurii/gridsynapse/internal/config"
	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/util"
)

// etcd key layout under the configured prefix
const (
	jobsDir     = "/jobs/"
	queueDir    = "/queue/"
	scheduleDir = "/schedule/"
)

// EtcdStore implements Store on etcd. TTLs are attached through leases and
// queue items are claimed with a compare-and-delete transaction, so several
// replicas can share one queue.
type EtcdStore struct {
	client    *clientv3.Client
	prefix    string
	endpoints []string
	logger    *slog.Logger
}

// NewEtcdStore creates a new etcd backed store
func NewEtcdStore(cfg config.EtcdConfig, logger *slog.Logger) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("no etcd endpoints configured")
	}

	etcdCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	}

	// Configure TLS if provided
	if cfg.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		etcdCfg.TLS = tlsConfig
	}

	client, err := clientv3.New(etcdCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	s := &EtcdStore{
		client:    client,
		prefix:    strings.TrimSuffix(cfg.Prefix, "/"),
		endpoints: cfg.Endpoints,
		logger:    logger,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to etcd cluster",
		slog.Any("endpoints", cfg.Endpoints),
		slog.String("prefix", s.prefix),
	)

	return s, nil
}

func (s *EtcdStore) jobKey(id string) string {
	return s.prefix + jobsDir + id
}

func (s *EtcdStore) queuePrefix() string {
	return s.prefix + queueDir
}

func (s *EtcdStore) scheduleKey(jobID string) string {
	return s.prefix + scheduleDir + jobID
}

// Name implements Store
func (s *EtcdStore) Name() string {
	return "etcd"
}

// put writes value under key, attached to a fresh lease when ttl is positive
func (s *EtcdStore) put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	var opts []clientv3.OpOption
	if ttl > 0 {
		seconds := int64(ttl / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		lease, err := s.client.Grant(ctx, seconds)
		if err != nil {
			return fmt.Errorf("failed to grant lease for %s: %w", key, err)
		}
		opts = append(opts, clientv3.WithLease(lease.ID))
	}

	if _, err := s.client.Put(ctx, key, string(data), opts...); err != nil {
		return fmt.Errorf("failed to write %s to etcd: %w", key, err)
	}
	return nil
}

// get reads key into out and reports whether it exists
func (s *EtcdStore) get(ctx context.Context, key string, out any) (bool, error) {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s from etcd: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(resp.Kvs[0].Value, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Enqueue implements JobQueue. Items are keyed by a random id; queue order
// is the cluster wide create revision of the key, not any local clock.
func (s *EtcdStore) Enqueue(ctx context.Context, jobID string) (int64, error) {
	for {
		key := s.queuePrefix() + uuid.NewString()
		resp, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, jobID)).
			Commit()
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
		}
		if resp.Succeeded {
			break
		}
	}

	s.logger.Debug("enqueued job", slog.String("job_id", jobID))

	return s.Len(ctx)
}

// Pop implements JobQueue. The item with the lowest create revision is
// deleted only if it was not modified since it was read; a lost race
// retries with the next item.
func (s *EtcdStore) Pop(ctx context.Context) (string, error) {
	for {
		resp, err := s.client.Get(ctx, s.queuePrefix(),
			clientv3.WithPrefix(),
			clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortAscend),
			clientv3.WithLimit(1),
		)
		if err != nil {
			return "", fmt.Errorf("failed to read job queue: %w", err)
		}
		if len(resp.Kvs) == 0 {
			return "", ErrQueueEmpty
		}

		kv := resp.Kvs[0]
		key := string(kv.Key)

		txn, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)).
			Then(clientv3.OpDelete(key)).
			Commit()
		if err != nil {
			return "", fmt.Errorf("failed to claim queue item %s: %w", key, err)
		}
		if txn.Succeeded {
			return string(kv.Value), nil
		}
	}
}

// Len implements JobQueue
func (s *EtcdStore) Len(ctx context.Context) (int64, error) {
	resp, err := s.client.Get(ctx, s.queuePrefix(), clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return 0, fmt.Errorf("failed to count job queue: %w", err)
	}
	return resp.Count, nil
}

// PutJob implements JobStore
func (s *EtcdStore) PutJob(ctx context.Context, job *model.Job, ttl time.Duration) error {
	return s.put(ctx, s.jobKey(job.ID), job, ttl)
}

// GetJob implements JobStore
func (s *EtcdStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	found, err := s.get(ctx, s.jobKey(id), &job)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// PutSchedule implements ScheduleStore
func (s *EtcdStore) PutSchedule(ctx context.Context, record *model.ScheduleRecord, ttl time.Duration) error {
	return s.put(ctx, s.scheduleKey(record.JobID), record, ttl)
}

// GetSchedule implements ScheduleStore
func (s *EtcdStore) GetSchedule(ctx context.Context, jobID string) (*model.ScheduleRecord, error) {
	var record model.ScheduleRecord
	found, err := s.get(ctx, s.scheduleKey(jobID), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrScheduleNotFound
	}
	return &record, nil
}

// Ping implements Store
func (s *EtcdStore) Ping(ctx context.Context) error {
	if _, err := s.client.Status(ctx, s.endpoints[0]); err != nil {
		return fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return nil
}

// Close closes the etcd client connection
func (s *EtcdStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
