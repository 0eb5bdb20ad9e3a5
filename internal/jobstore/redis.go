package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/atomizehq/atomizer/internal/domain"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

// RedisStore persists jobs as JSON blobs so restarts and multiple replicas
// see the same workflow state.
type RedisStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewRedisStore(log *logger.Logger, addr, prefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if prefix == "" {
		prefix = "atomizer:job:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		log:    log.With("service", "RedisJobStore"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (s *RedisStore) key(jobID string) string { return s.prefix + jobID }

func (s *RedisStore) indexKey() string { return s.prefix + "index" }

func (s *RedisStore) Create(ctx context.Context, job *domain.ProcessingJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(job.JobID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s: %w", job.JobID, apperrors.ErrInvalidArgument)
	}
	if err := s.rdb.SAdd(ctx, s.indexKey(), job.JobID).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	raw, err := s.rdb.Get(ctx, s.key(jobID)).Bytes()
	if err == goredis.Nil {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var job domain.ProcessingJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Update runs fn inside a WATCH transaction so concurrent mutations of the
// same job retry instead of clobbering each other.
func (s *RedisStore) Update(ctx context.Context, jobID string, fn func(*domain.ProcessingJob) error) (*domain.ProcessingJob, error) {
	const maxAttempts = 5
	key := s.key(jobID)

	var updated *domain.ProcessingJob
	txn := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == goredis.Nil {
			return fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}

		var job domain.ProcessingJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}
		if err := fn(&job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &job
		return nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txn, key)
		if err == goredis.TxFailedErr {
			s.log.Warn("job update contention, retrying", "job_id", jobID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("job %s: update contention", jobID)
}

func (s *RedisStore) List(ctx context.Context) ([]*domain.ProcessingJob, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}

	out := make([]*domain.ProcessingJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			// Index can lag deletions; skip stale entries.
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	n, err := s.rdb.Del(ctx, s.key(jobID)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	if err := s.rdb.SRem(ctx, s.indexKey(), jobID).Err(); err != nil {
		return fmt.Errorf("redis srem: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
