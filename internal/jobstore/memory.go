package jobstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atomizehq/atomizer/internal/domain"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
)

// MemoryStore is the default single-process backend.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ProcessingJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: map[string]*domain.ProcessingJob{}}
}

func (s *MemoryStore) Create(ctx context.Context, job *domain.ProcessingJob) error {
	stored, err := cloneJob(job)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("job %s: %w", job.JobID, apperrors.ErrInvalidArgument)
	}
	s.jobs[job.JobID] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	return cloneJob(job)
}

func (s *MemoryStore) Update(ctx context.Context, jobID string, fn func(*domain.ProcessingJob) error) (*domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}

	// Mutate a copy so a failing fn leaves the stored job untouched.
	working, err := cloneJob(job)
	if err != nil {
		return nil, err
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = working

	return cloneJob(working)
}

func (s *MemoryStore) List(ctx context.Context) ([]*domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ProcessingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		clone, err := cloneJob(job)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	delete(s.jobs, jobID)
	return nil
}
