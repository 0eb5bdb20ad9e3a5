package jobstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atomizehq/atomizer/internal/domain"
)

// Store holds processing jobs. Update applies its mutation atomically with
// respect to other Updates on the same store, so workflow operations never
// interleave mid-transition.
type Store interface {
	Create(ctx context.Context, job *domain.ProcessingJob) error
	Get(ctx context.Context, jobID string) (*domain.ProcessingJob, error)
	Update(ctx context.Context, jobID string, fn func(*domain.ProcessingJob) error) (*domain.ProcessingJob, error)
	List(ctx context.Context) ([]*domain.ProcessingJob, error)
	Delete(ctx context.Context, jobID string) error
}

// cloneJob deep-copies a job through its JSON form. Jobs hold a pointer-rich
// tree; handing callers the stored instance would let them mutate it outside
// Update.
func cloneJob(job *domain.ProcessingJob) (*domain.ProcessingJob, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("clone job: %w", err)
	}
	var out domain.ProcessingJob
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone job: %w", err)
	}
	return &out, nil
}
