package jobstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/atomizehq/atomizer/internal/domain"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
)

func TestMemoryStoreCreateGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := domain.NewProcessingJob("book.pdf")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, job); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("duplicate create err = %v", err)
	}

	got, err := s.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Filename != "book.pdf" || got.WorkflowStage != domain.StageUploading {
		t.Fatalf("got = %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing get err = %v", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := domain.NewProcessingJob("book.pdf")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := s.Get(ctx, job.JobID)
	first.Message = "mutated outside the store"

	second, _ := s.Get(ctx, job.JobID)
	if second.Message == "mutated outside the store" {
		t.Fatalf("store leaked its internal instance")
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := domain.NewProcessingJob("book.pdf")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := s.Update(ctx, job.JobID, func(j *domain.ProcessingJob) error {
		j.WorkflowStage = domain.StageExtracting
		j.Progress = 0.1
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.WorkflowStage != domain.StageExtracting {
		t.Fatalf("updated = %+v", updated)
	}
	if !updated.UpdatedAt.After(job.UpdatedAt) && !updated.UpdatedAt.Equal(job.UpdatedAt) {
		t.Fatalf("UpdatedAt not refreshed")
	}

	got, _ := s.Get(ctx, job.JobID)
	if got.WorkflowStage != domain.StageExtracting {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestMemoryStoreUpdateFailureLeavesJobUntouched(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := domain.NewProcessingJob("book.pdf")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("gate unmet")
	if _, err := s.Update(ctx, job.JobID, func(j *domain.ProcessingJob) error {
		j.WorkflowStage = domain.StageCompleted
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	got, _ := s.Get(ctx, job.JobID)
	if got.WorkflowStage != domain.StageUploading {
		t.Fatalf("failed update mutated the job: %+v", got)
	}
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := domain.NewProcessingJob("book.pdf")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, job.JobID, func(j *domain.ProcessingJob) error {
				j.Progress += 0.01
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, job.JobID)
	if got.Progress < 0.49 || got.Progress > 0.51 {
		t.Fatalf("lost updates, progress = %v", got.Progress)
	}
}

func TestMemoryStoreListAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := domain.NewProcessingJob("a.pdf")
	b := domain.NewProcessingJob("b.pdf")
	_ = s.Create(ctx, a)
	_ = s.Create(ctx, b)

	jobs, err := s.List(ctx)
	if err != nil || len(jobs) != 2 {
		t.Fatalf("List = %d, err %v", len(jobs), err)
	}

	if err := s.Delete(ctx, a.JobID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, a.JobID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("double delete err = %v", err)
	}
	jobs, _ = s.List(ctx)
	if len(jobs) != 1 || jobs[0].JobID != b.JobID {
		t.Fatalf("remaining = %+v", jobs)
	}
}
