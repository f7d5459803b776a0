package job

import (
	"context"
	"errors"
	"fmt"

	rds "boatresearch/internal/platform/redis"

	redisv8 "github.com/go-redis/redis/v8"
)

var ErrNotFound = errors.New("job not found")

type JobService struct{ redis *rds.Service }

func NewJobService(redis *rds.Service) *JobService { return &JobService{redis: redis} }

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.redis.CacheGet(ctx, key(jobID), &job); err != nil {
		if errors.Is(err, redisv8.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		return nil, err
	}
	return &job, nil
}

func (s *JobService) store(ctx context.Context, j Job) error {
	if err := s.redis.CacheSet(ctx, key(j.JobID), j, ttl(j.Status)); err != nil {
		return err
	}
	// Listeners only need to know something changed.
	_ = s.redis.Client().Publish(ctx, key(j.JobID), "updated").Err()
	return nil
}

func (s *JobService) InitPending(ctx context.Context, jobID string, jobType Type, fileName string) error {
	j := Job{JobID: jobID, Type: jobType, Status: StatusPending}
	if jobType == TypeIngest {
		j.Results.IngestResult = &IngestResult{FileName: fileName}
	}
	return s.store(ctx, j)
}

func (s *JobService) SetProcessing(ctx context.Context, jobID string, jobType Type) error {
	j := Job{JobID: jobID, Type: jobType, Status: StatusProcessing}
	if prev, err := s.GetJobStatus(ctx, jobID); err == nil {
		j.Results = prev.Results
	}
	return s.store(ctx, j)
}

func (s *JobService) Complete(ctx context.Context, jobID string, jobType Type, result JobResult) error {
	return s.store(ctx, Job{JobID: jobID, Type: jobType, Status: StatusCompleted, Results: result})
}

func (s *JobService) Fail(ctx context.Context, jobID string, jobType Type, cause error) error {
	j := Job{JobID: jobID, Type: jobType, Status: StatusFailed, Error: cause.Error()}
	if prev, err := s.GetJobStatus(ctx, jobID); err == nil {
		j.Results = prev.Results
	}
	return s.store(ctx, j)
}

func key(id string) string { return "job:" + id }

func ttl(s Status) int {
	if s == StatusCompleted || s == StatusFailed {
		return 3600
	}
	return 600
}
