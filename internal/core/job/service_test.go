package job

import (
	"context"
	"errors"
	"testing"
	"time"

	rds "boatresearch/internal/platform/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*JobService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := rds.New(rds.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return NewJobService(r), mr
}

func TestJobService_Lifecycle(t *testing.T) {
	s, mr := newService(t)
	ctx := context.Background()

	require.NoError(t, s.InitPending(ctx, "j1", TypeIngest, "batch.jsonl"))
	j, err := s.GetJobStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status)
	require.NotNil(t, j.Results.IngestResult)
	assert.Equal(t, "batch.jsonl", j.Results.IngestResult.FileName)
	assert.Equal(t, 600*time.Second, mr.TTL("job:j1"))

	require.NoError(t, s.SetProcessing(ctx, "j1", TypeIngest))
	j, err = s.GetJobStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, j.Status)
	assert.Equal(t, "batch.jsonl", j.Results.IngestResult.FileName)

	res := JobResult{IngestResult: &IngestResult{FileName: "batch.jsonl", Total: 3, Inserted: 2, Errors: 1}}
	require.NoError(t, s.Complete(ctx, "j1", TypeIngest, res))
	j, err = s.GetJobStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 2, j.Results.IngestResult.Inserted)
	assert.Equal(t, time.Hour, mr.TTL("job:j1"))
}

func TestJobService_FailKeepsResults(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, s.InitPending(ctx, "j2", TypeIngest, "bad.jsonl"))
	require.NoError(t, s.Fail(ctx, "j2", TypeIngest, errors.New("read failed")))

	j, err := s.GetJobStatus(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, "read failed", j.Error)
	assert.Equal(t, "bad.jsonl", j.Results.IngestResult.FileName)
}

func TestJobService_UnknownJob(t *testing.T) {
	s, _ := newService(t)
	_, err := s.GetJobStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
