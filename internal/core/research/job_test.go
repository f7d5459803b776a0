package research

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boatresearch/internal/core/specs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fiber's app.Test starts fasthttp's process-wide date ticker, which never exits.
var ignoreServerDate = goleak.IgnoreAnyFunction("github.com/valyala/fasthttp.updateServerDate.func1")

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) notify(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func waitForStatus(t *testing.T, j *Job, status Status) Snapshot {
	t.Helper()
	var s Snapshot
	require.Eventually(t, func() bool {
		s = j.Snapshot()
		return s.Status == status
	}, 2*time.Second, time.Millisecond)
	return s
}

func TestJob_AwaitAndResume(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreServerDate)

	rec := &recorder{}
	j := newJob(1, "run", time.Now(), rec.notify)
	cands := []specs.Candidate{{ModelName: "Catalina 42", Slug: "catalina-42", Recommended: true}}

	got := make(chan *string, 1)
	go func() {
		slug, err := j.awaitSpecs(context.Background(), cands)
		assert.NoError(t, err)
		got <- slug
	}()

	s := waitForStatus(t, j, StatusWaitingForInput)
	assert.Equal(t, StepSpecs, s.Step)
	require.Len(t, s.Candidates, 1)
	assert.True(t, s.Candidates[0].Recommended)

	assert.False(t, j.resumeWith(SelectReviews, selection{}), "wrong kind")
	assert.True(t, j.resumeWith(SelectSpecs, selection{slug: strp("catalina-42")}))
	assert.False(t, j.resumeWith(SelectSpecs, selection{slug: strp("other")}), "handle is consumed")

	slug := <-got
	require.NotNil(t, slug)
	assert.Equal(t, "catalina-42", *slug)

	s = j.Snapshot()
	assert.Equal(t, StatusRunning, s.Status)
	assert.Empty(t, s.Candidates)

	snaps := rec.all()
	require.Len(t, snaps, 2)
	assert.Equal(t, StatusWaitingForInput, snaps[0].Status)
	assert.Equal(t, StatusRunning, snaps[1].Status)
}

func TestJob_AwaitEndsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreServerDate)

	j := newJob(1, "run", time.Now(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := j.awaitReviews(ctx, []ReviewCandidate{{URL: "https://r.test"}})
		done <- err
	}()
	waitForStatus(t, j, StatusWaitingForInput)
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, errShutdown))
}

func TestJob_ResumeIgnoredWhenNotWaiting(t *testing.T) {
	j := newJob(1, "run", time.Now(), nil)
	assert.False(t, j.resumeWith(SelectSpecs, selection{}))

	j.fail("boom", time.Now())
	assert.False(t, j.resumeWith(SelectSpecs, selection{}))
	s := j.Snapshot()
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "boom", s.ErrorMessage)
	assert.Equal(t, StepNone, s.Step)
}

func TestJob_TerminalStates(t *testing.T) {
	start := time.Now()
	j := newJob(1, "run", start, nil)
	assert.True(t, j.active())
	j.setStep(StepModel)
	assert.Equal(t, StepModel, j.Snapshot().Step)

	j.complete(start.Add(time.Minute))
	assert.False(t, j.active())
	assert.True(t, j.finishedBefore(start.Add(2*time.Minute)))
	assert.False(t, j.finishedBefore(start))
	assert.Equal(t, StepNone, j.Snapshot().Step)
}

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, StatusRunning.Active())
	assert.True(t, StatusWaitingForInput.Active())
	assert.False(t, StatusPending.Active())
	assert.False(t, StatusComplete.Active())
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusWaitingForInput.Terminal())
}
