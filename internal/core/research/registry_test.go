package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"boatresearch/internal/core/listing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// tableStore serves listings and records only.
type tableStore struct {
	mu        sync.Mutex
	listings  map[int64]*listing.Listing
	records   map[int64]ListingResearch
	upsertErr error
}

func newTableStore(ids ...int64) *tableStore {
	s := &tableStore{listings: map[int64]*listing.Listing{}, records: map[int64]ListingResearch{}}
	for _, id := range ids {
		s.listings[id] = &listing.Listing{ID: id, LinkURL: fmt.Sprintf("https://yw.test/%d", id)}
	}
	return s
}

func (s *tableStore) GetListing(_ context.Context, id int64) (*listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.listings[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %d", listing.ErrNotFound, id)
}

func (s *tableStore) GetResearchRecord(_ context.Context, id int64) (*ListingResearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *tableStore) UpsertResearchRecord(_ context.Context, id int64, u RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	r := s.records[id]
	r.ListingID = id
	r.Apply(u, time.Now())
	s.records[id] = r
	return nil
}

func (s *tableStore) FindModelResearch(context.Context, ModelKey) (*ModelResearch, error) {
	return nil, nil
}

func (s *tableStore) FindLatestModelResearch(context.Context, string, string) (*ModelResearch, error) {
	return nil, nil
}

func (s *tableStore) CreateModelResearch(_ context.Context, m ModelResearch) (*ModelResearch, bool, error) {
	return &m, true, nil
}

func (s *tableStore) UpdateModelResearch(context.Context, string, ModelUpdate) error { return nil }

func (s *tableStore) FindSearchKeyMapping(context.Context, string) (*SearchKeyMapping, error) {
	return nil, nil
}

func (s *tableStore) CreateSearchKeyMapping(context.Context, SearchKeyMapping) (bool, error) {
	return true, nil
}

// pausingRunner parks every job on a specs selection and completes it once
// resumed; shutdown fails it.
type pausingRunner struct{}

func (pausingRunner) Run(ctx context.Context, job *Job, _ *listing.Listing) {
	if _, err := job.awaitSpecs(ctx, nil); err != nil {
		job.fail(err.Error(), time.Now())
		return
	}
	job.complete(time.Now())
}

func newTestRegistry(t *testing.T, store Store, opts RegistryOptions) *Registry {
	t.Helper()
	r := NewRegistry(store, pausingRunner{}, NewPublisher(), opts)
	t.Cleanup(r.Close)
	return r
}

func waitForListing(t *testing.T, r *Registry, id int64, status Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Status(id).Status == status
	}, 2*time.Second, time.Millisecond)
}

func TestRegistry_StartAndComplete(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreServerDate)

	store := newTableStore(1)
	r := NewRegistry(store, pausingRunner{}, NewPublisher(), RegistryOptions{})

	snap, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.NotEmpty(t, snap.RunID)

	rec, err := store.GetResearchRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, RecordRunning, rec.Status)

	waitForListing(t, r, 1, StatusWaitingForInput)
	assert.Equal(t, 1, r.ActiveCount())
	require.True(t, r.SelectSpecs(1, nil))
	waitForListing(t, r, 1, StatusComplete)
	assert.Zero(t, r.ActiveCount())

	r.Close()
}

func TestRegistry_UnknownListing(t *testing.T) {
	r := newTestRegistry(t, newTableStore(), RegistryOptions{})
	_, err := r.Start(context.Background(), 42)
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.Equal(t, StatusPending, r.Status(42).Status)
}

func TestRegistry_RejectsSecondRunForSameListing(t *testing.T) {
	r := newTestRegistry(t, newTableStore(1), RegistryOptions{})
	_, err := r.Start(context.Background(), 1)
	require.NoError(t, err)

	_, err = r.Start(context.Background(), 1)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRegistry_ConcurrencyCeiling(t *testing.T) {
	r := newTestRegistry(t, newTableStore(1, 2, 3, 4), RegistryOptions{})
	for id := int64(1); id <= 3; id++ {
		_, err := r.Start(context.Background(), id)
		require.NoError(t, err)
	}
	_, err := r.Start(context.Background(), 4)
	assert.ErrorIs(t, err, ErrTooManyConcurrent)

	waitForListing(t, r, 2, StatusWaitingForInput)
	require.True(t, r.SelectSpecs(2, nil))
	waitForListing(t, r, 2, StatusComplete)

	_, err = r.Start(context.Background(), 4)
	assert.NoError(t, err)
}

func TestRegistry_RestartAfterTerminal(t *testing.T) {
	r := newTestRegistry(t, newTableStore(1), RegistryOptions{})
	first, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	waitForListing(t, r, 1, StatusWaitingForInput)
	require.True(t, r.SelectSpecs(1, nil))
	waitForListing(t, r, 1, StatusComplete)

	second, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRegistry_SelectWithoutPendingStage(t *testing.T) {
	r := newTestRegistry(t, newTableStore(1), RegistryOptions{})
	assert.False(t, r.SelectSpecs(1, nil))
	assert.False(t, r.SelectReviews(1, []string{"https://r.test"}))

	_, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	waitForListing(t, r, 1, StatusWaitingForInput)
	assert.False(t, r.SelectForums(1, nil))
	assert.True(t, r.SelectSpecs(1, strp("")))
}

func TestRegistry_UpsertFailureFailsTheJob(t *testing.T) {
	store := newTableStore(1)
	store.upsertErr = errors.New("disk full")
	r := newTestRegistry(t, store, RegistryOptions{})

	_, err := r.Start(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, r.Status(1).Status)
	assert.Zero(t, r.ActiveCount())
}

func TestRegistry_CloseFailsPausedJobs(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreServerDate)

	r := NewRegistry(newTableStore(1), pausingRunner{}, NewPublisher(), RegistryOptions{})
	_, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	waitForListing(t, r, 1, StatusWaitingForInput)

	r.Close()
	s := r.Status(1)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, errShutdown.Error(), s.ErrorMessage)

	_, err = r.Start(context.Background(), 1)
	assert.ErrorIs(t, err, errShutdown)
}

func TestRegistry_EvictsFinishedJobsWithoutListeners(t *testing.T) {
	r := newTestRegistry(t, newTableStore(1, 2), RegistryOptions{Retention: time.Minute})
	now := time.Now()
	r.now = func() time.Time { return now }

	_, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	waitForListing(t, r, 1, StatusWaitingForInput)
	require.True(t, r.SelectSpecs(1, nil))
	waitForListing(t, r, 1, StatusComplete)

	r.now = func() time.Time { return now.Add(time.Hour) }
	_, err = r.Start(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status(1).Status)
}

func TestRegistry_KeepsWatchedFinishedJobs(t *testing.T) {
	r := newTestRegistry(t, newTableStore(1, 2), RegistryOptions{Retention: time.Minute})
	now := time.Now()
	r.now = func() time.Time { return now }

	_, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	unsub := r.Subscribe(1, func(Snapshot) error { return nil })
	defer unsub()
	waitForListing(t, r, 1, StatusWaitingForInput)
	require.True(t, r.SelectSpecs(1, nil))
	waitForListing(t, r, 1, StatusComplete)

	r.now = func() time.Time { return now.Add(time.Hour) }
	_, err = r.Start(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, r.Status(1).Status)
}
