package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"boatresearch/internal/core/listing"
	"boatresearch/internal/logger"

	"github.com/google/uuid"
)

const DefaultMaxConcurrent = 3

// JobRunner drives one job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, job *Job, l *listing.Listing)
}

type RegistryOptions struct {
	MaxConcurrent int
	// Retention is how long a finished job without listeners stays visible.
	Retention time.Duration
}

// Registry owns the in-memory jobs and admits new runs.
type Registry struct {
	log       *logger.Logger
	store     Store
	runner    JobRunner
	publisher *Publisher
	opts      RegistryOptions
	now       func() time.Time

	mu   sync.Mutex
	jobs map[int64]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(store Store, runner JobRunner, publisher *Publisher, opts RegistryOptions) *Registry {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		log:       logger.New("ResearchRegistry"),
		store:     store,
		runner:    runner,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		jobs:      make(map[int64]*Job),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start admits a research run for listingID and launches its pipeline in the
// background. The returned snapshot is the job's state at admission.
func (r *Registry) Start(ctx context.Context, listingID int64) (Snapshot, error) {
	if err := r.ctx.Err(); err != nil {
		return Snapshot{}, errShutdown
	}
	l, err := r.store.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			return Snapshot{}, ErrEntityNotFound
		}
		return Snapshot{}, fmt.Errorf("load listing %d: %w", listingID, err)
	}

	job, err := r.admit(listingID)
	if err != nil {
		return Snapshot{}, err
	}

	if err := r.store.UpsertResearchRecord(ctx, listingID, RecordUpdate{Status: RecordRunning, ClearError: true}); err != nil {
		job.fail(err.Error(), r.now())
		return Snapshot{}, fmt.Errorf("persist research record: %w", err)
	}

	r.log.LogInfof("starting research for listing %d (run %s)", listingID, job.runID)
	snap := job.Snapshot()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runner.Run(r.ctx, job, l)
	}()
	return snap, nil
}

func (r *Registry) admit(listingID int64) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()

	if existing, ok := r.jobs[listingID]; ok && existing.active() {
		return nil, ErrAlreadyRunning
	}
	active := 0
	for _, j := range r.jobs {
		if j.active() {
			active++
		}
	}
	if active >= r.opts.MaxConcurrent {
		return nil, ErrTooManyConcurrent
	}

	job := newJob(listingID, uuid.New().String(), r.now(), r.publisher.Publish)
	r.jobs[listingID] = job
	return job, nil
}

// evictLocked drops finished jobs that nobody is watching anymore.
func (r *Registry) evictLocked() {
	cutoff := r.now().Add(-r.opts.Retention)
	for id, j := range r.jobs {
		if j.finishedBefore(cutoff) && r.publisher.Count(id) == 0 {
			delete(r.jobs, id)
		}
	}
}

// Status returns the job snapshot, or a pending one when no job exists.
func (r *Registry) Status(listingID int64) Snapshot {
	if j := r.job(listingID); j != nil {
		return j.Snapshot()
	}
	return pendingSnapshot(listingID)
}

// ActiveCount returns the number of running or paused jobs.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.active() {
			n++
		}
	}
	return n
}

func (r *Registry) job(listingID int64) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[listingID]
}

// SelectSpecs resumes a job waiting for a specs choice. A nil or empty slug
// means none of the candidates match.
func (r *Registry) SelectSpecs(listingID int64, slug *string) bool {
	if slug != nil && *slug == "" {
		slug = nil
	}
	return r.resume(listingID, SelectSpecs, selection{slug: slug})
}

func (r *Registry) SelectReviews(listingID int64, urls []string) bool {
	return r.resume(listingID, SelectReviews, selection{urls: urls})
}

func (r *Registry) SelectForums(listingID int64, urls []string) bool {
	return r.resume(listingID, SelectForums, selection{urls: urls})
}

func (r *Registry) resume(listingID int64, kind SelectionKind, sel selection) bool {
	j := r.job(listingID)
	if j == nil {
		return false
	}
	return j.resumeWith(kind, sel)
}

// Subscribe registers fn for live snapshots of listingID.
func (r *Registry) Subscribe(listingID int64, fn Listener) func() {
	return r.publisher.Subscribe(listingID, fn)
}

// Close stops admitting jobs, fails paused ones and waits for every
// pipeline to return.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}
