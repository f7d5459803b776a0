package research

import (
	"context"
	"sync"
	"time"

	"boatresearch/internal/core/specs"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusWaitingForInput Status = "waiting_for_input"
	StatusComplete        Status = "complete"
	StatusFailed          Status = "failed"
)

// Active reports whether s counts against the concurrency ceiling.
func (s Status) Active() bool { return s == StatusRunning || s == StatusWaitingForInput }

func (s Status) Terminal() bool { return s == StatusComplete || s == StatusFailed }

// Step names the pipeline stage a job is in.
type Step string

const (
	StepNone    Step = ""
	StepListing Step = "listing"
	StepSpecs   Step = "specs"
	StepModel   Step = "model"
	StepReviews Step = "reviews"
	StepForums  Step = "forums"
)

// SelectionKind tags what a paused job is waiting for.
type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectSpecs
	SelectReviews
	SelectForums
)

func (k SelectionKind) step() Step {
	switch k {
	case SelectSpecs:
		return StepSpecs
	case SelectReviews:
		return StepReviews
	case SelectForums:
		return StepForums
	}
	return StepNone
}

type ReviewCandidate struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

type ForumCandidate struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

type ReviewResult struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

type ForumResult struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// Snapshot is the externally visible state of a job.
type Snapshot struct {
	ListingID        int64             `json:"listing_id"`
	RunID            string            `json:"run_id,omitempty"`
	Status           Status            `json:"status"`
	Step             Step              `json:"step,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	Candidates       []specs.Candidate `json:"candidates,omitempty"`
	ReviewCandidates []ReviewCandidate `json:"review_candidates,omitempty"`
	ForumCandidates  []ForumCandidate  `json:"forum_candidates,omitempty"`
}

func pendingSnapshot(listingID int64) Snapshot {
	return Snapshot{ListingID: listingID, Status: StatusPending}
}

// selection is what a human submits to resume a paused stage.
type selection struct {
	slug *string
	urls []string
}

// Job is the in-memory state machine of one research run. Only the pipeline
// goroutine drives transitions; resume is the one call made from outside.
type Job struct {
	mu sync.Mutex

	listingID  int64
	runID      string
	status     Status
	step       Step
	errMessage string

	pending          SelectionKind
	candidates       []specs.Candidate
	reviewCandidates []ReviewCandidate
	forumCandidates  []ForumCandidate
	resume           chan selection

	startedAt  time.Time
	finishedAt time.Time

	notify func(Snapshot)
}

func newJob(listingID int64, runID string, now time.Time, notify func(Snapshot)) *Job {
	if notify == nil {
		notify = func(Snapshot) {}
	}
	return &Job{
		listingID: listingID,
		runID:     runID,
		status:    StatusRunning,
		startedAt: now,
		notify:    notify,
	}
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() Snapshot {
	s := Snapshot{
		ListingID:    j.listingID,
		RunID:        j.runID,
		Status:       j.status,
		Step:         j.step,
		ErrorMessage: j.errMessage,
	}
	if j.status == StatusWaitingForInput {
		s.Candidates = append([]specs.Candidate(nil), j.candidates...)
		s.ReviewCandidates = append([]ReviewCandidate(nil), j.reviewCandidates...)
		s.ForumCandidates = append([]ForumCandidate(nil), j.forumCandidates...)
	}
	return s
}

// transition applies fn under the lock and publishes the resulting snapshot.
func (j *Job) transition(fn func()) {
	j.mu.Lock()
	fn()
	s := j.snapshotLocked()
	j.mu.Unlock()
	j.notify(s)
}

func (j *Job) setStep(step Step) {
	j.transition(func() { j.step = step })
}

func (j *Job) complete(now time.Time) {
	j.transition(func() {
		j.status = StatusComplete
		j.step = StepNone
		j.finishedAt = now
	})
}

func (j *Job) fail(msg string, now time.Time) {
	j.transition(func() {
		j.status = StatusFailed
		j.errMessage = msg
		j.step = StepNone
		j.clearPendingLocked()
		j.finishedAt = now
	})
}

func (j *Job) clearPendingLocked() {
	j.pending = SelectNone
	j.candidates, j.reviewCandidates, j.forumCandidates = nil, nil, nil
	j.resume = nil
}

// await pauses the job for a selection of kind and blocks until resume
// delivers one or ctx ends.
func (j *Job) await(ctx context.Context, kind SelectionKind, set func()) (selection, error) {
	ch := make(chan selection, 1)
	j.transition(func() {
		j.status = StatusWaitingForInput
		j.step = kind.step()
		j.pending = kind
		set()
		j.resume = ch
	})

	select {
	case sel := <-ch:
		// resume already moved the job back to running.
		j.notify(j.Snapshot())
		return sel, nil
	case <-ctx.Done():
		return selection{}, errShutdown
	}
}

func (j *Job) awaitSpecs(ctx context.Context, cands []specs.Candidate) (*string, error) {
	sel, err := j.await(ctx, SelectSpecs, func() { j.candidates = cands })
	return sel.slug, err
}

func (j *Job) awaitReviews(ctx context.Context, cands []ReviewCandidate) ([]string, error) {
	sel, err := j.await(ctx, SelectReviews, func() { j.reviewCandidates = cands })
	return sel.urls, err
}

func (j *Job) awaitForums(ctx context.Context, cands []ForumCandidate) ([]string, error) {
	sel, err := j.await(ctx, SelectForums, func() { j.forumCandidates = cands })
	return sel.urls, err
}

// resumeWith hands sel to the paused stage if the job is waiting for kind.
// The handle is consumed, so a second call returns false.
func (j *Job) resumeWith(kind SelectionKind, sel selection) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusWaitingForInput || j.pending != kind || j.resume == nil {
		return false
	}
	ch := j.resume
	j.clearPendingLocked()
	j.status = StatusRunning
	j.step = kind.step()
	ch <- sel
	return true
}

func (j *Job) finishedBefore(t time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.Terminal() && j.finishedAt.Before(t)
}

func (j *Job) active() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.Active()
}
