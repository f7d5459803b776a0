package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"boatresearch/internal/core/browser"
	"boatresearch/internal/core/listing"
	"boatresearch/internal/core/specs"
	"boatresearch/internal/core/websearch"
	"boatresearch/internal/logger"
)

const unknownModelPart = "Unknown"

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// SpecsSource searches the specs site. Fetch failures wrap
// browser.ErrFetchFailed or browser.ErrBotChallenge.
type SpecsSource interface {
	Search(ctx context.Context, keyword string) ([]specs.Candidate, error)
	FetchDetail(ctx context.Context, slug string) (*specs.Specs, error)
}

type WebSearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

type RunnerDeps struct {
	Store           Store
	Fetcher         PageFetcher
	Specs           SpecsSource
	Search          WebSearcher
	ReviewQualifier string
	ForumQualifier  string
}

// Runner executes the research stages for one listing at a time.
type Runner struct {
	log             *logger.Logger
	store           Store
	fetcher         PageFetcher
	specs           SpecsSource
	search          WebSearcher
	reviewQualifier string
	forumQualifier  string
	now             func() time.Time
}

func NewRunner(d RunnerDeps) *Runner {
	if d.ReviewQualifier == "" {
		d.ReviewQualifier = "sailboat review"
	}
	if d.ForumQualifier == "" {
		d.ForumQualifier = "owners forum"
	}
	return &Runner{
		log:             logger.New("ResearchPipeline"),
		store:           d.Store,
		fetcher:         d.Fetcher,
		specs:           d.Specs,
		search:          d.Search,
		reviewQualifier: d.ReviewQualifier,
		forumQualifier:  d.ForumQualifier,
		now:             time.Now,
	}
}

// Run drives job to complete or failed. Errors from storage or parsing abort
// the remaining stages; already committed cache rows are kept.
func (r *Runner) Run(ctx context.Context, job *Job, l *listing.Listing) {
	log := r.log.With(map[string]interface{}{"listing_id": l.ID, "run_id": job.runID})

	if err := r.run(ctx, log, job, l); err != nil {
		msg := err.Error()
		log.LogErrorf("research failed: %s", msg)
		job.fail(msg, r.now())
		// The record must reflect the failure even during shutdown.
		pctx := context.WithoutCancel(ctx)
		if perr := r.store.UpsertResearchRecord(pctx, l.ID, RecordUpdate{Status: RecordFailed, ErrorMessage: &msg}); perr != nil {
			log.LogError("could not persist failed research record", perr)
		}
		return
	}
	job.complete(r.now())
	log.LogSuccessf("research complete")
}

func (r *Runner) run(ctx context.Context, log *logger.Logger, job *Job, l *listing.Listing) error {
	job.setStep(StepListing)
	summary := r.listingSummary(ctx, log, l)

	job.setStep(StepSpecs)
	sp, err := r.resolveSpecs(ctx, log, job, l)
	if err != nil {
		return err
	}

	job.setStep(StepModel)
	years := ComputeYearRange(intOr0(l.BuildYear), sp)
	row := ModelResearch{
		Manufacturer: orUnknown(l.Manufacturer),
		BoatClass:    orUnknown(l.BoatClass),
		YearMin:      years.Min,
		YearMax:      years.Max,
		Specs:        sp,
	}
	existing, err := r.store.FindModelResearch(ctx, row.Key())
	if err != nil {
		return fmt.Errorf("find model research: %w", err)
	}

	if existing == nil {
		row.CreatedAt = r.now().UTC()
		created, isNew, err := r.store.CreateModelResearch(ctx, row)
		if err != nil {
			return fmt.Errorf("create model research: %w", err)
		}
		if isNew {
			if err := r.researchModel(ctx, log, job, l, created.ID); err != nil {
				return err
			}
		} else {
			log.LogInfof("model %s was created concurrently, reusing it", row.Key())
		}
	} else {
		log.LogInfof("model %s already researched, skipping reviews and forums", row.Key())
	}

	now := r.now().UTC()
	if err := r.store.UpsertResearchRecord(ctx, l.ID, RecordUpdate{
		Status:       RecordComplete,
		Summary:      &summary,
		ResearchedAt: &now,
	}); err != nil {
		return fmt.Errorf("persist research record: %w", err)
	}
	return nil
}

// researchModel runs the review and forum stages for a freshly created model
// row and stores their results on it.
func (r *Runner) researchModel(ctx context.Context, log *logger.Logger, job *Job, l *listing.Listing, modelID string) error {
	name := boatName(l)

	job.setStep(StepReviews)
	reviews, err := r.resolveReviews(ctx, log, job, name)
	if err != nil {
		return err
	}

	job.setStep(StepForums)
	forums, err := r.resolveForums(ctx, log, job, name)
	if err != nil {
		return err
	}

	if err := r.store.UpdateModelResearch(ctx, modelID, ModelUpdate{
		Reviews:      reviews,
		Forums:       forums,
		ResearchedAt: r.now().UTC(),
	}); err != nil {
		return fmt.Errorf("update model research: %w", err)
	}
	return nil
}

// listingSummary fetches the listing page and extracts its description.
// Every failure here is logged and yields "".
func (r *Runner) listingSummary(ctx context.Context, log *logger.Logger, l *listing.Listing) string {
	if l.LinkURL == "" {
		return ""
	}
	html, err := r.fetcher.Fetch(ctx, l.LinkURL)
	if err != nil {
		log.LogWarnf("listing page fetch failed: %v", err)
		return ""
	}
	desc, err := listing.ExtractDescription(html)
	if err != nil {
		log.LogWarnf("listing description extraction failed: %v", err)
		return ""
	}
	if desc == "" {
		log.LogWarnf("no description found on listing page")
		return ""
	}
	return TruncateSummary(desc, SummaryLimit)
}

// resolveSpecs finds the specs for the listing's model, asking a human to
// pick among candidates when the keyword has not been seen before.
func (r *Runner) resolveSpecs(ctx context.Context, log *logger.Logger, job *Job, l *listing.Listing) (*specs.Specs, error) {
	keyword := ExtractSearchKeyword(listing.Str(l.ListingName))
	if keyword == "" {
		log.LogInfof("no listing name, skipping specs")
		return nil, nil
	}
	searchKey := strings.ToLower(keyword)

	cached, err := r.store.FindSearchKeyMapping(ctx, searchKey)
	if err != nil {
		return nil, fmt.Errorf("find search key mapping: %w", err)
	}
	if cached != nil {
		if cached.Slug == nil {
			log.LogInfof("cache hit: %q has no specs match", searchKey)
			return nil, nil
		}
		log.LogInfof("cache hit: %q -> %s", searchKey, *cached.Slug)
		return r.fetchDetail(ctx, log, *cached.Slug)
	}

	cands, ok, err := r.searchSpecs(ctx, log, keyword)
	if err != nil {
		return nil, err
	}
	if !ok || len(cands) == 0 {
		fallback := BuildFallbackKeyword(listing.Str(l.Manufacturer), floatOr0(l.LengthInMeters))
		if fallback != "" && !strings.EqualFold(fallback, keyword) {
			log.LogInfof("no specs results for %q, trying %q", keyword, fallback)
			fc, fok, err := r.searchSpecs(ctx, log, fallback)
			if err != nil {
				return nil, err
			}
			if fok {
				cands, ok = fc, true
			}
		}
	}

	if !ok {
		log.LogWarnf("specs search failed, will retry on the next run")
		return nil, nil
	}
	if len(cands) == 0 {
		log.LogInfof("no specs candidates for %q, caching as no match", searchKey)
		if err := r.saveMapping(ctx, log, SearchKeyMapping{SearchKey: searchKey}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	MarkRecommended(cands, keyword, intOr0(l.BuildYear))
	log.LogInfof("waiting for specs selection (%d candidates)", len(cands))
	slug, err := job.awaitSpecs(ctx, cands)
	if err != nil {
		return nil, err
	}

	m := SearchKeyMapping{SearchKey: searchKey, Slug: slug}
	if slug != nil {
		for _, c := range cands {
			if c.Slug == *slug {
				name := c.ModelName
				m.ModelName = &name
				break
			}
		}
	}
	if err := r.saveMapping(ctx, log, m); err != nil {
		return nil, err
	}
	if slug == nil {
		log.LogInfof("no specs candidate selected")
		return nil, nil
	}
	return r.fetchDetail(ctx, log, *slug)
}

// searchSpecs reports ok=false when the search page could not be fetched.
func (r *Runner) searchSpecs(ctx context.Context, log *logger.Logger, keyword string) ([]specs.Candidate, bool, error) {
	cands, err := r.specs.Search(ctx, keyword)
	if err != nil {
		if browser.IsFetchFailure(err) {
			log.LogWarnf("specs search for %q failed: %v", keyword, err)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("specs search: %w", err)
	}
	return cands, true, nil
}

func (r *Runner) fetchDetail(ctx context.Context, log *logger.Logger, slug string) (*specs.Specs, error) {
	s, err := r.specs.FetchDetail(ctx, slug)
	if err != nil {
		if browser.IsFetchFailure(err) {
			log.LogWarnf("specs detail for %s failed: %v", slug, err)
			return nil, nil
		}
		return nil, fmt.Errorf("specs detail: %w", err)
	}
	return s, nil
}

func (r *Runner) saveMapping(ctx context.Context, log *logger.Logger, m SearchKeyMapping) error {
	m.CreatedAt = r.now().UTC()
	created, err := r.store.CreateSearchKeyMapping(ctx, m)
	if err != nil {
		return fmt.Errorf("create search key mapping: %w", err)
	}
	if !created {
		log.LogInfof("search key %q was mapped concurrently, keeping the existing mapping", m.SearchKey)
	}
	return nil
}

// webSearch runs a query; transport failures are soft and yield nothing.
func (r *Runner) webSearch(ctx context.Context, log *logger.Logger, query string) []websearch.Result {
	results, err := r.search.Search(ctx, query)
	if err != nil {
		log.LogWarnf("web search %q failed: %v", query, err)
		return nil
	}
	return results
}

func (r *Runner) resolveReviews(ctx context.Context, log *logger.Logger, job *Job, name string) ([]ReviewResult, error) {
	if name == "" {
		return nil, nil
	}
	results := r.webSearch(ctx, log, quotedQuery(name, r.reviewQualifier))
	if len(results) == 0 {
		log.LogInfof("no review results")
		return nil, nil
	}

	cands := make([]ReviewCandidate, len(results))
	byURL := make(map[string]ReviewCandidate, len(results))
	for i, res := range results {
		cands[i] = ReviewCandidate{Title: res.Title, URL: res.URL, Source: ExtractDomain(res.URL), Snippet: res.Snippet}
		if _, dup := byURL[res.URL]; !dup {
			byURL[res.URL] = cands[i]
		}
	}

	log.LogInfof("waiting for review selection (%d candidates)", len(cands))
	urls, err := job.awaitReviews(ctx, cands)
	if err != nil {
		return nil, err
	}
	var out []ReviewResult
	for _, u := range urls {
		if c, ok := byURL[u]; ok {
			out = append(out, ReviewResult{Title: c.Title, Source: c.Source, URL: c.URL, Excerpt: c.Snippet})
		}
	}
	log.LogInfof("selected %d reviews", len(out))
	return out, nil
}

func (r *Runner) resolveForums(ctx context.Context, log *logger.Logger, job *Job, name string) ([]ForumResult, error) {
	if name == "" {
		return nil, nil
	}
	results := r.webSearch(ctx, log, quotedQuery(name, r.forumQualifier))
	if len(results) == 0 {
		log.LogInfof("no forum results")
		return nil, nil
	}

	cands := make([]ForumCandidate, len(results))
	byURL := make(map[string]ForumCandidate, len(results))
	for i, res := range results {
		cands[i] = ForumCandidate{Title: res.Title, URL: res.URL, Source: ExtractDomain(res.URL), Snippet: res.Snippet}
		if _, dup := byURL[res.URL]; !dup {
			byURL[res.URL] = cands[i]
		}
	}

	log.LogInfof("waiting for forum selection (%d candidates)", len(cands))
	urls, err := job.awaitForums(ctx, cands)
	if err != nil {
		return nil, err
	}
	var out []ForumResult
	for _, u := range urls {
		if c, ok := byURL[u]; ok {
			out = append(out, ForumResult{Title: c.Title, Source: c.Source, URL: c.URL, Excerpt: c.Snippet})
		}
	}
	log.LogInfof("selected %d forums", len(out))
	return out, nil
}

// quotedQuery is `"<name>" <qualifier>`.
func quotedQuery(name, qualifier string) string {
	return `"` + name + `" ` + qualifier
}

// boatName is the search keyword, else "manufacturer class".
func boatName(l *listing.Listing) string {
	if kw := ExtractSearchKeyword(listing.Str(l.ListingName)); kw != "" {
		return kw
	}
	return strings.TrimSpace(listing.Str(l.Manufacturer) + " " + listing.Str(l.BoatClass))
}

func orUnknown(p *string) string {
	if p == nil || *p == "" {
		return unknownModelPart
	}
	return *p
}

func intOr0(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatOr0(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
