package listing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"boatresearch/internal/core/job"
	"boatresearch/internal/logger"
	tasks "boatresearch/internal/platform/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

var ErrFileNotFound = errors.New("listing file not found")

// rawListing is one JSONL line as written by the scrape crawler.
type rawListing struct {
	ListingName    *string  `json:"listingName"`
	SellerName     *string  `json:"sellerName"`
	SellerLocation *string  `json:"sellerLocation"`
	ImageURL       *string  `json:"imgUrl"`
	LinkURL        *string  `json:"linkUrl"`
	Manufacturer   *string  `json:"manufacturer"`
	BoatClass      *string  `json:"boatClass"`
	LengthInMeters *float64 `json:"lengthInMeters"`
	State          *string  `json:"state"`
	PriceUSD       *float64 `json:"priceUSD"`
}

type IngestPayload struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
}

// Enqueuer submits background tasks.
type Enqueuer interface {
	Enqueue(task *asynq.Task, queue string, maxRetries int) (string, error)
}

// JobTracker records the lifecycle of an ingest job.
type JobTracker interface {
	InitPending(ctx context.Context, jobID string, jobType job.Type, fileName string) error
	SetProcessing(ctx context.Context, jobID string, jobType job.Type) error
	Complete(ctx context.Context, jobID string, jobType job.Type, result job.JobResult) error
	Fail(ctx context.Context, jobID string, jobType job.Type, cause error) error
}

type IngestService struct {
	log        *logger.Logger
	store      Store
	jobs       JobTracker
	tasks      Enqueuer
	dataDir    string
	maxRetries int
	now        func() time.Time
}

func NewIngestService(store Store, jobs JobTracker, enq Enqueuer, dataDir string, maxRetries int) *IngestService {
	return &IngestService{
		log:        logger.New("IngestService"),
		store:      store,
		jobs:       jobs,
		tasks:      enq,
		dataDir:    dataDir,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Enqueue validates that fileName exists in the data directory and schedules
// its ingest. It returns the job id.
func (s *IngestService) Enqueue(ctx context.Context, fileName string) (string, error) {
	if _, err := os.Stat(s.path(fileName)); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, fileName)
	}
	id := uuid.New().String()
	if err := s.jobs.InitPending(ctx, id, job.TypeIngest, filepath.Base(fileName)); err != nil {
		return "", err
	}
	payload, _ := json.Marshal(IngestPayload{JobID: id, FileName: fileName})
	task := asynq.NewTask(tasks.TaskTypeIngest, payload)
	if _, err := s.tasks.Enqueue(task, tasks.QueueDefault, s.maxRetries); err != nil {
		return "", err
	}
	s.log.LogInfof("enqueued ingest job %s for %s", id, fileName)
	return id, nil
}

func (s *IngestService) HandleIngestTask(ctx context.Context, task *asynq.Task) error {
	var p IngestPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode ingest payload: %w: %v", asynq.SkipRetry, err)
	}
	s.log.LogInfof("processing ingest job %s for %s", p.JobID, p.FileName)
	if err := s.jobs.SetProcessing(ctx, p.JobID, job.TypeIngest); err != nil {
		return err
	}

	res, err := s.IngestFile(ctx, p.FileName)
	if err != nil {
		s.log.LogErrorf("ingest job %s failed: %v", p.JobID, err)
		if ferr := s.jobs.Fail(ctx, p.JobID, job.TypeIngest, err); ferr != nil {
			return ferr
		}
		if errors.Is(err, ErrFileNotFound) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	return s.jobs.Complete(ctx, p.JobID, job.TypeIngest, job.JobResult{IngestResult: &res})
}

// IngestFile loads every listing of a JSONL file. Lines that are not JSON or
// lack a link url count as errors; listings whose link url is already stored
// are skipped.
func (s *IngestService) IngestFile(ctx context.Context, fileName string) (job.IngestResult, error) {
	base := filepath.Base(fileName)
	res := job.IngestResult{FileName: base}

	b, err := os.ReadFile(s.path(fileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, fmt.Errorf("%w: %s", ErrFileNotFound, fileName)
		}
		return res, fmt.Errorf("read %s: %w", fileName, err)
	}

	raws, parseErrors, err := parseLines(b)
	if err != nil {
		return res, err
	}
	res.Total = len(raws) + parseErrors
	res.Errors = parseErrors

	loaded := s.now().UTC()
	for _, raw := range raws {
		if raw.LinkURL == nil || *raw.LinkURL == "" {
			res.Errors++
			continue
		}
		existing, err := s.store.FindListingByLink(ctx, *raw.LinkURL)
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Skipped++
			continue
		}

		l := toListing(raw, base, loaded)
		created, err := s.store.CreateListing(ctx, l)
		if err != nil {
			return res, err
		}
		if !created {
			res.Skipped++
			continue
		}
		res.Inserted++
	}
	s.log.LogSuccessf("ingested %s: total=%d inserted=%d skipped=%d errors=%d", base, res.Total, res.Inserted, res.Skipped, res.Errors)
	return res, nil
}

func (s *IngestService) path(fileName string) string {
	return filepath.Join(s.dataDir, filepath.Base(fileName))
}

func parseLines(b []byte) ([]rawListing, int, error) {
	var (
		out    []rawListing
		errs   int
		reader = bufio.NewScanner(bytes.NewReader(b))
	)
	reader.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for reader.Scan() {
		line := bytes.TrimSpace(reader.Bytes())
		if len(line) == 0 {
			continue
		}
		var r rawListing
		if err := json.Unmarshal(line, &r); err != nil {
			errs++
			continue
		}
		out = append(out, r)
	}
	if err := reader.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan listing file: %w", err)
	}
	return out, errs, nil
}

func toListing(r rawListing, fileSource string, loaded time.Time) *Listing {
	year, name := ParseBuildYear(r.ListingName)
	l := &Listing{
		LinkURL:        *r.LinkURL,
		BuildYear:      year,
		ListingName:    name,
		SellerName:     r.SellerName,
		SellerLocation: r.SellerLocation,
		ImageURL:       r.ImageURL,
		Manufacturer:   r.Manufacturer,
		BoatClass:      r.BoatClass,
		LengthInMeters: r.LengthInMeters,
		State:          r.State,
		FileSource:     fileSource,
		DateLoaded:     loaded,
	}
	if r.PriceUSD != nil {
		p := int64(math.Round(*r.PriceUSD))
		l.PriceUSD = &p
	}
	return l
}

var leadingYearRe = regexp.MustCompile(`^(\d{4})\s+(.+)$`)

// ParseBuildYear splits a leading model year off a listing name, so
// "2005 Catalina 42" becomes 2005 and "Catalina 42".
func ParseBuildYear(listingName *string) (*int, *string) {
	if listingName == nil || *listingName == "" {
		return nil, nil
	}
	m := leadingYearRe.FindStringSubmatch(*listingName)
	if m == nil {
		return nil, listingName
	}
	year, _ := strconv.Atoi(m[1])
	name := strings.TrimSpace(m[2])
	return &year, &name
}
